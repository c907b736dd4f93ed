package assets

type Config struct {
	// Entry point glob pattern (e.g., "ui/pages/*.ts")
	EntryPointGlob string
	// Output directory for built files
	OutputDir string
	// Path to the esbuild metafile
	MetafilePath string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
}

// DefaultConfig returns the layout used when running from the repository root.
func DefaultConfig() Config {
	return Config{
		EntryPointGlob: "ui/pages/*.ts",
		OutputDir:      "public",
		MetafilePath:   "public/meta.json",
		Minify:         true,
		SourceMap:      true,
	}
}
