package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

var ErrNotBuilt = errors.New("assets not built yet, call Build or LoadMetafile first")

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Build runs esbuild with the configured settings and loads metadata
func (p *Pipeline) Build() error {
	entryPoints, err := filepath.Glob(p.config.EntryPointGlob)
	if err != nil {
		return err
	}

	if len(entryPoints) == 0 {
		return errors.New("no entry points found")
	}

	log.Info().Strs("entrypoints", entryPoints).Msg("Building assets")

	result := api.Build(api.BuildOptions{
		EntryPoints:       entryPoints,
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		Outdir:            p.config.OutputDir,
		Format:            api.FormatESModule,
		Target:            api.ES2020,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
	})

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			evt := log.Error().Str("error", msg.Text)
			if msg.Location != nil {
				evt = evt.Str("file", msg.Location.File).Int("line", msg.Location.Line)
			}
			evt.Msg("Build error")
		}
		return errors.New("esbuild failed with errors")
	}

	for _, file := range result.OutputFiles {
		log.Debug().Str("file", file.Path).Msg("Built file")
	}

	if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
		return err
	}

	return p.SetMetafile([]byte(result.Metafile))
}

// LoadMetafile reads the metafile of a previous build, used when the assets
// are built ahead of time.
func (p *Pipeline) LoadMetafile() error {
	data, err := os.ReadFile(p.config.MetafilePath)
	if err != nil {
		return fmt.Errorf("failed to read metafile: %w", err)
	}
	return p.SetMetafile(data)
}

// SetMetafile parses esbuild metafile JSON and caches it.
func (p *Pipeline) SetMetafile(data []byte) error {
	var metadata BuildMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to parse metafile: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata = &metadata
	return nil
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint
// and the main entrypoint file path
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	scripts := []string{}
	visited := make(map[string]bool)

	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint == entryPointPath {
			entrypoint := "/" + outputPath
			scripts = append(scripts, entrypoint)
			visited[outputPath] = true
			p.addDependencies(info, &scripts, visited)
			return scripts, entrypoint, nil
		}
	}

	return nil, "", fmt.Errorf("entrypoint %s not found in metadata", entryPointPath)
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if !visited[imp.Path] {
			visited[imp.Path] = true
			*scripts = append(*scripts, "/"+imp.Path)

			if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
				p.addDependencies(chunkInfo, scripts, visited)
			}
		}
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
