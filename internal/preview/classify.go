// Package preview turns object bodies into display ready documents. A
// classifier picks a renderer from the content type and name, and each
// renderer fetches the body only when it has to.
package preview

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Kind selects a renderer.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
	KindCSV   Kind = "csv"
	KindJSON  Kind = "json"
	KindYAML  Kind = "yaml"
	KindFrame Kind = "frame"
)

// NeedsBody reports whether the renderer for k reads the object body. Media
// and frame previews are embedded by URL.
func (k Kind) NeedsBody() bool {
	switch k {
	case KindText, KindCSV, KindJSON, KindYAML:
		return true
	default:
		return false
	}
}

// types the mime package does not know on every platform
var extensionTypes = map[string]string{
	".csv":        "text/csv",
	".tsv":        "text/tab-separated-values",
	".json":       "application/json",
	".geojson":    "application/geo+json",
	".ndjson":     "application/x-ndjson",
	".jsonl":      "application/x-ndjson",
	".yaml":       "application/yaml",
	".yml":        "application/yaml",
	".md":         "text/markdown",
	".markdown":   "text/markdown",
	".txt":        "text/plain",
	".log":        "text/plain",
	".ini":        "text/plain",
	".conf":       "text/plain",
	".env":        "text/plain",
	".toml":       "application/toml",
	".xml":        "application/xml",
	".html":       "text/html",
	".htm":        "text/html",
	".svg":        "image/svg+xml",
	".png":        "image/png",
	".jpg":        "image/jpeg",
	".jpeg":       "image/jpeg",
	".gif":        "image/gif",
	".webp":       "image/webp",
	".avif":       "image/avif",
	".mp4":        "video/mp4",
	".webm":       "video/webm",
	".mov":        "video/quicktime",
	".mp3":        "audio/mpeg",
	".wav":        "audio/wav",
	".ogg":        "audio/ogg",
	".flac":       "audio/flac",
	".pdf":        "application/pdf",
	".go":         "text/x-go",
	".js":         "text/javascript",
	".mjs":        "text/javascript",
	".ts":         "text/x-typescript",
	".tsx":        "text/x-typescript",
	".py":         "text/x-python",
	".rb":         "text/x-ruby",
	".rs":         "text/x-rust",
	".java":       "text/x-java",
	".sh":         "application/x-sh",
	".sql":        "application/sql",
	".css":        "text/css",
	".tf":         "text/x-hcl",
	".hcl":        "text/x-hcl",
	".proto":      "text/x-protobuf",
	".dockerfile": "text/x-dockerfile",
}

// application/* types that are really text
var textApplicationTypes = map[string]bool{
	"application/xml":        true,
	"application/javascript": true,
	"application/x-sh":       true,
	"application/sql":        true,
	"application/toml":       true,
	"application/x-ndjson":   true,
	"application/graphql":    true,
}

// Classify selects the renderer kind for an object. MIME parameters are
// ignored. Generic types defer to the name's extension.
func Classify(contentType, name string) Kind {
	mediaType := baseType(contentType)
	if isGeneric(mediaType) {
		if byExt := typeFromName(name); byExt != "" && (mediaType != "text/plain" || !isGeneric(byExt)) {
			mediaType = byExt
		}
	}

	switch {
	case mediaType == "":
		return KindFrame
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return KindAudio
	}

	switch mediaType {
	case "text/csv", "application/csv", "text/tab-separated-values":
		return KindCSV
	case "application/json", "text/json":
		return KindJSON
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return KindYAML
	case "text/html", "application/xhtml+xml", "application/pdf":
		return KindFrame
	}

	switch {
	case strings.HasSuffix(mediaType, "+json"):
		return KindJSON
	case strings.HasSuffix(mediaType, "+yaml"):
		return KindYAML
	case strings.HasSuffix(mediaType, "+xml"):
		return KindText
	case strings.HasPrefix(mediaType, "text/"):
		return KindText
	case textApplicationTypes[mediaType]:
		return KindText
	}
	return KindFrame
}

// Language returns a syntax highlighting hint for text previews.
func Language(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if strings.EqualFold(path.Base(name), "Dockerfile") {
		return "dockerfile"
	}
	switch ext {
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".sh", ".bash", ".zsh":
		return "shell"
	case ".sql":
		return "sql"
	case ".json", ".geojson", ".ndjson", ".jsonl":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".xml", ".svg":
		return "xml"
	case ".html", ".htm":
		return "html"
	case ".css":
		return "css"
	case ".md", ".markdown":
		return "markdown"
	case ".tf", ".hcl":
		return "hcl"
	case ".proto":
		return "protobuf"
	case ".ini", ".conf":
		return "ini"
	}

	mediaType := baseType(contentType)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return "json"
	case mediaType == "application/xml" || strings.HasSuffix(mediaType, "+xml"):
		return "xml"
	case strings.Contains(mediaType, "yaml"):
		return "yaml"
	case mediaType == "text/javascript" || mediaType == "application/javascript":
		return "javascript"
	}
	return "plaintext"
}

// ContentTypeFor guesses a content type from the name's extension, then from
// the first bytes of data when given.
func ContentTypeFor(name string, data []byte) string {
	if ct := typeFromName(name); ct != "" {
		return ct
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}

func typeFromName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		if strings.EqualFold(path.Base(name), "Dockerfile") {
			return extensionTypes[".dockerfile"]
		}
		return ""
	}
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return baseType(ct)
	}
	return ""
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isGeneric(mediaType string) bool {
	switch mediaType {
	case "", "application/octet-stream", "binary/octet-stream", "text/plain", "application/x-www-form-urlencoded":
		return true
	}
	return false
}
