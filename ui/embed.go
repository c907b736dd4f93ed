// Package ui holds the console page templates. Page scripts under pages/ are
// bundled by the asset pipeline at startup.
package ui

import "embed"

//go:embed templates
var Templates embed.FS

// TemplateDir is the directory of Templates holding the page templates.
const TemplateDir = "templates"
