// Package redirect renders the small HTML documents that forward an alias to its version.
package redirect

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates/redirect.html
var defaultTemplate embed.FS

// Generator renders redirect documents from one template.
// The template sees a single field, {{.Href}}, holding the link target.
type Generator struct {
	tmpl *template.Template
}

// New parses userTemplate, or the built-in template when it is empty.
func New(userTemplate []byte) (*Generator, error) {
	src := userTemplate
	if len(bytes.TrimSpace(src)) == 0 {
		var err error
		src, err = defaultTemplate.ReadFile("templates/redirect.html")
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in redirect template: %w", err)
		}
	}
	tmpl, err := template.New("redirect").Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect template: %w", err)
	}
	return &Generator{tmpl: tmpl}, nil
}

// Render produces the document stored at aliasPath that forwards to canonicalPath.
// Both are branch-relative paths; the link is relative to the alias file's directory.
func (g *Generator) Render(aliasPath, canonicalPath string) ([]byte, error) {
	href, err := RelativeHref(aliasPath, canonicalPath)
	if err != nil {
		return nil, err
	}
	return g.RenderHref(href)
}

// RenderHref renders a redirect to an explicit link.
func (g *Generator) RenderHref(href string) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, struct{ Href string }{Href: href}); err != nil {
		return nil, fmt.Errorf("failed to render redirect to %s: %w", href, err)
	}
	return buf.Bytes(), nil
}

// RelativeHref is the '/'-separated link from the directory of from to target.
func RelativeHref(from, target string) (string, error) {
	dir := path.Dir(path.Clean("/" + from))
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(path.Clean("/"+target)))
	if err != nil {
		return "", fmt.Errorf("no relative link from %s to %s: %w", from, target, err)
	}
	return filepath.ToSlash(rel), nil
}

// IsDocument reports whether a file gets a redirect stub rather than a full copy.
func IsDocument(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return true
	}
	return false
}
