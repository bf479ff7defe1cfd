// Package web holds the dashboard page, its HTMX partials and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds app.js and style.css.
//go:embed static/*
var StaticFS embed.FS

// ParseTemplates parses index.html and the "dashboard" partial with funcs.
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(TemplatesFS, "templates/*.html")
}

// Static returns the asset tree rooted at static/.
func Static() (fs.FS, error) {
	return fs.Sub(StaticFS, "static")
}
