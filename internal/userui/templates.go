package userui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var assets embed.FS

type templates struct {
	reset  *template.Template
	errorT *template.Template
}

type viewData struct {
	Title string
	Error string
}

type resetViewData struct {
	Title  string
	Email  string
	Token  string
	Error  string
	Notice string
	Done   bool
}

func parseTemplates() (*templates, error) {
	parse := func(files ...string) (*template.Template, error) {
		return template.New("base").ParseFS(assets, files...)
	}

	resetT, err := parse("templates/layout.html", "templates/reset.html")
	if err != nil {
		return nil, fmt.Errorf("parse reset: %w", err)
	}
	errorT, err := parse("templates/layout.html", "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &templates{
		reset:  resetT,
		errorT: errorT,
	}, nil
}

func render(w http.ResponseWriter, t *template.Template, name string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = t.ExecuteTemplate(w, name, data)
}

func (t *templates) renderReset(w http.ResponseWriter, status int, data resetViewData) {
	render(w, t.reset, "reset.html", status, data)
}

func (t *templates) renderError(w http.ResponseWriter, status int, title, msg string) {
	render(w, t.errorT, "error.html", status, viewData{Title: title, Error: msg})
}
