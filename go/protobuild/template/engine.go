package template

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// Engine renders the embedded templates.
type Engine struct {
	tmpl *template.Template
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tmpl, err := template.New("").Funcs(getFuncMap()).
		Option("missingkey=error").
		ParseFS(templateFiles, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &Engine{tmpl: tmpl}, nil
}

// EvaluateTemplate executes the named template against data.
func (e *Engine) EvaluateTemplate(templateName string, data any) (string, error) {
	var sb strings.Builder
	if err := e.tmpl.ExecuteTemplate(&sb, templateName, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", templateName, err)
	}
	return sb.String(), nil
}
