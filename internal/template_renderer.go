package internal

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
)

// TextTemplateRenderer renders attribute default values with text/template.
type TextTemplateRenderer struct {
	now func() time.Time
}

func NewTextTemplateRenderer() *TextTemplateRenderer {
	return &TextTemplateRenderer{now: time.Now}
}

func (r *TextTemplateRenderer) funcs() template.FuncMap {
	return template.FuncMap{
		"now":   r.now,
		"date":  func(layout string, t time.Time) string { return t.Format(layout) },
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"uuid":  func() string { return uuid.NewString() },
	}
}

// Render parses and executes tpl against data.
func (r *TextTemplateRenderer) Render(tpl string, data map[string]any) (string, error) {
	t, err := template.New("default").Funcs(r.funcs()).Option("missingkey=zero").Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
