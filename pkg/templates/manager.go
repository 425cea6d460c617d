package templates

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/selivandex/marketmood/pkg/logger"
)

// Renderer renders a named template
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager holds a parsed template set. Templates are addressed by base name.
type Manager struct {
	set *template.Template
}

var funcs = template.FuncMap{
	"json":     toJSON,
	"truncate": Truncate,
	"join":     strings.Join,
	"printf":   fmt.Sprintf,
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Truncate cuts s to at most max runes and marks the cut with "..."
func Truncate(max int, s string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// Load parses dir/*.tmpl from fsys and fails if any of required is missing
func Load(fsys fs.FS, dir string, required ...string) (*Manager, error) {
	pattern := path.Join(dir, "*.tmpl")

	set, err := template.New("").Funcs(funcs).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates %s: %w", pattern, err)
	}

	m := &Manager{set: set}
	for _, name := range required {
		if !m.TemplateExists(name) {
			return nil, fmt.Errorf("required template not found: %s", name)
		}
	}

	logger.Debug("templates loaded",
		zap.String("pattern", pattern),
		zap.Int("count", len(set.Templates())),
	)

	return m, nil
}

// ExecuteTemplate renders name with data
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.set.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return sb.String(), nil
}

// TemplateExists implements Renderer
func (m *Manager) TemplateExists(name string) bool {
	return m.set.Lookup(name) != nil
}
