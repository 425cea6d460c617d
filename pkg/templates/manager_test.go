package templates

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestManager_ExecuteTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"greet.tmpl": {Data: []byte(`Hello {{.Name}} {{json .Tags}} {{truncate 3 .Body}}`)},
	}

	manager, err := Load(fsys, "", "greet.tmpl")
	if err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	out, err := manager.ExecuteTemplate("greet.tmpl", map[string]any{
		"Name": "wsb",
		"Tags": []string{"a", "b"},
		"Body": "abcdef",
	})
	if err != nil {
		t.Fatalf("ExecuteTemplate failed: %v", err)
	}

	want := `Hello wsb ["a","b"] abc...`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestManager_MissingTemplate(t *testing.T) {
	fsys := fstest.MapFS{"a.tmpl": {Data: []byte("a")}}

	if _, err := Load(fsys, "", "b.tmpl"); err == nil {
		t.Fatal("expected error for missing required template")
	}

	manager, err := Load(fsys, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := manager.ExecuteTemplate("b.tmpl", nil); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLoad_Subdirectory(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/a.tmpl": {Data: []byte("{{.}}")},
		"other/b.tmpl":   {Data: []byte("b")},
	}

	manager, err := Load(fsys, "prompts", "a.tmpl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if manager.TemplateExists("b.tmpl") {
		t.Error("templates outside dir must not be loaded")
	}

	if _, err := Load(fsys, "missing"); err == nil {
		t.Error("expected error for a directory without templates")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		max  int
		in   string
		want string
	}{
		{3, "abcdef", "abc..."},
		{10, "short", "short"},
		{0, "unbounded", "unbounded"},
		{2, "🚀🚀🚀", "🚀🚀..."},
	}

	for _, tt := range tests {
		if got := Truncate(tt.max, tt.in); got != tt.want {
			t.Errorf("Truncate(%d, %q) = %q, want %q", tt.max, tt.in, got, tt.want)
		}
	}
}
