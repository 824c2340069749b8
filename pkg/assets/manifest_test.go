package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/ssrdata/internal/errors"
)

func TestManifest(t *testing.T) {
	m := NewManifest()
	m.Set("app.js", "app.abc123.js")
	m.Set("app.css", "app.def456.css")

	tests := []struct {
		source string
		want   string
	}{
		{"app.js", "app.abc123.js"},
		{"app.css", "app.def456.css"},
		{"vendor.js", "vendor.js"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := m.Resolve(tt.source); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
	if !m.Has("app.js") || m.Has("vendor.js") {
		t.Error("Has() mismatch")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(`{"app.js":"app.abc123.js"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := m.Resolve("app.js"); got != "app.abc123.js" {
		t.Errorf("Resolve(app.js) = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`["app.js"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.json"), invalid} {
		_, err := Load(path)
		if !errors.Is(err, "E122") {
			t.Errorf("Load(%s) error = %v, want E122", filepath.Base(path), err)
		}
	}
}

func TestResolvers(t *testing.T) {
	m := NewManifest()
	m.Set("app.js", "app.abc123.js")

	tests := []struct {
		name     string
		resolver Resolver
		source   string
		want     string
	}{
		{"manifest entry", NewResolver(m, "/static/"), "app.js", "/static/app.abc123.js"},
		{"manifest miss", NewResolver(m, "/static/"), "vendor.js", "/static/vendor.js"},
		{"manifest no prefix", NewResolver(m, ""), "app.js", "app.abc123.js"},
		{"absolute path untouched", NewResolver(m, "/static/"), "/app.js", "/app.js"},
		{"url untouched", NewResolver(m, "/static/"), "https://cdn.example.com/app.js", "https://cdn.example.com/app.js"},
		{"passthrough", NewPassthroughResolver("/static/"), "app.js", "/static/app.js"},
		{"passthrough nested", NewPassthroughResolver("/static/"), "img/logo.png", "/static/img/logo.png"},
		{"passthrough absolute", NewPassthroughResolver("/static/"), "/app.js", "/app.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resolver.Asset(tt.source); got != tt.want {
				t.Errorf("Asset(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}
