package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/ssrdata/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Auth.TokenCookie != DefaultTokenCookie {
		t.Errorf("Auth.TokenCookie = %q, want %q", cfg.Auth.TokenCookie, DefaultTokenCookie)
	}
	if cfg.Drain.MaxPasses != DefaultMaxPasses {
		t.Errorf("Drain.MaxPasses = %d, want %d", cfg.Drain.MaxPasses, DefaultMaxPasses)
	}
	if cfg.Live.Path != DefaultLivePath {
		t.Errorf("Live.Path = %q, want %q", cfg.Live.Path, DefaultLivePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); !errors.Is(err, "E121") {
		t.Errorf("Load on empty dir: err = %v, want E121", err)
	}

	configJSON := `{
  "name": "shop",
  "server": {"host": "0.0.0.0", "port": 8080},
  "graphql": {"endpoint": "https://api.example.com/graphql", "timeout": "5s"},
  "auth": {"tokenCookie": "session"},
  "drain": {"concurrency": 4}
}
`
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), configJSON)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("Address() = %q, want %q", cfg.Address(), "0.0.0.0:8080")
	}
	if cfg.GraphQLTimeout() != 5*time.Second {
		t.Errorf("GraphQLTimeout() = %v, want 5s", cfg.GraphQLTimeout())
	}
	if cfg.Auth.TokenCookie != "session" {
		t.Errorf("Auth.TokenCookie = %q, want %q", cfg.Auth.TokenCookie, "session")
	}
	if cfg.Drain.Concurrency != 4 {
		t.Errorf("Drain.Concurrency = %d, want 4", cfg.Drain.Concurrency)
	}
	// Defaults survive partial files.
	if cfg.Drain.MaxPasses != DefaultMaxPasses {
		t.Errorf("Drain.MaxPasses = %d, want %d", cfg.Drain.MaxPasses, DefaultMaxPasses)
	}
	if cfg.ServiceName() != "shop" {
		t.Errorf("ServiceName() = %q, want %q", cfg.ServiceName(), "shop")
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, YAMLConfigFileName), `
server:
  port: 9000
archive:
  enabled: true
  bucket: snapshots
  prefix: pages/
  region: eu-west-1
live:
  allowedOrigins:
    - https://example.com
static:
  dir: public
  cacheControl: production
pages:
  - path: /posts
    title: Posts
    operation: posts
    query: "query posts($first: Int) { posts(first: $first) { id title } }"
    variables: [first]
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Archive.Bucket != "snapshots" || cfg.Archive.Prefix != "pages/" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if len(cfg.Live.AllowedOrigins) != 1 {
		t.Errorf("Live.AllowedOrigins = %v", cfg.Live.AllowedOrigins)
	}
	if !cfg.Live.Enabled {
		t.Error("Live.Enabled default lost")
	}
	if cfg.Static.Dir != "public" || cfg.Static.Prefix != DefaultStaticPrefix {
		t.Errorf("Static = %+v", cfg.Static)
	}
	if len(cfg.Pages) != 1 || cfg.Pages[0].Operation != "posts" || cfg.Pages[0].Variables[0] != "first" {
		t.Errorf("Pages = %+v", cfg.Pages)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		detail  string
	}{
		{"bad json", ConfigFileName, `{"server": `, "Failed to parse"},
		{"bad yaml", YAMLConfigFileName, "server: [", "Failed to parse"},
		{"port range", ConfigFileName, `{"server": {"port": 70000}}`, "Port"},
		{"duration", ConfigFileName, `{"graphql": {"timeout": "soon"}}`, "Timeout"},
		{"endpoint", ConfigFileName, `{"graphql": {"endpoint": "not a url"}}`, "Endpoint"},
		{"archive bucket", ConfigFileName, `{"archive": {"enabled": true}}`, "Bucket"},
		{"metrics path", ConfigFileName, `{"metrics": {"path": "metrics"}}`, "Path"},
		{"cache policy", ConfigFileName, `{"static": {"cacheControl": "forever"}}`, "CacheControl"},
		{"page without query", ConfigFileName, `{"pages": [{"path": "/p"}]}`, "Query"},
		{"relative page path", YAMLConfigFileName, "pages:\n  - path: p\n    query: '{ a }'\n", "Path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			_, err := LoadFile(path)
			if !errors.Is(err, "E120") {
				t.Fatalf("err = %v, want E120", err)
			}
			se := err.(*errors.SSRError)
			if !strings.Contains(se.Detail, tt.detail) {
				t.Errorf("Detail = %q, want it to mention %q", se.Detail, tt.detail)
			}
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFileName), `{}`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(nested)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("Find() = %q, want %q", got, want)
	}
}

func TestSaveTo(t *testing.T) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			cfg.Name = "saved"
			cfg.Server.Port = 4000
			cfg.Pages = []PageConfig{{Path: "/posts", Query: "{ posts { id } }"}}

			path := filepath.Join(t.TempDir(), name)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			if loaded.Name != "saved" || loaded.Server.Port != 4000 {
				t.Errorf("loaded = %+v", loaded)
			}
			if len(loaded.Pages) != 1 || loaded.Pages[0].Path != "/posts" {
				t.Errorf("Pages = %+v", loaded.Pages)
			}
			if loaded.Path() != path {
				t.Errorf("Path() = %q, want %q", loaded.Path(), path)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
