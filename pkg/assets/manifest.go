// Package assets resolves the client bundle's source names to the
// fingerprinted files the bundler wrote, so page documents reference
// long-cacheable URLs.
//
// The bundler writes a manifest next to the bundle:
//
//	{
//	  "app.js": "app.a1b2c3d4.js",
//	  "app.css": "app.e5f6a7b8.css"
//	}
//
// and the app resolves script and stylesheet sources through it:
//
//	m, err := assets.Load("dist/manifest.json")
//	r := assets.NewResolver(m, "/static/")
//	r.Asset("app.js") // "/static/app.a1b2c3d4.js"
package assets

import (
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/vango-dev/ssrdata/internal/errors"
)

// Manifest maps source asset names to fingerprinted names. It is safe for
// concurrent use.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]string)}
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E122").Wrap(err).With("path", path)
	}
	var entries map[string]string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &entries); err != nil {
		return nil, errors.New("E122").Wrap(err).With("path", path)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return &Manifest{entries: entries}, nil
}

// Resolve returns the fingerprinted name of source, or source itself when
// the manifest has no entry.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Has reports whether the manifest has an entry for source.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[source]
	return ok
}

// Set adds or replaces an entry.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[source] = resolved
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
