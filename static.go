package ssrdata

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/vango-dev/ssrdata/internal/config"
)

// Cache policies accepted in StaticConfig.CacheControl.
const (
	CacheControlNone       = "none"
	CacheControlProduction = "production"
)

// staticFiles serves the client bundle and other assets from a directory.
type staticFiles struct {
	fs           http.FileSystem
	prefix       string
	cacheControl string
	headers      map[string]string
}

func newStaticFiles(cfg config.StaticConfig) *staticFiles {
	prefix := cfg.Prefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &staticFiles{
		fs:           http.Dir(cfg.Dir),
		prefix:       prefix,
		cacheControl: cfg.CacheControl,
		headers:      cfg.Headers,
	}
}

// relPath returns a sanitized relative path for a static file request.
// It rejects traversal and absolute-path tricks so requests cannot escape
// the static directory.
func (s *staticFiles) relPath(urlPath string) (string, bool) {
	if !strings.HasPrefix(urlPath, s.prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(urlPath, s.prefix)

	// NUL, backslashes and a leading slash ("/static//etc/passwd") never
	// name a file under the directory.
	if rel == "" || strings.ContainsAny(rel, "\\\x00") || strings.HasPrefix(rel, "/") {
		return "", false
	}
	// Dot segments are rejected before cleaning so traversal is not
	// silently rewritten into a different file.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return clean, true
}

// ServeHTTP implements http.Handler.
func (s *staticFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := s.relPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := s.fs.Open(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	s.applyCacheHeaders(w, rel)
	for key, value := range s.headers {
		w.Header().Set(key, value)
	}

	http.ServeContent(w, r, rel, info.ModTime(), f)
}

func (s *staticFiles) applyCacheHeaders(w http.ResponseWriter, filePath string) {
	switch s.cacheControl {
	case CacheControlNone:
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	case CacheControlProduction:
		if isFingerprinted(filePath) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
}

// isFingerprinted reports whether the name carries a content hash of at
// least 8 hex digits before its extension, as in "app.a1b2c3d4.js".
func isFingerprinted(filePath string) bool {
	parts := strings.Split(path.Base(filePath), ".")
	if len(parts) < 3 {
		return false
	}
	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
