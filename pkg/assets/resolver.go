package assets

import "strings"

// Resolver turns an asset source name into the URL a page references.
type Resolver interface {
	Asset(source string) string
}

// NewResolver resolves sources through m and prepends prefix.
func NewResolver(m *Manifest, prefix string) Resolver {
	return manifestResolver{manifest: m, prefix: prefix}
}

// NewPassthroughResolver only prepends prefix. It is used when the bundle
// is not fingerprinted, so documents reference the same paths either way.
func NewPassthroughResolver(prefix string) Resolver {
	return passthrough{prefix: prefix}
}

type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

func (r manifestResolver) Asset(source string) string {
	if IsURL(source) {
		return source
	}
	return r.prefix + r.manifest.Resolve(source)
}

type passthrough struct {
	prefix string
}

func (p passthrough) Asset(source string) string {
	if IsURL(source) {
		return source
	}
	return p.prefix + source
}

// IsURL reports whether source is already a URL or an absolute path, which
// resolvers return unchanged.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "/") || strings.Contains(source, "://")
}
