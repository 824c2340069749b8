package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Request and render errors (E101-E119)
	// ============================================

	"E101": {
		Category:   CategoryRender,
		Message:    "Page initializer failed",
		Detail:     "The page's InitialProps returned an error. The page cannot be rendered.",
		Suggestion: "Return a redirect from InitialProps instead of an error for expected conditions such as missing auth.",
	},
	"E102": {
		Category: CategoryRender,
		Message:  "Data drain failed",
		Detail:   "A query declared somewhere in the component tree failed while resolving data before render. No partial snapshot is produced.",
	},
	"E103": {
		Category:   CategoryRender,
		Message:    "Reserved prop key returned by page initializer",
		Detail:     "The key serverState carries the hydration snapshot and cannot be produced by a page.",
		Suggestion: "Rename the prop returned from InitialProps.",
	},
	"E104": {
		Category: CategoryHydration,
		Message:  "Snapshot is not serializable",
		Detail:   "The extracted cache contains a value that cannot be encoded as JSON.",
	},
	"E105": {
		Category: CategoryHydration,
		Message:  "Page payload could not be decoded",
		Detail:   "The serverState sent back by the client is not a valid snapshot.",
	},
	"E106": {
		Category: CategoryRender,
		Message:  "Page render failed",
	},
	"E107": {
		Category:   CategoryRequest,
		Message:    "Unknown page",
		Detail:     "A live mount named a page that is not registered.",
		Suggestion: "Send the route pattern the page was registered under.",
	},
	"E108": {
		Category: CategoryRequest,
		Message:  "Malformed request path",
		Detail:   "The path contains a backslash, a NUL byte, an invalid percent escape or a .. segment above the root.",
	},

	// ============================================
	// Configuration errors (E120-E129)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Check ssrdata.json against the documented fields.",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create ssrdata.json or pass --config.",
	},
	"E122": {
		Category:   CategoryConfig,
		Message:    "Asset manifest could not be loaded",
		Suggestion: "Check static.manifest; it must name a JSON object of source to fingerprinted file names inside static.dir.",
	},

	// ============================================
	// Storage errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryStorage,
		Message:  "Snapshot archive failed",
		Detail:   "The snapshot could not be written to the archive. Rendering is not affected.",
	},
}

// GetAllCodes returns all registered codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
