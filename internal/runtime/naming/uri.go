package naming

import (
	"net/url"
	"strings"
)

// NormalizeEndpointURI rewrites an endpoint uri into its canonical form:
// "scheme:path" becomes "scheme://path" and query parameters are sorted by key
// and percent-encoded. Inputs without a scheme are returned trimmed.
func NormalizeEndpointURI(uri string) string {
	uri = strings.TrimSpace(uri)
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" {
		return uri
	}
	rest = strings.TrimPrefix(rest, "//")

	path, rawQuery, hasQuery := strings.Cut(rest, "?")
	normalized := scheme + "://" + path
	if !hasQuery || rawQuery == "" {
		return normalized
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// keep the caller's query verbatim rather than dropping parameters
		return normalized + "?" + rawQuery
	}
	return normalized + "?" + values.Encode()
}

// BaseURI returns uri truncated at the first '?'.
func BaseURI(uri string) string {
	base, _, _ := strings.Cut(uri, "?")
	return base
}

// Scheme returns the component scheme of uri, or "" when it has none.
func Scheme(uri string) string {
	scheme, _, ok := strings.Cut(uri, ":")
	if !ok {
		return ""
	}
	return scheme
}
