package patterns

import "strings"

// Normalize canonicalizes a URL for domain and scope comparisons. It strips a
// leading http:// or https:// scheme, then a leading "www.", then a single
// trailing slash, and finally lower-cases what remains. The transformation is
// purely textual and never fails.
func Normalize(url string) string {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		url = rest
	} else {
		url = strings.TrimPrefix(url, "http://")
	}
	url = strings.TrimPrefix(url, "www.")
	url = strings.TrimSuffix(url, "/")
	return strings.ToLower(url)
}

// SameScope reports whether one normalized URL is a prefix of the other.
func SameScope(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return strings.HasPrefix(na, nb) || strings.HasPrefix(nb, na)
}

// WithinScope reports whether url lies under base once both are normalized.
func WithinScope(url, base string) bool {
	return strings.HasPrefix(Normalize(url), Normalize(base))
}
