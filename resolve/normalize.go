package resolve

import (
	"strings"
	"unicode"
)

// NormalizePhone strips every non-digit so that formatting differences
// ("+1 (555) 010-2030" vs "15550102030") do not defeat identifier matching.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeURL lowercases and strips scheme, "www." and trailing slashes.
func NormalizeURL(url string) string {
	url = strings.ToLower(url)
	for _, prefix := range []string{"https://", "http://", "www."} {
		url = strings.TrimPrefix(url, prefix)
	}
	return strings.TrimRight(url, "/")
}

var (
	namePrefixes = map[string]bool{"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true}
	nameSuffixes = map[string]bool{"jr": true, "sr": true, "phd": true, "md": true, "dds": true, "esq": true}
)

// NormalizeName lowercases a personal name and strips honorific prefixes
// and generational or credential suffixes.
func NormalizeName(name string) string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) > 0 && namePrefixes[strings.TrimSuffix(parts[0], ".")] {
		parts = parts[1:]
	}
	if len(parts) > 0 && nameSuffixes[strings.TrimSuffix(parts[len(parts)-1], ".")] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}
