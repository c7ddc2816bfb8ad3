// Package redact removes credential-like substrings from text before it is
// persisted to run state or surfaced in logs.
package redact

import "regexp"

const Marker = "[REDACTED]"

// Each pattern keeps the identifying prefix (capture group 1, when present)
// and drops the secret value itself.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key\s*[=:]\s*)\S+`),
	regexp.MustCompile(`(?i)(authorization\s*[=:]\s*)\S+(\s+\S+)?`),
	regexp.MustCompile(`(?i)(basic\s+)[A-Za-z0-9+/=]{8,}`),
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`),
	regexp.MustCompile(`(?i)(password\s*[=:]\s*)\S+`),
	regexp.MustCompile(`(?i)(secret\s*[=:]\s*)\S+`),
	regexp.MustCompile(`(?i)(token\s*[=:]\s*)\S+`),
	regexp.MustCompile(`(?i)(https?://)[^/\s:@]+:[^/\s@]+@`),
}

var replacements = []string{
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker,
	"${1}" + Marker + "@",
}

// Sanitize replaces every sensitive-looking substring with the redaction
// marker, case-insensitively. Non-sensitive text passes through unchanged.
func Sanitize(text string) string {
	for i, pattern := range patterns {
		text = pattern.ReplaceAllString(text, replacements[i])
	}
	return text
}
