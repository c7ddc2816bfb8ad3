package billing

import (
	"net/url"
	"regexp"
	"strings"
)

var cursorParamPattern = regexp.MustCompile(`[?&]cursor=([^&\s]+)`)

// ExtractCursor pulls the continuation token out of a "next" value, which the
// server returns either as a bare token or embedded in a page URL. Fallback
// order: full URL parse, then regex extraction of the cursor query parameter,
// then the value itself when it is a plain token. Returns "" when no usable
// cursor is present.
func ExtractCursor(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}

	if parsed, err := url.Parse(next); err == nil {
		if cursor := parsed.Query().Get("cursor"); cursor != "" {
			return cursor
		}
	}

	if match := cursorParamPattern.FindStringSubmatch(next); len(match) == 2 {
		if cursor, err := url.QueryUnescape(match[1]); err == nil {
			return cursor
		}
		return match[1]
	}

	if !strings.ContainsAny(next, "/?&=") {
		return next
	}

	return ""
}
