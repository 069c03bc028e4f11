// Package htmlsanitize cleans user-supplied text before it is stored.
//
// Two policies are provided. Sanitize keeps a safe subset of formatting
// HTML and is used for long-form descriptions (NGO profiles, camp
// details). PlainText removes all markup, leaves the text HTML-escaped,
// and is used for chat messages, titles and moderator notes.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richOnce sync.Once
	rich     *bluemonday.Policy

	strictOnce sync.Once
	strict     *bluemonday.Policy
)

func richPolicy() *bluemonday.Policy {
	richOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").OnElements("table", "th", "td")
		p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		rich = p
	})
	return rich
}

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// Sanitize returns s with unsafe elements and attributes removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return richPolicy().Sanitize(s)
}

// PlainText strips every tag from s and trims surrounding whitespace.
// The result stays HTML-escaped: text such as "&lt;b&gt;" is kept as
// escaped text and never decoded into markup.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strictPolicy().Sanitize(s))
}
