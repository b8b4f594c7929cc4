// Package htmlsanitize cleans user-written text before it is rendered.
package htmlsanitize

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

// Sanitize strips markup that is unsafe to render, keeping basic formatting.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// RenderText turns line breaks into <br> and sanitizes the result.
func RenderText(s string) template.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br>\n")
	return template.HTML(Sanitize(s))
}
