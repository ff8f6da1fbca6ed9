// ABOUTME: Markdown to HTML conversion for formatted Matrix messages
// ABOUTME: Plain single-paragraph text skips the HTML body entirely

package chat

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderMarkdown converts markdown to HTML for a Matrix formatted_body.
// Returns ok=false when the text renders to a single plain paragraph, in
// which case the caller should send the plain body only.
func RenderMarkdown(text string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", false
	}

	html := strings.TrimSpace(buf.String())

	// A bare paragraph means no markdown structure worth a formatted body.
	inner, isParagraph := strings.CutPrefix(html, "<p>")
	if isParagraph {
		inner, isParagraph = strings.CutSuffix(inner, "</p>")
		if isParagraph && !strings.ContainsRune(inner, '<') {
			return "", false
		}
	}

	return html, true
}
