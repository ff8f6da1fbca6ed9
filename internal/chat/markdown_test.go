// ABOUTME: Tests for markdown rendering of outbound messages
// ABOUTME: Plain text must not grow a formatted body; structure must

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown_PlainTextSkipsHTML(t *testing.T) {
	_, ok := RenderMarkdown("just a plain sentence")
	assert.False(t, ok)
}

func TestRenderMarkdown_CodeBlock(t *testing.T) {
	html, ok := RenderMarkdown("```\nfmt.Println(\"hi\")\n```")
	assert.True(t, ok)
	assert.Contains(t, html, "<code>")
}

func TestRenderMarkdown_Emphasis(t *testing.T) {
	html, ok := RenderMarkdown("this is **important**")
	assert.True(t, ok)
	assert.Contains(t, html, "<strong>important</strong>")
}

func TestRenderMarkdown_List(t *testing.T) {
	html, ok := RenderMarkdown("- one\n- two")
	assert.True(t, ok)
	assert.Contains(t, html, "<ul>")
	assert.Contains(t, html, "<li>one</li>")
}
