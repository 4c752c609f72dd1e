package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTML(t *testing.T) {
	assert.Equal(t, "", HTML(""))

	out := HTML("**bold** and `code`")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<code>code</code>")
}

func TestHTML_FencedCode(t *testing.T) {
	out := HTML("```go\nfmt.Println(1)\n```\n")
	assert.Contains(t, out, "<pre><code")
	assert.Contains(t, out, "fmt.Println(1)")
}

func TestHTML_SkipsRawHTML(t *testing.T) {
	out := HTML("<script>alert(1)</script>\n\nhello")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}
