// Package render 把助手消息的 Markdown 渲染为 HTML。
package render

import (
	"github.com/russross/blackfriday"
)

const extensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_TABLES |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_STRIKETHROUGH |
	blackfriday.EXTENSION_HARD_LINE_BREAK

const htmlFlags = blackfriday.HTML_SKIP_HTML |
	blackfriday.HTML_SKIP_STYLE |
	blackfriday.HTML_SAFELINK |
	blackfriday.HTML_USE_XHTML

func HTML(content string) string {
	if content == "" {
		return ""
	}
	renderer := blackfriday.HtmlRenderer(htmlFlags, "", "")
	return string(blackfriday.Markdown([]byte(content), renderer, extensions))
}
