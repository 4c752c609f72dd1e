// Package content 处理"内容生成"模式下的结构化文档：解析模型输出并渲染为带标签的文本。
package content

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Document 是从模型输出中提取的五字段文档，所有字段均可为空
type Document struct {
	Title    string `json:"title,omitempty"`
	Short    string `json:"short,omitempty"`
	Long     string `json:"long,omitempty"`
	Keywords string `json:"keywords,omitempty"`
	CTA      string `json:"cta,omitempty"`
}

// 字段标签，顺序即渲染顺序
const (
	LabelTitle    = "Заголовок"
	LabelShort    = "Коротко"
	LabelLong     = "Развернуто"
	LabelKeywords = "Ключевые слова"
	LabelCTA      = "CTA"
)

var labels = []string{LabelTitle, LabelShort, LabelLong, LabelKeywords, LabelCTA}

func (d *Document) fields() []*string {
	return []*string{&d.Title, &d.Short, &d.Long, &d.Keywords, &d.CTA}
}

// IsEmpty 所有字段都为空
func (d *Document) IsEmpty() bool {
	for _, f := range d.fields() {
		if *f != "" {
			return false
		}
	}
	return true
}

// Parse 先尝试 JSON 解码，失败后按标签块扫描；没有任何非空字段时返回 nil
func Parse(raw string) *Document {
	if doc, ok := decodeJSON(raw); ok && !doc.IsEmpty() {
		return doc
	}

	doc := scanLabeled(raw)
	if doc.IsEmpty() {
		return nil
	}
	return doc
}

func decodeJSON(raw string) (*Document, bool) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

// scanLabeled 逐行扫描：标签行开启一个块，块持续到下一个标签行或文本结束。
// 同一标签只取第一次出现的块。
func scanLabeled(raw string) *Document {
	doc := &Document{}
	slots := doc.fields()
	seen := make([]bool, len(labels))

	current := -1
	var buf []string
	flush := func() {
		if current < 0 || seen[current] {
			return
		}
		*slots[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		seen[current] = true
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if idx, rest, ok := matchLabel(line); ok {
			flush()
			current = idx
			buf = []string{rest}
			continue
		}
		if current >= 0 {
			buf = append(buf, line)
		}
	}
	flush()

	return doc
}

// matchLabel 判断一行是否以"标签:"开头（允许前导空白、标签与冒号间空白，大小写不敏感）
func matchLabel(line string) (int, string, bool) {
	s := []rune(strings.TrimLeftFunc(line, unicode.IsSpace))
	for i, label := range labels {
		n := len([]rune(label))
		if len(s) < n || !equalFold(string(s[:n]), label) {
			continue
		}
		tail := strings.TrimLeftFunc(string(s[n:]), unicode.IsSpace)
		if !strings.HasPrefix(tail, ":") {
			continue
		}
		return i, strings.TrimLeftFunc(tail[1:], unicode.IsSpace), true
	}
	return -1, "", false
}

// cases.Caser 有状态，不能跨 goroutine 共享
func equalFold(a, b string) bool {
	return cases.Fold().String(a) == cases.Fold().String(b)
}
