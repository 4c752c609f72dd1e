package content

import "strings"

// Format 按固定顺序渲染非空字段，块之间空一行；"Развернуто" 的内容另起一行
func Format(doc *Document) string {
	if doc == nil {
		return ""
	}

	out := make([]string, 0, len(labels))
	for i, f := range doc.fields() {
		if *f == "" {
			continue
		}
		if labels[i] == LabelLong {
			out = append(out, labels[i]+":\n"+*f)
			continue
		}
		out = append(out, labels[i]+": "+*f)
	}
	return strings.Join(out, "\n\n")
}

// FormatResponse 模型输出能解码为 JSON 文档时渲染为标签文本，否则原样返回
func FormatResponse(raw string) string {
	doc, ok := decodeJSON(raw)
	if !ok {
		return raw
	}
	if formatted := Format(doc); formatted != "" {
		return formatted
	}
	return raw
}
