package command

import "strings"

const maxSuggestions = 5

type Command struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	// Insert 选择后填入输入框的文本
	Insert string `json:"insert"`
}

var commands = []Command{
	{Name: "/summarize", Label: "Суммировать", Insert: "/summarize "},
	{Name: "/explain", Label: "Объяснить", Insert: "/explain "},
	{Name: "/translate", Label: "Перевести", Insert: "/translate "},
	{Name: "/code", Label: "Код", Insert: "/code "},
	{Name: "/research", Label: "Исследовать", Insert: "/research "},
}

// All 返回全部命令的副本
func All() []Command {
	out := make([]Command, len(commands))
	copy(out, commands)
	return out
}

// Suggest 输入以 "/" 开头时返回以输入为前缀的命令，最多 5 个
func Suggest(input string) []Command {
	if !strings.HasPrefix(input, "/") {
		return []Command{}
	}

	out := make([]Command, 0, maxSuggestions)
	for _, c := range commands {
		if strings.HasPrefix(c.Name, input) {
			out = append(out, c)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
