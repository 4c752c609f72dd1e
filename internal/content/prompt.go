package content

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// DefaultType 默认内容类型
const DefaultType = "Статья/Пост"

var contentTypes = []string{
	"Статья/Пост",
	"Описание товара",
	"Твит/Короткий пост",
	"Сценарий видео",
	"Письмо/Рассылка",
}

// Types 返回可选的内容类型
func Types() []string {
	out := make([]string, len(contentTypes))
	copy(out, contentTypes)
	return out
}

// FString 模板中字面量花括号需要写成 {{ }}
const systemTemplate = `Ты — помощник контент-мейкера. Тип контента: {content_type}.
СТРОГО СЛЕДУЙ ФОРМАТУ: ответ ТОЛЬКО JSON без пояснений и текста вокруг.
Структура:
{{"short":"короткий ответ (1–2 предложения)","long":"развернутый ответ (3–6 абзацев)","keywords":"1-3 слова","title":"кликбейтный заголовок","cta":"призыв к действию в 1 фразе"}}
Никаких префиксов (например, "Заголовок:"), никаких markdown. Только JSON.
Запрос: {user_query}`

// Prompt 构造内容生成模式下发送给模型的系统消息
type Prompt struct {
	tpl prompt.ChatTemplate
}

func NewPrompt() *Prompt {
	return &Prompt{
		tpl: prompt.FromMessages(schema.FString, schema.SystemMessage(systemTemplate)),
	}
}

// Build 返回只包含一条系统消息的对话；contentType 为空时使用默认类型
func (p *Prompt) Build(ctx context.Context, contentType, userText string) ([]*schema.Message, error) {
	if contentType == "" {
		contentType = DefaultType
	}

	msgs, err := p.tpl.Format(ctx, map[string]any{
		"content_type": contentType,
		"user_query":   userText,
	})
	if err != nil {
		return nil, fmt.Errorf("format content prompt: %w", err)
	}
	return msgs, nil
}
