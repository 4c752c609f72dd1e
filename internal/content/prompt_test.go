package content

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_Build(t *testing.T) {
	p := NewPrompt()

	msgs, err := p.Build(context.Background(), "Сценарий видео", "про Go")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Тип контента: Сценарий видео.")
	assert.Contains(t, msgs[0].Content, "Запрос: про Go")
	assert.Contains(t, msgs[0].Content, `{"short":`)
}

func TestPrompt_DefaultType(t *testing.T) {
	msgs, err := NewPrompt().Build(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Content, DefaultType)
}

func TestTypes_ReturnsCopy(t *testing.T) {
	types := Types()
	require.Len(t, types, 5)
	types[0] = "changed"
	assert.Equal(t, DefaultType, Types()[0])
}
