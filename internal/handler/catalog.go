package handler

import (
	"net/http"

	"kynor-backend/internal/command"
	"kynor-backend/internal/completion"
	"kynor-backend/internal/config"
	"kynor-backend/internal/content"
	"kynor-backend/internal/model"

	"github.com/gin-gonic/gin"
)

// CatalogHandler 只读的静态列表：模型、斜杠命令、内容类型
type CatalogHandler struct {
	defaultModel       string
	defaultContentType string
}

func NewCatalogHandler(cfg *config.Config) *CatalogHandler {
	h := &CatalogHandler{
		defaultModel:       cfg.Completion.DefaultModel,
		defaultContentType: cfg.Content.DefaultType,
	}
	if h.defaultModel == "" {
		h.defaultModel = completion.DefaultModel
	}
	if h.defaultContentType == "" {
		h.defaultContentType = content.DefaultType
	}
	return h
}

func (h *CatalogHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, model.ModelsResponse{
		Models:   completion.SupportedModels(),
		Default:  h.defaultModel,
		Fallback: completion.FallbackModel,
	})
}

// Commands 带 input 参数时返回补全建议，否则返回全部命令
func (h *CatalogHandler) Commands(c *gin.Context) {
	input, ok := c.GetQuery("input")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"commands": command.All()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": command.Suggest(input)})
}

func (h *CatalogHandler) ContentTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"types":   content.Types(),
		"default": h.defaultContentType,
	})
}
