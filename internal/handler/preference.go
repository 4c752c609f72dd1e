package handler

import (
	"net/http"

	"kynor-backend/internal/model"
	"kynor-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	prefService *service.PreferenceService
}

func NewPreferenceHandler(prefService *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{
		prefService: prefService,
	}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewPreferenceResponse(h.prefService.Get()))
}

func (h *PreferenceHandler) SetTheme(c *gin.Context) {
	var req model.ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.prefService.SetTheme(req.Theme)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewPreferenceResponse(st))
}

func (h *PreferenceHandler) ToggleTheme(c *gin.Context) {
	st, err := h.prefService.ToggleTheme()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewPreferenceResponse(st))
}

func (h *PreferenceHandler) GenerateCode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": h.prefService.GenerateCode()})
}

func (h *PreferenceHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.prefService.Login(req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewPreferenceResponse(st))
}

func (h *PreferenceHandler) Logout(c *gin.Context) {
	st, err := h.prefService.Logout()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewPreferenceResponse(st))
}
