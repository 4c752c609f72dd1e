package service

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"kynor-backend/internal/preference"
	"kynor-backend/pkg/logger"
)

type PreferenceService struct {
	store *preference.Store
}

func NewPreferenceService(store *preference.Store) *PreferenceService {
	return &PreferenceService{store: store}
}

func (s *PreferenceService) Get() preference.State {
	return s.store.Get()
}

func (s *PreferenceService) SetTheme(theme string) (preference.State, error) {
	err := validation.Validate(theme,
		validation.Required,
		validation.In(string(preference.ThemeLight), string(preference.ThemeDark)),
	)
	if err != nil {
		return s.store.Get(), validation.Errors{"theme": err}
	}
	return s.store.SetTheme(preference.Theme(theme))
}

func (s *PreferenceService) ToggleTheme() (preference.State, error) {
	return s.store.ToggleTheme()
}

// GenerateCode 只生成候选登录码，登录时才保存
func (s *PreferenceService) GenerateCode() string {
	return preference.GenerateCode()
}

func (s *PreferenceService) Login(code string) (preference.State, error) {
	if err := validation.Validate(strings.TrimSpace(code), validation.Required); err != nil {
		return s.store.Get(), validation.Errors{"code": err}
	}

	st, err := s.store.Login(code)
	if err != nil {
		return st, err
	}
	logger.Info("Auth code saved")
	return st, nil
}

func (s *PreferenceService) Logout() (preference.State, error) {
	return s.store.Logout()
}
