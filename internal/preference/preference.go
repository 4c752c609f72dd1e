// Package preference 本地持久化的界面偏好与匿名登录码。
package preference

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
)

var (
	ErrInvalidTheme = errors.New("invalid theme")
	ErrEmptyCode    = errors.New("auth code is required")
)

// State 持久化内容；AuthCode 为空表示未登录
type State struct {
	Theme    Theme  `toml:"theme" json:"theme"`
	AuthCode string `toml:"auth_code,omitempty" json:"auth_code,omitempty"`
}

func (s State) LoggedIn() bool {
	return s.AuthCode != ""
}

func ParseTheme(value string) (Theme, error) {
	switch Theme(value) {
	case ThemeLight, ThemeDark:
		return Theme(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, value)
	}
}

// Store 偏好存储；path 为空时只保存在内存
type Store struct {
	path  string
	mu    sync.RWMutex
	state State
}

func NewStore(path string) *Store {
	return &Store{
		path:  path,
		state: State{Theme: ThemeLight},
	}
}

// Load 读取文件；文件不存在或主题非法时使用默认值
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{Theme: ThemeLight}
	if s.path == "" {
		return nil
	}

	var loaded State
	if _, err := toml.DecodeFile(s.path, &loaded); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to decode preferences: %w", err)
	}

	if theme, err := ParseTheme(string(loaded.Theme)); err == nil {
		s.state.Theme = theme
	}
	s.state.AuthCode = loaded.AuthCode
	return nil
}

func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

func (s *Store) SetTheme(theme Theme) (State, error) {
	if _, err := ParseTheme(string(theme)); err != nil {
		return s.Get(), err
	}
	return s.update(func(st *State) {
		st.Theme = theme
	})
}

func (s *Store) ToggleTheme() (State, error) {
	return s.update(func(st *State) {
		if st.Theme == ThemeDark {
			st.Theme = ThemeLight
		} else {
			st.Theme = ThemeDark
		}
	})
}

// Login 只校验非空
func (s *Store) Login(code string) (State, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.Get(), ErrEmptyCode
	}
	return s.update(func(st *State) {
		st.AuthCode = code
	})
}

func (s *Store) Logout() (State, error) {
	return s.update(func(st *State) {
		st.AuthCode = ""
	})
}

func (s *Store) update(fn func(*State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	return s.state, s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preference directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.state); err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tempPath, s.path)
}

var (
	codeMu   sync.Mutex
	codeRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateCode 生成 6 位登录码，不要求密码学强度
func GenerateCode() string {
	codeMu.Lock()
	defer codeMu.Unlock()

	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[codeRand.Intn(len(codeAlphabet))]
	}
	return string(out)
}
