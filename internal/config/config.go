package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Content    ContentConfig    `mapstructure:"content"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Preference PreferenceConfig `mapstructure:"preference"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CompletionConfig 补全接口配置；provider 取值 openai | qwen | ark
type CompletionConfig struct {
	Provider     string        `mapstructure:"provider"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	DefaultModel string        `mapstructure:"default_model"`
	Temperature  float32       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

// SupabaseConfig 远端存储（REST）配置，URL 与 Key 同时存在时才启用镜像
type SupabaseConfig struct {
	URL     string        `mapstructure:"url"`
	AnonKey string        `mapstructure:"anon_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.AnonKey != ""
}

type ContentConfig struct {
	DefaultType string `mapstructure:"default_type"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type StorageConfig struct {
	Type    string `mapstructure:"type"`
	DataDir string `mapstructure:"data_dir"`
	// BackupInterval 为 0 时不做定时备份
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

type PreferenceConfig struct {
	Path string `mapstructure:"path"`
}

// Credentials 仅从环境变量读取的密钥
type Credentials struct {
	GroqAPIKey      string `env:"GROQ_API_KEY"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
}

var (
	cfg *Config
	v   *viper.Viper
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("completion.provider", "openai")
	v.SetDefault("completion.default_model", "groq/compound")
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.timeout", 60*time.Second)

	v.SetDefault("supabase.timeout", 15*time.Second)
	v.SetDefault("content.default_type", "Статья/Пост")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.backup_interval", 24*time.Hour)
	v.SetDefault("preference.path", "./data/preferences.toml")
}

// Load 读取配置文件；文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	v = viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 配置文件优先，如果配置文件中没有设置，则使用环境变量
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if loaded.Completion.APIKey == "" {
		loaded.Completion.APIKey = creds.GroqAPIKey
	}
	if loaded.Supabase.URL == "" {
		loaded.Supabase.URL = creds.SupabaseURL
	}
	if loaded.Supabase.AnonKey == "" {
		loaded.Supabase.AnonKey = creds.SupabaseAnonKey
	}

	cfg = loaded
	return cfg, nil
}

// Watch 监听配置文件变化，仅在通过文件加载时生效
func Watch(onChange func(*Config)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write && e.Op&fsnotify.Create != fsnotify.Create {
			return
		}
		updated := &Config{}
		if err := v.Unmarshal(updated); err != nil {
			return
		}
		onChange(updated)
	})
	v.WatchConfig()
}

func Get() *Config {
	return cfg
}
