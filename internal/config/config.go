// Package config handles application configuration from environment variables
// and the YAML sources file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cnjp_news/internal/classify"
	"cnjp_news/internal/model"
)

// DefaultConfigPath is used when CONFIG_PATH is unset.
const DefaultConfigPath = "configs/sources.yaml"

// Config holds the application configuration.
type Config struct {
	ArchiveDir   string
	HomeFeedPath string
	WindowDays   int
	HomeCap      int
	Interval     time.Duration

	DatabasePath string
	LockTTL      time.Duration
	LogLevel     string
	ConfigPath   string

	Translate Translate

	TelegramBotToken string
	TelegramChatID   int64
	// TelegramAPIEndpoint is a Bot API URL pattern with two %s verbs (token, method).
	TelegramAPIEndpoint string

	YouTubeAPIKey string
	StreamsOutput string
	R2            R2

	Sources    []model.Source
	Categories []classify.Rule
	Streams    []model.StreamChannel
}

// Translate configures the headline translator.
type Translate struct {
	Enabled    bool
	Endpoint   string
	Timeout    time.Duration
	Workers    int
	SourceLang string
	TargetLang string
	// TCLang enables the Traditional Chinese title when non-empty.
	TCLang string
}

// R2 holds Cloudflare R2 credentials for the stream snapshot upload.
type R2 struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Configured reports whether all credentials are present.
func (r R2) Configured() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != ""
}

// File is the layout of the YAML config file.
type File struct {
	Sources    []model.Source        `yaml:"sources"`
	Categories []classify.Rule       `yaml:"categories"`
	Streams    []model.StreamChannel `yaml:"streams"`
}

// Load reads configuration from a .env file (if present), environment
// variables and the YAML file at CONFIG_PATH.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ArchiveDir:   envOrDefault("ARCHIVE_DIR", "./public/archive"),
		HomeFeedPath: envOrDefault("HOME_FEED_PATH", "./public/data.json"),
		DatabasePath: os.Getenv("DATABASE_PATH"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		ConfigPath:   envOrDefault("CONFIG_PATH", DefaultConfigPath),

		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIEndpoint: os.Getenv("TELEGRAM_API_ENDPOINT"),
		YouTubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
		StreamsOutput:       envOrDefault("STREAMS_OUTPUT", "./public/live_data.json"),
		R2: R2{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("CLOUDFLARE_R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY"),
			Bucket:          envOrDefault("R2_BUCKET_NAME", "cnjp-data"),
		},
		Translate: Translate{
			Endpoint:   os.Getenv("TRANSLATE_ENDPOINT"),
			SourceLang: envOrDefault("TRANSLATE_SOURCE", "auto"),
			TargetLang: envOrDefault("TRANSLATE_TARGET", "zh-CN"),
			TCLang:     os.Getenv("TRANSLATE_TC_TARGET"),
		},
	}

	var err error
	if cfg.WindowDays, err = envInt("WINDOW_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.HomeCap, err = envInt("HOME_CAP", 100); err != nil {
		return nil, err
	}
	if cfg.Translate.Workers, err = envInt("TRANSLATE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Interval, err = envDuration("RUN_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = envDuration("LOCK_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Translate.Timeout, err = envDuration("TRANSLATE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Translate.Enabled, err = envBool("TRANSLATE_ENABLED", true); err != nil {
		return nil, err
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.WindowDays <= 0 {
		return nil, fmt.Errorf("WINDOW_DAYS must be positive, got %d", cfg.WindowDays)
	}
	if cfg.HomeCap < 0 {
		return nil, fmt.Errorf("HOME_CAP must not be negative, got %d", cfg.HomeCap)
	}

	file, err := LoadFile(cfg.ConfigPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && cfg.ConfigPath == DefaultConfigPath:
		file = &File{}
	case err != nil:
		return nil, err
	}
	cfg.Sources = file.Sources
	cfg.Categories = file.Categories
	cfg.Streams = file.Streams
	if len(cfg.Categories) == 0 {
		cfg.Categories = classify.DefaultRules()
	}

	return cfg, nil
}

// LoadFile parses and validates the YAML config file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	names := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("source %d: name and url are required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate source %q", s.Name)
		}
		if s.Limit < 0 {
			return fmt.Errorf("source %q: negative limit", s.Name)
		}
		names[s.Name] = true
	}
	if err := classify.Validate(f.Categories); err != nil {
		return err
	}
	for i, s := range f.Streams {
		if s.ID == "" || s.ChannelID == "" {
			return fmt.Errorf("stream %d: id and channel_id are required", i)
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
