// Package config carries the knobs the chat core is constructed with.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultTypingTTL      = 3 * time.Second
	DefaultTypingInterval = 300 * time.Millisecond
	DefaultCallTimeout    = 10 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Config configures a chat client. ServerURL is the websocket endpoint;
// HistoryURL and UploadURL are the REST history and image-hosting
// services; Passcode is the shared credential header both REST services
// require.
type Config struct {
	ServerURL  string `toml:"server_url"`
	HistoryURL string `toml:"history_url"`
	UploadURL  string `toml:"upload_url"`
	Passcode   string `toml:"passcode"`

	TypingTTL      time.Duration `toml:"-"`
	TypingInterval time.Duration `toml:"-"`
	CallTimeout    time.Duration `toml:"-"`
	MaxBackoff     time.Duration `toml:"-"`
}

// Validate checks required fields and fills zero durations with defaults.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimSpace(c.ServerURL)
	c.HistoryURL = strings.TrimSpace(c.HistoryURL)
	c.UploadURL = strings.TrimSpace(c.UploadURL)

	if c.ServerURL == "" {
		return errors.New("config: server URL is required")
	}
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("config: server URL must be ws:// or wss://, got %q", c.ServerURL)
	}
	if c.HistoryURL == "" {
		return errors.New("config: history URL is required")
	}

	if c.TypingTTL <= 0 {
		c.TypingTTL = DefaultTypingTTL
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = DefaultTypingInterval
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return nil
}

// FromEnv builds a Config from CHAT_* environment variables, loading a
// .env file first when one is present.
//
//	CHAT_SERVER_URL, CHAT_HISTORY_URL, CHAT_UPLOAD_URL, CHAT_PASSCODE,
//	CHAT_TYPING_TTL, CHAT_TYPING_INTERVAL, CHAT_CALL_TIMEOUT,
//	CHAT_MAX_BACKOFF (durations in Go syntax, e.g. "3s")
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	c := &Config{
		ServerURL:  os.Getenv("CHAT_SERVER_URL"),
		HistoryURL: os.Getenv("CHAT_HISTORY_URL"),
		UploadURL:  os.Getenv("CHAT_UPLOAD_URL"),
		Passcode:   os.Getenv("CHAT_PASSCODE"),
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"CHAT_TYPING_TTL", &c.TypingTTL},
		{"CHAT_TYPING_INTERVAL", &c.TypingInterval},
		{"CHAT_CALL_TIMEOUT", &c.CallTimeout},
		{"CHAT_MAX_BACKOFF", &c.MaxBackoff},
	} {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// fileConfig is the TOML shape; durations are written as strings in Go
// duration syntax ("3s", "300ms").
type fileConfig struct {
	Config
	TypingTTL      string `toml:"typing_ttl"`
	TypingInterval string `toml:"typing_interval"`
	CallTimeout    string `toml:"call_timeout"`
	MaxBackoff     string `toml:"max_backoff"`
}

// LoadFile builds a Config from a TOML file.
func LoadFile(path string) (*Config, error) {
	var f fileConfig
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	c := f.Config
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"typing_ttl", f.TypingTTL, &c.TypingTTL},
		{"typing_interval", f.TypingInterval, &c.TypingInterval},
		{"call_timeout", f.CallTimeout, &c.CallTimeout},
		{"max_backoff", f.MaxBackoff, &c.MaxBackoff},
	} {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
