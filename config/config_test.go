package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFillsDefaults(t *testing.T) {
	c := &Config{
		ServerURL:  " wss://chat.example.com/ws ",
		HistoryURL: "https://api.example.com",
	}
	require.NoError(t, c.Validate())

	assert.Equal(t, "wss://chat.example.com/ws", c.ServerURL)
	assert.Equal(t, DefaultTypingTTL, c.TypingTTL)
	assert.Equal(t, DefaultTypingInterval, c.TypingInterval)
	assert.Equal(t, DefaultCallTimeout, c.CallTimeout)
	assert.Equal(t, DefaultMaxBackoff, c.MaxBackoff)
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]Config{
		"missing server url":  {HistoryURL: "https://api.example.com"},
		"http server url":     {ServerURL: "https://chat.example.com", HistoryURL: "https://api.example.com"},
		"missing history url": {ServerURL: "ws://chat.example.com/ws"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			c := c
			assert.Error(t, c.Validate())
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CHAT_SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("CHAT_HISTORY_URL", "https://api.example.com")
	t.Setenv("CHAT_UPLOAD_URL", "https://img.example.com/upload")
	t.Setenv("CHAT_PASSCODE", "s3cret")
	t.Setenv("CHAT_TYPING_TTL", "5s")
	t.Setenv("CHAT_MAX_BACKOFF", "")

	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/ws", c.ServerURL)
	assert.Equal(t, "s3cret", c.Passcode)
	assert.Equal(t, 5*time.Second, c.TypingTTL)
	assert.Equal(t, DefaultMaxBackoff, c.MaxBackoff, "unset durations fall back")
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("CHAT_SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("CHAT_HISTORY_URL", "https://api.example.com")
	t.Setenv("CHAT_TYPING_TTL", "five seconds")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url = "wss://chat.example.com/ws"
history_url = "https://api.example.com"
passcode = "s3cret"
typing_ttl = "4s"
typing_interval = "250ms"
`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/ws", c.ServerURL)
	assert.Equal(t, "s3cret", c.Passcode)
	assert.Equal(t, 4*time.Second, c.TypingTTL)
	assert.Equal(t, 250*time.Millisecond, c.TypingInterval)
	assert.Equal(t, DefaultCallTimeout, c.CallTimeout)
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url = "wss://chat.example.com/ws"
history_url = "https://api.example.com"
typing_ttl = "later"
`), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
