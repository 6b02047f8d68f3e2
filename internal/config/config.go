package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the companion client.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Capture CaptureConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL     string
	STTTimeout  time.Duration
	ChatTimeout time.Duration
}

type SessionConfig struct {
	RecordLimit   time.Duration
	MinAudioBytes int
	DefaultModel  string
	UserID        string
	ChunkSize     int
}

// CaptureConfig selects and tunes the microphone capture backend.
type CaptureConfig struct {
	Backend       string
	FFmpegCommand string
	InputFormat   string
	InputDevice   string
	SampleRate    int
	Channels      int
}

type LogConfig struct {
	Level string
}

const (
	CaptureBackendBridge = "bridge"
	CaptureBackendFFmpeg = "ffmpeg"
)

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		API: APIConfig{
			BaseURL:     envOrDefault("COMPANION_API_BASE", "http://localhost:8000"),
			STTTimeout:  time.Duration(envOrDefaultInt("COMPANION_STT_TIMEOUT_MS", 60000)) * time.Millisecond,
			ChatTimeout: time.Duration(envOrDefaultInt("COMPANION_CHAT_TIMEOUT_MS", 120000)) * time.Millisecond,
		},
		Session: SessionConfig{
			RecordLimit:   time.Duration(envOrDefaultInt("COMPANION_RECORD_LIMIT_MS", 60000)) * time.Millisecond,
			MinAudioBytes: envOrDefaultInt("COMPANION_MIN_AUDIO_BYTES", 1000),
			DefaultModel:  envOrDefault("COMPANION_DEFAULT_MODEL", "tinyllama:latest"),
			UserID:        envOrDefault("COMPANION_USER_ID", "web_user"),
			ChunkSize:     envOrDefaultInt("COMPANION_AUDIO_CHUNK_SIZE", 4096),
		},
		Capture: CaptureConfig{
			Backend:       envOrDefault("COMPANION_CAPTURE", CaptureBackendBridge),
			FFmpegCommand: envOrDefault("COMPANION_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:   envOrDefault("COMPANION_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:   envOrDefault("COMPANION_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:    envOrDefaultInt("COMPANION_SAMPLE_RATE", 16000),
			Channels:      envOrDefaultInt("COMPANION_CHANNELS", 1),
		},
		Log: LogConfig{
			Level: envOrDefault("COMPANION_LOG_LEVEL", "info"),
		},
	}

	if cfg.API.STTTimeout <= 0 {
		cfg.API.STTTimeout = 60 * time.Second
	}
	if cfg.API.ChatTimeout <= 0 {
		cfg.API.ChatTimeout = 120 * time.Second
	}
	if cfg.Session.RecordLimit <= 0 {
		cfg.Session.RecordLimit = 60 * time.Second
	}
	if cfg.Session.MinAudioBytes < 0 {
		cfg.Session.MinAudioBytes = 0
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.Backend != CaptureBackendFFmpeg {
		cfg.Capture.Backend = CaptureBackendBridge
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
