package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"COMPANION_API_BASE", "COMPANION_STT_TIMEOUT_MS", "COMPANION_CHAT_TIMEOUT_MS",
		"COMPANION_RECORD_LIMIT_MS", "COMPANION_MIN_AUDIO_BYTES", "COMPANION_DEFAULT_MODEL",
		"COMPANION_USER_ID", "COMPANION_CAPTURE", "COMPANION_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.STTTimeout != 60*time.Second {
		t.Errorf("STTTimeout = %v", cfg.API.STTTimeout)
	}
	if cfg.API.ChatTimeout != 120*time.Second {
		t.Errorf("ChatTimeout = %v", cfg.API.ChatTimeout)
	}
	if cfg.Session.RecordLimit != 60*time.Second {
		t.Errorf("RecordLimit = %v", cfg.Session.RecordLimit)
	}
	if cfg.Session.MinAudioBytes != 1000 {
		t.Errorf("MinAudioBytes = %d", cfg.Session.MinAudioBytes)
	}
	if cfg.Session.DefaultModel != "tinyllama:latest" {
		t.Errorf("DefaultModel = %q", cfg.Session.DefaultModel)
	}
	if cfg.Session.UserID != "web_user" {
		t.Errorf("UserID = %q", cfg.Session.UserID)
	}
	if cfg.Capture.Backend != CaptureBackendBridge {
		t.Errorf("Capture.Backend = %q", cfg.Capture.Backend)
	}
	if cfg.Capture.SampleRate != 16000 || cfg.Capture.Channels != 1 {
		t.Errorf("capture audio params = %d/%d", cfg.Capture.SampleRate, cfg.Capture.Channels)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COMPANION_API_BASE", "http://companion.lan:9000")
	t.Setenv("COMPANION_STT_TIMEOUT_MS", "5000")
	t.Setenv("COMPANION_CHAT_TIMEOUT_MS", "30000")
	t.Setenv("COMPANION_RECORD_LIMIT_MS", "15000")
	t.Setenv("COMPANION_MIN_AUDIO_BYTES", "500")
	t.Setenv("COMPANION_DEFAULT_MODEL", "mistral")
	t.Setenv("COMPANION_USER_ID", "kiosk")
	t.Setenv("COMPANION_CAPTURE", "ffmpeg")
	t.Setenv("COMPANION_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "http://companion.lan:9000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.STTTimeout != 5*time.Second {
		t.Errorf("STTTimeout = %v", cfg.API.STTTimeout)
	}
	if cfg.API.ChatTimeout != 30*time.Second {
		t.Errorf("ChatTimeout = %v", cfg.API.ChatTimeout)
	}
	if cfg.Session.RecordLimit != 15*time.Second {
		t.Errorf("RecordLimit = %v", cfg.Session.RecordLimit)
	}
	if cfg.Session.MinAudioBytes != 500 {
		t.Errorf("MinAudioBytes = %d", cfg.Session.MinAudioBytes)
	}
	if cfg.Session.DefaultModel != "mistral" {
		t.Errorf("DefaultModel = %q", cfg.Session.DefaultModel)
	}
	if cfg.Session.UserID != "kiosk" {
		t.Errorf("UserID = %q", cfg.Session.UserID)
	}
	if cfg.Capture.Backend != CaptureBackendFFmpeg {
		t.Errorf("Capture.Backend = %q", cfg.Capture.Backend)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("COMPANION_STT_TIMEOUT_MS", "not-a-number")
	t.Setenv("COMPANION_RECORD_LIMIT_MS", "-100")
	t.Setenv("COMPANION_AUDIO_CHUNK_SIZE", "10")
	t.Setenv("COMPANION_CAPTURE", "alsa-direct")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.STTTimeout != 60*time.Second {
		t.Errorf("unparseable timeout should fall back, got %v", cfg.API.STTTimeout)
	}
	if cfg.Session.RecordLimit != 60*time.Second {
		t.Errorf("negative record limit should be clamped, got %v", cfg.Session.RecordLimit)
	}
	if cfg.Session.ChunkSize != 4096 {
		t.Errorf("undersized chunk should be clamped, got %d", cfg.Session.ChunkSize)
	}
	if cfg.Capture.Backend != CaptureBackendBridge {
		t.Errorf("unknown capture backend should fall back, got %q", cfg.Capture.Backend)
	}
}
