package ports

import (
	"context"
	"io"

	"companion/internal/domain"
)

// VoiceRequest carries a recorded audio blob and its submission metadata.
type VoiceRequest struct {
	Audio         []byte
	Model         string
	Mode          string
	GenerateAudio bool
	UserID        string
}

// ChatRequest carries a chat message for the companion.
type ChatRequest struct {
	Text          string
	Model         string
	GenerateAudio bool
}

// CompanionGateway is the remote companion API consumed by the controller.
type CompanionGateway interface {
	ListModes(ctx context.Context) ([]domain.Mode, error)
	ListModels(ctx context.Context) ([]domain.Model, error)
	SetMode(ctx context.Context, id string) error
	SetModel(ctx context.Context, id string) error
	TranscribeVoice(ctx context.Context, req VoiceRequest) (domain.VoiceResult, error)
	Chat(ctx context.Context, req ChatRequest) (domain.ChatReply, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CaptureSession is a live microphone capture.
type CaptureSession interface {
	io.ReadCloser
	Stop() error
}

// Recorder acquires microphone capture sessions. Start fails with
// domain.ErrPermissionDenied or domain.ErrNoInputDevice when applicable.
type Recorder interface {
	Start(ctx context.Context) (CaptureSession, error)
}

// Player plays a companion audio response, blocking until playback
// completes or fails.
type Player interface {
	PlayBytes(ctx context.Context, data []byte) error
	PlayURL(ctx context.Context, url string) error
}

// EventSink pushes controller state to the UI.
type EventSink interface {
	TranscriptAppended(entry domain.TranscriptEntry)
	StatusChanged(kind domain.StatusKind, detail string)
	EmotionChanged(emotion domain.Emotion)
	TypingStarted(token string)
	TypingFinished(token string)
}
