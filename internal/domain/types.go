package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by ports and classified by the controller.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPermissionDenied  = errors.New("microphone access denied")
	ErrNoInputDevice     = errors.New("no microphone found")
	ErrMalformedResponse = errors.New("malformed response")
)

// RemoteError is a non-2xx response from the companion API. Detail holds
// the server's structured error detail when one was present, else the raw
// body text.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("API error: %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Detail)
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerCompanion Speaker = "companion"
	SpeakerSystem    Speaker = "system"
)

// Emotion tags a companion reply for the UI's emotion indicator.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionNeutral   Emotion = "neutral"
	EmotionExcited   Emotion = "excited"
	EmotionConfused  Emotion = "confused"
	EmotionSurprised Emotion = "surprised"
)

// NormalizeEmotion maps a server-provided emotion onto the known set,
// defaulting to neutral for anything absent or unrecognized.
func NormalizeEmotion(raw string) Emotion {
	switch Emotion(raw) {
	case EmotionHappy, EmotionSad, EmotionNeutral, EmotionExcited, EmotionConfused, EmotionSurprised:
		return Emotion(raw)
	default:
		return EmotionNeutral
	}
}

// TranscriptEntry is one line of the append-only conversation log.
type TranscriptEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Emotion Emotion `json:"emotion,omitempty"`
}

// Mode is a server-defined behavioral profile for the companion.
type Mode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

// Model identifies a backing language model.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordingState models the record-button lifecycle.
type RecordingState string

const (
	RecordingStateIdle                 RecordingState = "idle"
	RecordingStateRequestingPermission RecordingState = "requesting_permission"
	RecordingStateRecording            RecordingState = "recording"
	RecordingStateStopping             RecordingState = "stopping"
)

// StatusKind is a structured class for status-line notifications.
type StatusKind string

const (
	StatusReady              StatusKind = "ready"
	StatusLoadingModes       StatusKind = "loading_modes"
	StatusModesLoaded        StatusKind = "modes_loaded"
	StatusModesLoadFailed    StatusKind = "modes_load_failed"
	StatusLoadingModels      StatusKind = "loading_models"
	StatusModelsLoaded       StatusKind = "models_loaded"
	StatusModelsDefaulted    StatusKind = "models_defaulted"
	StatusSwitchingMode      StatusKind = "switching_mode"
	StatusModeSwitched       StatusKind = "mode_switched"
	StatusModeSwitchFailed   StatusKind = "mode_switch_failed"
	StatusSwitchingModel     StatusKind = "switching_model"
	StatusModelSwitched      StatusKind = "model_switched"
	StatusModelSwitchFailed  StatusKind = "model_switch_failed"
	StatusRequestingMic      StatusKind = "requesting_mic"
	StatusMicError           StatusKind = "mic_error"
	StatusRecording          StatusKind = "recording"
	StatusProcessingAudio    StatusKind = "processing_audio"
	StatusProcessingSpeech   StatusKind = "processing_speech"
	StatusRecordingTooShort  StatusKind = "recording_too_short"
	StatusSpeechUnrecognized StatusKind = "speech_unrecognized"
	StatusSpeechFailed       StatusKind = "speech_failed"
	StatusThinking           StatusKind = "thinking"
	StatusChatTimeout        StatusKind = "chat_timeout"
	StatusNetworkError       StatusKind = "network_error"
	StatusServiceNotFound    StatusKind = "service_not_found"
	StatusServerError        StatusKind = "server_error"
	StatusServiceUnavailable StatusKind = "service_unavailable"
	StatusChatFailed         StatusKind = "chat_failed"
	StatusPlayingAudio       StatusKind = "playing_audio"
	StatusPlaybackFailed     StatusKind = "playback_failed"
)

// ChatReply is a decoded companion response.
type ChatReply struct {
	Text     string `json:"text"`
	Emotion  string `json:"emotion,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// VoiceResult is the decoded transcription of a voice submission.
type VoiceResult struct {
	Text string `json:"text"`
}

// Status summarizes the current session status for the UI.
type Status struct {
	State   RecordingState `json:"state"`
	Active  bool           `json:"active"`
	Message string         `json:"message,omitempty"`
}
