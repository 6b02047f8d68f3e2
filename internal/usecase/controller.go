package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"companion/internal/domain"
	"companion/internal/ports"
)

// sentinel model id meaning "let the server pick"; never sent on the wire.
const defaultModelSentinel = "default"

// Config controls session behavior and request deadlines.
type Config struct {
	APIBase       string
	STTTimeout    time.Duration
	ChatTimeout   time.Duration
	RecordLimit   time.Duration
	MinAudioBytes int
	DefaultModel  string
	UserID        string
	ChunkSize     int
}

// SessionController orchestrates the chat session: mode/model selection,
// recording lifecycle, voice and text submission, and audio playback. It
// owns all mutable session state; failures never escape it — every error
// becomes a status notification and, where user-facing, a system
// transcript entry.
type SessionController struct {
	gateway  ports.CompanionGateway
	recorder ports.Recorder
	player   ports.Player
	events   ports.EventSink
	log      zerolog.Logger
	cfg      Config

	transcript *transcriptLog

	mu             sync.Mutex
	modes          []domain.Mode
	models         []domain.Model
	currentModeID  string
	currentModelID string
	voiceResponse  bool
	recState       domain.RecordingState
	recording      *recordingSession
}

func NewSessionController(
	gateway ports.CompanionGateway,
	recorder ports.Recorder,
	player ports.Player,
	events ports.EventSink,
	log zerolog.Logger,
	cfg Config,
) *SessionController {
	if cfg.STTTimeout <= 0 {
		cfg.STTTimeout = 60 * time.Second
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 120 * time.Second
	}
	if cfg.RecordLimit <= 0 {
		cfg.RecordLimit = 60 * time.Second
	}
	if cfg.MinAudioBytes <= 0 {
		cfg.MinAudioBytes = 1000
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "tinyllama:latest"
	}
	if cfg.UserID == "" {
		cfg.UserID = "web_user"
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}

	return &SessionController{
		gateway:    gateway,
		recorder:   recorder,
		player:     player,
		events:     events,
		log:        log,
		cfg:        cfg,
		transcript: newTranscriptLog(),
		recState:   domain.RecordingStateIdle,
		// Voice replies are on by default, mirroring the UI toggle's
		// initial state.
		voiceResponse: true,
	}
}

// LoadModes fetches the mode list. On failure the prior set is kept and a
// modes_load_failed status is surfaced; this never returns an error.
func (c *SessionController) LoadModes(ctx context.Context) []domain.Mode {
	c.events.StatusChanged(domain.StatusLoadingModes, "")

	modes, err := c.gateway.ListModes(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to load modes")
		c.events.StatusChanged(domain.StatusModesLoadFailed, "")
		return c.Modes()
	}

	c.mu.Lock()
	c.modes = modes
	for _, mode := range modes {
		if mode.Active {
			c.currentModeID = mode.ID
		}
	}
	c.mu.Unlock()

	c.events.StatusChanged(domain.StatusModesLoaded, "")
	return c.Modes()
}

// LoadModels fetches the model list, falling back to a built-in default
// set when the endpoint is missing or broken so the UI stays usable. The
// first entry becomes current either way.
func (c *SessionController) LoadModels(ctx context.Context) []domain.Model {
	c.events.StatusChanged(domain.StatusLoadingModels, "")

	kind := domain.StatusModelsLoaded
	models, err := c.gateway.ListModels(ctx)
	if err != nil || len(models) == 0 {
		if err != nil {
			c.log.Warn().Err(err).Msg("models endpoint unavailable, using defaults")
		}
		models = defaultModels()
		kind = domain.StatusModelsDefaulted
	}

	c.mu.Lock()
	c.models = models
	c.currentModelID = models[0].ID
	c.mu.Unlock()

	c.events.StatusChanged(kind, "")
	return c.Models()
}

func defaultModels() []domain.Model {
	return []domain.Model{
		{ID: "llama2", Name: "Llama 2"},
		{ID: "tinyllama", Name: "Tiny Llama"},
		{ID: "mistral", Name: "Mistral"},
	}
}

// SetMode switches the companion mode. currentModeID changes only after
// the remote call succeeds. Repeating with the same id is safe.
func (c *SessionController) SetMode(ctx context.Context, modeID string) error {
	if strings.TrimSpace(modeID) == "" {
		c.events.StatusChanged(domain.StatusModeSwitchFailed, modeID)
		return domain.ErrInvalidArgument
	}

	c.events.StatusChanged(domain.StatusSwitchingMode, modeID)

	if err := c.gateway.SetMode(ctx, modeID); err != nil {
		c.log.Error().Err(err).Str("mode", modeID).Msg("failed to set mode")
		c.events.StatusChanged(domain.StatusModeSwitchFailed, modeID)
		c.appendSystem(fmt.Sprintf("Failed to switch to %s mode. Please try again.", modeID))
		return nil
	}

	c.mu.Lock()
	c.currentModeID = modeID
	name := c.modeDisplayNameLocked(modeID)
	c.mu.Unlock()

	c.events.StatusChanged(domain.StatusModeSwitched, modeID)
	c.appendSystem(fmt.Sprintf("Switched to %s mode.", name))
	return nil
}

// SetModel switches the backing language model, with the same contract
// shape as SetMode.
func (c *SessionController) SetModel(ctx context.Context, modelID string) error {
	if strings.TrimSpace(modelID) == "" {
		c.events.StatusChanged(domain.StatusModelSwitchFailed, modelID)
		return domain.ErrInvalidArgument
	}

	c.events.StatusChanged(domain.StatusSwitchingModel, modelID)

	if err := c.gateway.SetModel(ctx, modelID); err != nil {
		c.log.Error().Err(err).Str("model", modelID).Msg("failed to set model")
		c.events.StatusChanged(domain.StatusModelSwitchFailed, modelID)
		c.appendSystem("Failed to switch to the selected model. Please try again.")
		return nil
	}

	c.mu.Lock()
	c.currentModelID = modelID
	name := c.modelDisplayNameLocked(modelID)
	c.mu.Unlock()

	c.events.StatusChanged(domain.StatusModelSwitched, modelID)
	c.appendSystem(fmt.Sprintf("Switched to %s model.", name))
	return nil
}

// Modes are announced by matching the mode's Name against the id, models
// by ID. The asymmetry is inherited from the web client and kept until
// the server contract is clarified.
func (c *SessionController) modeDisplayNameLocked(modeID string) string {
	for _, mode := range c.modes {
		if mode.Name == modeID && mode.DisplayName != "" {
			return mode.DisplayName
		}
	}
	return modeID
}

func (c *SessionController) modelDisplayNameLocked(modelID string) string {
	for _, model := range c.models {
		if model.ID == modelID && model.Name != "" {
			return model.Name
		}
	}
	return modelID
}

// SetVoiceResponse toggles whether companion replies are spoken.
func (c *SessionController) SetVoiceResponse(enabled bool) {
	c.mu.Lock()
	c.voiceResponse = enabled
	c.mu.Unlock()
}

// SubmitText runs the chat pipeline for typed input. Empty or
// whitespace-only input is ignored entirely.
func (c *SessionController) SubmitText(ctx context.Context, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	c.appendEntry(domain.SpeakerUser, trimmed, "")
	c.chat(ctx, trimmed)
}

// SubmitVoice submits a recorded audio blob for transcription and, when
// text is recognized, chains into the chat pipeline.
func (c *SessionController) SubmitVoice(ctx context.Context, blob []byte) {
	if len(blob) < c.cfg.MinAudioBytes {
		c.events.StatusChanged(domain.StatusRecordingTooShort, "")
		c.appendSystem("The audio recording was too short. Please try speaking longer or closer to the microphone.")
		return
	}

	c.events.StatusChanged(domain.StatusProcessingSpeech, "")

	c.mu.Lock()
	model := c.currentModelID
	mode := c.currentModeID
	generate := c.voiceResponse
	c.mu.Unlock()
	if model == "" {
		model = c.cfg.DefaultModel
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.STTTimeout)
	result, err := c.gateway.TranscribeVoice(reqCtx, ports.VoiceRequest{
		Audio:         blob,
		Model:         model,
		Mode:          mode,
		GenerateAudio: generate,
		UserID:        c.cfg.UserID,
	})
	cancel()

	if err != nil {
		c.log.Error().Err(err).Int("bytes", len(blob)).Msg("voice transcription failed")
		c.events.StatusChanged(domain.StatusSpeechFailed, "")
		c.appendSystem("Sorry, there was an error processing your voice: " + voiceErrorMessage(err))
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		c.events.StatusChanged(domain.StatusSpeechUnrecognized, "")
		c.appendSystem("I couldn't understand what you said. Please try again or use text input.")
		return
	}

	c.appendEntry(domain.SpeakerUser, text, "")
	c.chat(ctx, text)
}

// chat is the shared companion-reply pipeline behind SubmitText and
// SubmitVoice. Each invocation owns its typing token; removal is
// idempotent so concurrent submissions cannot clear each other's
// indicator.
func (c *SessionController) chat(ctx context.Context, text string) {
	token := uuid.NewString()
	c.events.TypingStarted(token)
	var once sync.Once
	hideTyping := func() {
		once.Do(func() { c.events.TypingFinished(token) })
	}
	defer hideTyping()

	c.events.StatusChanged(domain.StatusThinking, "")

	c.mu.Lock()
	model := c.currentModelID
	generate := c.voiceResponse
	c.mu.Unlock()
	if model == defaultModelSentinel {
		model = ""
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)
	reply, err := c.gateway.Chat(reqCtx, ports.ChatRequest{
		Text:          text,
		Model:         model,
		GenerateAudio: generate,
	})
	cancel()

	if err != nil {
		hideTyping()
		kind, message := classifyChatError(err)
		c.log.Error().Err(err).Str("status", string(kind)).Msg("chat request failed")
		c.events.StatusChanged(kind, "")
		c.appendSystem(message)
		return
	}

	hideTyping()

	emotion := domain.NormalizeEmotion(reply.Emotion)
	c.appendEntry(domain.SpeakerCompanion, reply.Text, emotion)
	c.events.EmotionChanged(emotion)

	if generate && reply.AudioURL != "" {
		c.playResponseAudio(ctx, reply.AudioURL)
		return
	}
	c.events.StatusChanged(domain.StatusReady, "")
}

func classifyChatError(err error) (domain.StatusKind, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.StatusChatTimeout,
			"Sorry, the AI is taking too long to respond. This might be because the LLM is busy or the request is complex. Please try again or try a shorter message."
	}

	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) {
		switch remoteErr.StatusCode {
		case 404:
			return domain.StatusServiceNotFound,
				"Sorry, the AI service endpoint was not found. This could mean the backend API has changed or is not running."
		case 500:
			return domain.StatusServerError,
				"The AI service encountered an internal error. This might be due to issues with the language model or text-to-speech service."
		case 503:
			return domain.StatusServiceUnavailable,
				"The AI service is currently unavailable. This usually happens when one of the backend services (Ollama, TTS, or STT) is not responding."
		default:
			return domain.StatusChatFailed,
				"Sorry, I encountered an error while processing your request. Please try again."
		}
	}

	if errors.Is(err, domain.ErrMalformedResponse) {
		return domain.StatusChatFailed,
			"Sorry, I encountered an error while processing your request. Please try again."
	}

	return domain.StatusNetworkError,
		"Sorry, I couldn't connect to the AI service. Please check your network connection and make sure the backend services are running."
}

func voiceErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Speech recognition timed out. The server took too long to process your audio."
	}

	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) {
		switch remoteErr.StatusCode {
		case 413:
			return "Audio file too large for speech recognition"
		case 504, 408:
			return "Speech recognition timed out on the server"
		default:
			return fmt.Sprintf("STT API error: %d", remoteErr.StatusCode)
		}
	}

	if errors.Is(err, domain.ErrMalformedResponse) {
		return "Invalid response from speech recognition service"
	}
	return "Could not reach the speech recognition service"
}

// Status returns the current recording state for the UI.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		State:  c.recState,
		Active: c.recState != domain.RecordingStateIdle,
	}
}

// Modes returns a snapshot of the loaded mode set.
func (c *SessionController) Modes() []domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Mode, len(c.modes))
	copy(out, c.modes)
	return out
}

// Models returns a snapshot of the loaded model set.
func (c *SessionController) Models() []domain.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Model, len(c.models))
	copy(out, c.models)
	return out
}

// CurrentModeID returns the active mode id, empty if none.
func (c *SessionController) CurrentModeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentModeID
}

// CurrentModelID returns the active model id, empty if none.
func (c *SessionController) CurrentModelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentModelID
}

// VoiceResponseEnabled reports the voice-reply preference.
func (c *SessionController) VoiceResponseEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceResponse
}

// Transcript returns a snapshot of the conversation log.
func (c *SessionController) Transcript() []domain.TranscriptEntry {
	return c.transcript.snapshot()
}

func (c *SessionController) appendEntry(speaker domain.Speaker, text string, emotion domain.Emotion) {
	entry := domain.TranscriptEntry{Speaker: speaker, Text: text, Emotion: emotion}
	c.transcript.append(entry)
	c.events.TranscriptAppended(entry)
}

func (c *SessionController) appendSystem(text string) {
	c.appendEntry(domain.SpeakerSystem, text, "")
}
