package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"companion/internal/bootstrap"
	"companion/internal/config"
	"companion/internal/domain"
	"companion/internal/usecase"
)

const (
	eventTranscript = "companion:transcript"
	eventStatus     = "companion:status"
	eventEmotion    = "companion:emotion"
	eventTyping     = "companion:typing"
)

// App is the Wails application root.
type App struct {
	ctx context.Context
	log zerolog.Logger

	recorder *bridgeRecorder
	player   *bridgePlayer

	controller *usecase.SessionController
	cfg        config.Config
	apiBase    string
	bootErr    error
}

func NewApp(log zerolog.Logger) *App {
	a := &App{log: log}
	a.recorder = newBridgeRecorder(a.context)
	a.player = newBridgePlayer(a.context)
	return a
}

func (a *App) context() context.Context {
	return a.ctx
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.recorder, a.player, "", a.log)
	if err != nil {
		a.bootErr = err
		a.log.Error().Err(err).Msg("startup failed")
		a.StatusChanged(domain.StatusNetworkError, err.Error())
		return
	}

	a.cfg = services.Config
	a.apiBase = services.APIBase
	a.controller = services.Controller

	go a.initSession()
}

// initSession loads modes and models concurrently, then reports ready.
func (a *App) initSession() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.controller.LoadModes(a.ctx)
	}()
	go func() {
		defer wg.Done()
		a.controller.LoadModels(a.ctx)
	}()
	wg.Wait()

	a.StatusChanged(domain.StatusReady, "Ready to chat")
}

// SendMessage submits typed chat input.
func (a *App) SendMessage(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SubmitText(a.ctx, text)
	return nil
}

// ToggleRecording starts or stops voice recording.
func (a *App) ToggleRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.ToggleRecording(a.ctx)
	return nil
}

// SetMode switches the companion mode.
func (a *App) SetMode(modeID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SetMode(a.ctx, modeID)
}

// SetModel switches the backing language model.
func (a *App) SetModel(modelID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SetModel(a.ctx, modelID)
}

// SetVoiceResponse toggles spoken replies.
func (a *App) SetVoiceResponse(enabled bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SetVoiceResponse(enabled)
	return nil
}

// GetModes returns the loaded mode set.
func (a *App) GetModes() []domain.Mode {
	if a.controller == nil {
		return nil
	}
	return a.controller.Modes()
}

// GetModels returns the loaded model set.
func (a *App) GetModels() []domain.Model {
	if a.controller == nil {
		return nil
	}
	return a.controller.Models()
}

// GetTranscript returns the conversation log.
func (a *App) GetTranscript() []domain.TranscriptEntry {
	if a.controller == nil {
		return nil
	}
	return a.controller.Transcript()
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.RecordingStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.RecordingStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"apiBase":      a.apiBase,
		"defaultModel": a.cfg.Session.DefaultModel,
		"userId":       a.cfg.Session.UserID,
		"capture":      a.cfg.Capture.Backend,
		"currentMode":  a.controller.CurrentModeID(),
		"currentModel": a.controller.CurrentModelID(),
	}
}

// PushAudioChunk receives a base64 audio chunk from the frontend recorder.
func (a *App) PushAudioChunk(data string) error {
	return a.recorder.pushChunk(data)
}

// CaptureStarted reports the frontend's microphone permission result.
func (a *App) CaptureStarted(result string) {
	a.recorder.captureStarted(result)
}

// CaptureEnded reports that the frontend flushed its final audio chunk.
func (a *App) CaptureEnded() {
	a.recorder.captureEnded()
}

// PlaybackEnded reports completion of a playback token; errMsg is empty
// on success.
func (a *App) PlaybackEnded(token string, errMsg string) {
	a.player.playbackEnded(token, errMsg)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// TranscriptAppended emits a new transcript entry to the frontend.
func (a *App) TranscriptAppended(entry domain.TranscriptEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, entry)
}

// StatusChanged emits a status-line update to the frontend.
func (a *App) StatusChanged(kind domain.StatusKind, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventStatus, map[string]string{
		"kind":    string(kind),
		"message": statusMessage(kind, detail),
	})
}

// EmotionChanged emits the companion's current emotion.
func (a *App) EmotionChanged(emotion domain.Emotion) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventEmotion, map[string]string{"emotion": string(emotion)})
}

// TypingStarted shows a typing placeholder for one chat request.
func (a *App) TypingStarted(token string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTyping, map[string]any{"token": token, "active": true})
}

// TypingFinished removes the typing placeholder for one chat request.
func (a *App) TypingFinished(token string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTyping, map[string]any{"token": token, "active": false})
}

func statusMessage(kind domain.StatusKind, detail string) string {
	switch kind {
	case domain.StatusReady:
		if detail != "" {
			return detail
		}
		return "Ready"
	case domain.StatusLoadingModes:
		return "Loading available modes..."
	case domain.StatusModesLoaded:
		return "Modes loaded"
	case domain.StatusModesLoadFailed:
		return "Error loading modes"
	case domain.StatusLoadingModels:
		return "Loading available models..."
	case domain.StatusModelsLoaded:
		return "Models loaded"
	case domain.StatusModelsDefaulted:
		return "Using default models"
	case domain.StatusSwitchingMode:
		return fmt.Sprintf("Switching to %s mode...", detail)
	case domain.StatusModeSwitched:
		return fmt.Sprintf("Now in %s mode", detail)
	case domain.StatusModeSwitchFailed:
		return "Failed to switch mode"
	case domain.StatusSwitchingModel:
		return fmt.Sprintf("Switching to %s model...", detail)
	case domain.StatusModelSwitched:
		return fmt.Sprintf("Now using %s model", detail)
	case domain.StatusModelSwitchFailed:
		return "Failed to switch model"
	case domain.StatusRequestingMic:
		return "Requesting microphone access..."
	case domain.StatusMicError:
		return "Error accessing microphone"
	case domain.StatusRecording:
		return "Recording... Click to stop"
	case domain.StatusProcessingAudio:
		return "Processing audio..."
	case domain.StatusProcessingSpeech:
		return "Processing speech..."
	case domain.StatusRecordingTooShort:
		return "Audio recording too short"
	case domain.StatusSpeechUnrecognized:
		return "Could not recognize speech"
	case domain.StatusSpeechFailed:
		return "Error processing speech"
	case domain.StatusThinking:
		return "AI is thinking..."
	case domain.StatusChatTimeout:
		return "Request timed out"
	case domain.StatusNetworkError:
		return "Network error"
	case domain.StatusServiceNotFound:
		return "Service not found"
	case domain.StatusServerError:
		return "Server error"
	case domain.StatusServiceUnavailable:
		return "Service unavailable"
	case domain.StatusChatFailed:
		return "Error getting response"
	case domain.StatusPlayingAudio:
		return "Playing audio response..."
	case domain.StatusPlaybackFailed:
		return "Error playing audio"
	default:
		return detail
	}
}
