package bootstrap

import (
	"github.com/rs/zerolog"

	"companion/internal/audio"
	"companion/internal/config"
	"companion/internal/ports"
	"companion/internal/providers/companion"
	"companion/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	APIBase    string
}

// Build wires all backend dependencies. The supplied recorder is the
// frontend capture bridge; it is swapped for native ffmpeg capture when
// configured. origin is the page origin used for API base resolution
// (empty for desktop builds).
func Build(
	events ports.EventSink,
	recorder ports.Recorder,
	player ports.Player,
	origin string,
	log zerolog.Logger,
) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	base := companion.ResolveBaseURL(cfg.API.BaseURL, origin)
	gateway := companion.NewClient(companion.Config{
		BaseURL: base,
		Logger:  log,
	})

	if cfg.Capture.Backend == config.CaptureBackendFFmpeg {
		recorder = audio.NewFFmpegRecorder(audio.Options{
			Command:     cfg.Capture.FFmpegCommand,
			InputFormat: cfg.Capture.InputFormat,
			InputDevice: cfg.Capture.InputDevice,
			SampleRate:  cfg.Capture.SampleRate,
			Channels:    cfg.Capture.Channels,
		})
	}

	controller := usecase.NewSessionController(
		gateway,
		recorder,
		player,
		events,
		log,
		usecase.Config{
			APIBase:       base,
			STTTimeout:    cfg.API.STTTimeout,
			ChatTimeout:   cfg.API.ChatTimeout,
			RecordLimit:   cfg.Session.RecordLimit,
			MinAudioBytes: cfg.Session.MinAudioBytes,
			DefaultModel:  cfg.Session.DefaultModel,
			UserID:        cfg.Session.UserID,
			ChunkSize:     cfg.Session.ChunkSize,
		},
	)

	return Services{Controller: controller, Config: cfg, APIBase: base}, nil
}
