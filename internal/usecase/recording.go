package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"companion/internal/domain"
	"companion/internal/ports"
)

// recordingSession owns one microphone capture: the chunk buffer, the pump
// goroutine and the wall-clock limit timer. At most one exists at a time.
type recordingSession struct {
	startedAt time.Time
	capture   ports.CaptureSession
	pumpDone  chan struct{}

	limitMu    sync.Mutex
	limitTimer *time.Timer

	mu     sync.Mutex
	chunks [][]byte
}

func newRecordingSession(capture ports.CaptureSession) *recordingSession {
	return &recordingSession{
		startedAt: time.Now(),
		capture:   capture,
		pumpDone:  make(chan struct{}),
	}
}

// pump reads captured audio until the capture session ends, appending
// chunks in arrival order.
func (s *recordingSession) pump(chunkSize int) {
	defer close(s.pumpDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := s.capture.Read(buf)
		if n > 0 {
			s.append(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (s *recordingSession) append(chunk []byte) {
	copied := append([]byte(nil), chunk...)
	s.mu.Lock()
	s.chunks = append(s.chunks, copied)
	s.mu.Unlock()
}

// blob assembles the accumulated chunks into a single buffer.
func (s *recordingSession) blob() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, chunk := range s.chunks {
		total += len(chunk)
	}
	out := make([]byte, 0, total)
	for _, chunk := range s.chunks {
		out = append(out, chunk...)
	}
	return out
}

func (s *recordingSession) setLimitTimer(t *time.Timer) {
	s.limitMu.Lock()
	s.limitTimer = t
	s.limitMu.Unlock()
}

func (s *recordingSession) stopLimitTimer() {
	s.limitMu.Lock()
	if s.limitTimer != nil {
		s.limitTimer.Stop()
	}
	s.limitMu.Unlock()
}

// ToggleRecording flips the recording state machine: a press while
// recording stops and submits, a press while idle requests the microphone.
// Presses while permission is pending are ignored, not queued.
func (c *SessionController) ToggleRecording(ctx context.Context) {
	c.mu.Lock()
	switch c.recState {
	case domain.RecordingStateRequestingPermission:
		c.mu.Unlock()
		return
	case domain.RecordingStateRecording:
		active := c.recording
		c.recording = nil
		c.recState = domain.RecordingStateStopping
		c.mu.Unlock()
		c.finishRecording(ctx, active)
	default:
		c.recState = domain.RecordingStateRequestingPermission
		c.mu.Unlock()
		c.beginRecording(ctx)
	}
}

func (c *SessionController) beginRecording(ctx context.Context) {
	c.events.StatusChanged(domain.StatusRequestingMic, "")

	capture, err := c.recorder.Start(ctx)
	if err != nil {
		c.mu.Lock()
		c.recState = domain.RecordingStateIdle
		c.mu.Unlock()

		c.log.Warn().Err(err).Msg("microphone capture failed to start")
		c.events.StatusChanged(domain.StatusMicError, "")
		c.appendSystem(micErrorMessage(err))
		return
	}

	session := newRecordingSession(capture)
	go session.pump(c.cfg.ChunkSize)
	session.setLimitTimer(time.AfterFunc(c.cfg.RecordLimit, func() {
		c.enforceRecordLimit(session)
	}))

	c.mu.Lock()
	c.recording = session
	c.recState = domain.RecordingStateRecording
	c.mu.Unlock()

	c.events.StatusChanged(domain.StatusRecording, "")
}

// enforceRecordLimit force-stops a session still recording when the
// wall-clock limit fires. Cooperative: a session stopped normally has
// already been detached, so the timer is a no-op.
func (c *SessionController) enforceRecordLimit(session *recordingSession) {
	c.mu.Lock()
	if c.recording != session || c.recState != domain.RecordingStateRecording {
		c.mu.Unlock()
		return
	}
	c.recording = nil
	c.recState = domain.RecordingStateStopping
	c.mu.Unlock()

	c.appendSystem(fmt.Sprintf("Recording automatically stopped after %d seconds.", int(c.cfg.RecordLimit.Seconds())))
	c.finishRecording(context.Background(), session)
}

func (c *SessionController) finishRecording(ctx context.Context, session *recordingSession) {
	session.stopLimitTimer()
	if err := session.capture.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("failed to stop audio capture cleanly")
	}
	<-session.pumpDone

	blob := session.blob()
	c.events.StatusChanged(domain.StatusProcessingAudio, "")

	// The capture session is destroyed before submission begins, so a new
	// recording may start while this blob is still in flight.
	c.mu.Lock()
	c.recState = domain.RecordingStateIdle
	c.mu.Unlock()

	c.SubmitVoice(ctx, blob)
}

func micErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return "Microphone error: Microphone access denied by user"
	case errors.Is(err, domain.ErrNoInputDevice):
		return "Microphone error: No microphone found on your device"
	default:
		return "Microphone error: Could not access your microphone. Please check your browser permissions."
	}
}
