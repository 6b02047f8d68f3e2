package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"companion/internal/domain"
	"companion/internal/ports"
)

const (
	eventCaptureStart = "companion:capture-start"
	eventCaptureStop  = "companion:capture-stop"
	eventPlay         = "companion:play"
)

// Frontend capture result kinds reported through CaptureStarted.
const (
	captureOK               = "ok"
	capturePermissionDenied = "permission-denied"
	captureNoDevice         = "no-device"
)

const (
	captureStartTimeout = 10 * time.Second
	captureDrainTimeout = 2 * time.Second
	playbackTimeout     = 5 * time.Minute
)

// bridgeRecorder implements ports.Recorder on top of the webview's
// MediaRecorder: the frontend is asked to start capturing and streams
// encoded chunks back through the bound PushAudioChunk method.
type bridgeRecorder struct {
	appCtx func() context.Context

	mu      sync.Mutex
	started chan string
	active  *bridgeCapture
}

func newBridgeRecorder(appCtx func() context.Context) *bridgeRecorder {
	return &bridgeRecorder{appCtx: appCtx}
}

func (r *bridgeRecorder) Start(ctx context.Context) (ports.CaptureSession, error) {
	appCtx := r.appCtx()
	if appCtx == nil {
		return nil, errors.New("frontend is not ready")
	}

	started := make(chan string, 1)
	r.mu.Lock()
	r.started = started
	r.mu.Unlock()

	runtime.EventsEmit(appCtx, eventCaptureStart)

	select {
	case result := <-started:
		if err := captureStartError(result); err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(captureStartTimeout):
		return nil, errors.New("timed out waiting for microphone access")
	}

	pr, pw := io.Pipe()
	capture := &bridgeCapture{
		appCtx: appCtx,
		pr:     pr,
		pw:     pw,
		ended:  make(chan struct{}),
	}

	r.mu.Lock()
	r.active = capture
	r.mu.Unlock()

	return capture, nil
}

func captureStartError(result string) error {
	switch result {
	case captureOK:
		return nil
	case capturePermissionDenied:
		return domain.ErrPermissionDenied
	case captureNoDevice:
		return domain.ErrNoInputDevice
	default:
		return fmt.Errorf("microphone capture failed: %s", result)
	}
}

// captureStarted resolves a pending Start call with the frontend's
// permission result.
func (r *bridgeRecorder) captureStarted(result string) {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	if started != nil {
		started <- result
	}
}

// pushChunk appends a base64-encoded audio chunk from the frontend.
func (r *bridgeRecorder) pushChunk(encoded string) error {
	r.mu.Lock()
	capture := r.active
	r.mu.Unlock()
	if capture == nil {
		return errors.New("no active capture")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid audio chunk encoding: %w", err)
	}
	return capture.push(data)
}

// captureEnded signals that the frontend flushed its final chunk.
func (r *bridgeRecorder) captureEnded() {
	r.mu.Lock()
	capture := r.active
	r.active = nil
	r.mu.Unlock()

	if capture != nil {
		capture.finish()
	}
}

type bridgeCapture struct {
	appCtx context.Context
	pr     *io.PipeReader
	pw     *io.PipeWriter

	endOnce sync.Once
	ended   chan struct{}
}

func (c *bridgeCapture) Read(p []byte) (int, error) {
	return c.pr.Read(p)
}

func (c *bridgeCapture) push(data []byte) error {
	_, err := c.pw.Write(data)
	return err
}

func (c *bridgeCapture) finish() {
	c.endOnce.Do(func() {
		_ = c.pw.Close()
		close(c.ended)
	})
}

func (c *bridgeCapture) Close() error {
	return c.Stop()
}

// Stop asks the frontend to stop the MediaRecorder and waits briefly for
// the final chunk flush before closing the stream.
func (c *bridgeCapture) Stop() error {
	runtime.EventsEmit(c.appCtx, eventCaptureStop)

	select {
	case <-c.ended:
	case <-time.After(captureDrainTimeout):
		c.finish()
	}
	return nil
}

// bridgePlayer implements ports.Player by handing audio to the webview's
// Audio element and waiting for its completion callback.
type bridgePlayer struct {
	appCtx func() context.Context

	mu      sync.Mutex
	waiters map[string]chan string
}

func newBridgePlayer(appCtx func() context.Context) *bridgePlayer {
	return &bridgePlayer{appCtx: appCtx, waiters: make(map[string]chan string)}
}

func (p *bridgePlayer) PlayBytes(ctx context.Context, data []byte) error {
	return p.play(ctx, map[string]string{"data": base64.StdEncoding.EncodeToString(data)})
}

func (p *bridgePlayer) PlayURL(ctx context.Context, url string) error {
	return p.play(ctx, map[string]string{"url": url})
}

func (p *bridgePlayer) play(ctx context.Context, payload map[string]string) error {
	appCtx := p.appCtx()
	if appCtx == nil {
		return errors.New("frontend is not ready")
	}

	token := uuid.NewString()
	done := make(chan string, 1)

	p.mu.Lock()
	p.waiters[token] = done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.waiters, token)
		p.mu.Unlock()
	}()

	payload["token"] = token
	runtime.EventsEmit(appCtx, eventPlay, payload)

	select {
	case errMsg := <-done:
		if errMsg != "" {
			return errors.New(errMsg)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playbackTimeout):
		return errors.New("timed out waiting for playback to finish")
	}
}

// playbackEnded resolves the waiter for a finished playback token.
func (p *bridgePlayer) playbackEnded(token string, errMsg string) {
	p.mu.Lock()
	done, ok := p.waiters[token]
	p.mu.Unlock()

	if ok {
		done <- errMsg
	}
}
