package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"companion/internal/domain"
	"companion/internal/ports"
)

// Options tunes the ffmpeg capture pipeline.
type Options struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// FFmpegRecorder captures microphone audio natively through ffmpeg,
// producing 16-bit PCM WAV suitable for the voice endpoint. It is the
// desktop alternative to the browser capture bridge.
type FFmpegRecorder struct {
	opts Options
}

func NewFFmpegRecorder(opts Options) *FFmpegRecorder {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	if opts.InputFormat == "" {
		opts.InputFormat = "pulse"
	}
	if opts.InputDevice == "" {
		opts.InputDevice = "default"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	return &FFmpegRecorder{opts: opts}
}

func (r *FFmpegRecorder) Start(ctx context.Context) (ports.CaptureSession, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", r.opts.InputFormat,
		"-i", r.opts.InputDevice,
		"-ac", strconv.Itoa(r.opts.Channels),
		"-ar", strconv.Itoa(r.opts.SampleRate),
		"-f", "wav",
		"-",
	}

	cmd := exec.CommandContext(ctx, r.opts.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// An immediate exit means capture never began; classify it so the
	// controller can tell a missing device from a permission problem.
	select {
	case <-waitErr:
		return nil, classifyStartError(stderr.String())
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegCapture{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func classifyStartError(stderr string) error {
	detail := strings.TrimSpace(stderr)
	lowered := strings.ToLower(detail)

	switch {
	case strings.Contains(lowered, "permission denied"), strings.Contains(lowered, "access denied"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, detail)
	case strings.Contains(lowered, "no such"), strings.Contains(lowered, "not found"), strings.Contains(lowered, "cannot find"):
		return fmt.Errorf("%w: %s", domain.ErrNoInputDevice, detail)
	case detail == "":
		return errors.New("ffmpeg exited before capture started")
	default:
		return fmt.Errorf("ffmpeg exited before capture started: %s", detail)
	}
}

type ffmpegCapture struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegCapture) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegCapture) Close() error {
	return s.Stop()
}

func (s *ffmpegCapture) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

// ffmpeg exits non-zero when interrupted; that is a normal stop.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
