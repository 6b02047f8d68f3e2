package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"companion/internal/domain"
)

// audioRef is a resolved companion audio reference: either text to run
// through speech synthesis, or a directly playable URL.
type audioRef struct {
	SynthesisText string
	URL           string
}

// parseAudioRef interprets an audio_url from a chat reply. URLs pointing
// at the text-to-speech endpoint embed the text to synthesize as a query
// parameter rather than naming a fetchable resource; other relative
// references are resolved against the API base.
func parseAudioRef(apiBase string, raw string) (audioRef, error) {
	absolute := raw
	if strings.HasPrefix(raw, "/") {
		absolute = strings.TrimRight(apiBase, "/") + raw
	}

	if strings.Contains(raw, "/text-to-speech") {
		parsed, err := url.Parse(absolute)
		if err != nil {
			return audioRef{}, err
		}
		text := parsed.Query().Get("text")
		if text == "" {
			return audioRef{}, errors.New("no text parameter found in audio URL")
		}
		return audioRef{SynthesisText: text}, nil
	}

	return audioRef{URL: absolute}, nil
}

// playResponseAudio plays a companion reply's audio reference. Failures
// are reported and swallowed; they never abort the surrounding pipeline.
func (c *SessionController) playResponseAudio(ctx context.Context, audioURL string) {
	c.events.StatusChanged(domain.StatusPlayingAudio, "")

	if err := c.playAudioRef(ctx, audioURL); err != nil {
		c.log.Warn().Err(err).Str("audio_url", audioURL).Msg("audio playback failed")
		c.events.StatusChanged(domain.StatusPlaybackFailed, "")
		c.appendSystem("Sorry, there was an error playing the audio response.")
		return
	}

	c.events.StatusChanged(domain.StatusReady, "")
}

func (c *SessionController) playAudioRef(ctx context.Context, audioURL string) error {
	ref, err := parseAudioRef(c.cfg.APIBase, audioURL)
	if err != nil {
		return err
	}

	if ref.SynthesisText != "" {
		data, err := c.gateway.Synthesize(ctx, ref.SynthesisText)
		if err != nil {
			return err
		}
		return c.player.PlayBytes(ctx, data)
	}

	return c.player.PlayURL(ctx, ref.URL)
}
