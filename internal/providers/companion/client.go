package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"companion/internal/domain"
	"companion/internal/ports"
)

// DefaultBaseURL is used when the page is served from a loopback host.
const DefaultBaseURL = "http://localhost:8000"

// Config controls companion API client settings.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client implements ports.CompanionGateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: base, http: httpClient, log: cfg.Logger}
}

// BaseURL returns the resolved API base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModes fetches the available companion modes. The endpoint may return
// either a bare array or a {"modes": [...]} wrapper.
func (c *Client) ListModes(ctx context.Context) ([]domain.Mode, error) {
	body, err := c.get(ctx, "/modes")
	if err != nil {
		return nil, err
	}

	var modes []domain.Mode
	if err := json.Unmarshal(body, &modes); err == nil {
		return modes, nil
	}

	var wrapped struct {
		Modes []domain.Mode `json:"modes"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from modes endpoint: %v", domain.ErrMalformedResponse, err)
	}
	return wrapped.Modes, nil
}

// ListModels fetches the available language models.
func (c *Client) ListModels(ctx context.Context) ([]domain.Model, error) {
	body, err := c.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	var models []domain.Model
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON from models endpoint: %v", domain.ErrMalformedResponse, err)
	}
	return models, nil
}

// SetMode activates a companion mode by id.
func (c *Client) SetMode(ctx context.Context, id string) error {
	return c.postPath(ctx, "/mode/"+url.PathEscape(id))
}

// SetModel activates a language model by id.
func (c *Client) SetModel(ctx context.Context, id string) error {
	return c.postPath(ctx, "/model/"+url.PathEscape(id))
}

// TranscribeVoice uploads a recorded audio blob for transcription.
func (c *Client) TranscribeVoice(ctx context.Context, req ports.VoiceRequest) (domain.VoiceResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_data", "audio.wav")
	if err != nil {
		return domain.VoiceResult{}, err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return domain.VoiceResult{}, err
	}

	_ = writer.WriteField("model", req.Model)
	if req.Mode != "" {
		_ = writer.WriteField("mode", req.Mode)
	}
	_ = writer.WriteField("generate_audio", strconv.FormatBool(req.GenerateAudio))
	_ = writer.WriteField("user_id", req.UserID)
	if err := writer.Close(); err != nil {
		return domain.VoiceResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice", &body)
	if err != nil {
		return domain.VoiceResult{}, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	payload, err := c.do(httpReq)
	if err != nil {
		return domain.VoiceResult{}, err
	}

	var result domain.VoiceResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.VoiceResult{}, fmt.Errorf("%w: invalid response from speech recognition service: %v", domain.ErrMalformedResponse, err)
	}
	return result, nil
}

// Chat submits a text message and returns the companion's reply.
func (c *Client) Chat(ctx context.Context, req ports.ChatRequest) (domain.ChatReply, error) {
	payload := map[string]any{
		"text":           req.Text,
		"generate_audio": req.GenerateAudio,
	}
	if req.Model != "" {
		payload["model"] = req.Model
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return domain.ChatReply{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(encoded))
	if err != nil {
		return domain.ChatReply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return domain.ChatReply{}, err
	}

	var reply domain.ChatReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: invalid response from chat service: %v", domain.ErrMalformedResponse, err)
	}
	return reply, nil
}

// Synthesize converts text to audio bytes via the text-to-speech endpoint.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	encoded, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postPath(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &domain.RemoteError{StatusCode: resp.StatusCode, Detail: parseErrorDetail(body)}
		c.log.Warn().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int("status", resp.StatusCode).
			Str("detail", apiErr.Detail).
			Msg("companion API request failed")
		return nil, apiErr
	}
	if readErr != nil {
		return nil, readErr
	}

	return body, nil
}

// parseErrorDetail extracts a structured {"detail": ...} message from an
// error body, falling back to the raw body text.
func parseErrorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return trimmed
}
