package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"companion/internal/domain"
	"companion/internal/ports"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestListModesBareArray(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/modes" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[{"id":"general","name":"general","display_name":"General","active":true}]`)
	}))
	defer server.Close()

	modes, err := newTestClient(server).ListModes(context.Background())
	if err != nil {
		t.Fatalf("ListModes failed: %v", err)
	}
	if len(modes) != 1 || modes[0].ID != "general" || !modes[0].Active {
		t.Fatalf("unexpected modes: %+v", modes)
	}
}

func TestListModesWrappedObject(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"modes":[{"id":"study","name":"study","display_name":"Study Buddy"}]}`)
	}))
	defer server.Close()

	modes, err := newTestClient(server).ListModes(context.Background())
	if err != nil {
		t.Fatalf("ListModes failed: %v", err)
	}
	if len(modes) != 1 || modes[0].DisplayName != "Study Buddy" {
		t.Fatalf("unexpected modes: %+v", modes)
	}
}

func TestListModesMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>proxy error</html>`)
	}))
	defer server.Close()

	_, err := newTestClient(server).ListModes(context.Background())
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSetModeEscapesPathSegment(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
	}))
	defer server.Close()

	if err := newTestClient(server).SetMode(context.Background(), "study buddy/v2"); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if gotPath != "/mode/study%20buddy%2Fv2" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestTranscribeVoiceMultipartShape(t *testing.T) {
	t.Parallel()

	audio := bytes.Repeat([]byte{0xAB}, 1500)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not a multipart request: %v", err)
			return
		}

		file, header, err := r.FormFile("audio_data")
		if err != nil {
			t.Errorf("audio_data part missing: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if !bytes.Equal(data, audio) {
			t.Errorf("audio payload corrupted: %d bytes", len(data))
		}

		if got := r.FormValue("model"); got != "mistral" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("mode"); got != "study" {
			t.Errorf("mode = %q", got)
		}
		if got := r.FormValue("generate_audio"); got != "true" {
			t.Errorf("generate_audio = %q", got)
		}
		if got := r.FormValue("user_id"); got != "web_user" {
			t.Errorf("user_id = %q", got)
		}

		io.WriteString(w, `{"text":"hello world"}`)
	}))
	defer server.Close()

	result, err := newTestClient(server).TranscribeVoice(context.Background(), ports.VoiceRequest{
		Audio:         audio,
		Model:         "mistral",
		Mode:          "study",
		GenerateAudio: true,
		UserID:        "web_user",
	})
	if err != nil {
		t.Fatalf("TranscribeVoice failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected transcription: %q", result.Text)
	}
}

func TestTranscribeVoiceOmitsEmptyMode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not a multipart request: %v", err)
			return
		}
		if _, ok := r.MultipartForm.Value["mode"]; ok {
			t.Errorf("mode field must be absent when unset")
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).TranscribeVoice(context.Background(), ports.VoiceRequest{
		Audio:  []byte("xx"),
		Model:  "mistral",
		UserID: "web_user",
	})
	if err != nil {
		t.Fatalf("TranscribeVoice failed: %v", err)
	}
}

func TestChatPayloadShape(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		io.WriteString(w, `{"text":"hi there","emotion":"happy","audio_url":"/text-to-speech?text=hi"}`)
	}))
	defer server.Close()

	reply, err := newTestClient(server).Chat(context.Background(), ports.ChatRequest{
		Text:          "hello",
		Model:         "mistral",
		GenerateAudio: true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if gotBody["text"] != "hello" || gotBody["model"] != "mistral" || gotBody["generate_audio"] != true {
		t.Fatalf("unexpected payload: %v", gotBody)
	}
	if reply.Text != "hi there" || reply.Emotion != "happy" || reply.AudioURL != "/text-to-speech?text=hi" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestChatOmitsEmptyModel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		if _, ok := payload["model"]; ok {
			t.Errorf("model key must be absent when empty, got %v", payload)
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).Chat(context.Background(), ports.ChatRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
}

func TestSynthesizeReturnsRawBytes(t *testing.T) {
	t.Parallel()

	wav := []byte{'R', 'I', 'F', 'F', 0x10, 0x00}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil || payload["text"] != "hi" {
			t.Errorf("unexpected payload: %s", body)
		}
		w.Write(wav)
	}))
	defer server.Close()

	data, err := newTestClient(server).Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !bytes.Equal(data, wav) {
		t.Fatalf("unexpected audio bytes: %v", data)
	}
}

func TestDoReportsRemoteErrorWithDetail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"structured_detail", 503, `{"detail":"ollama is down"}`, "ollama is down"},
		{"raw_body", 500, "internal failure", "internal failure"},
		{"empty_body", 404, "", ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			_, err := newTestClient(server).Chat(context.Background(), ports.ChatRequest{Text: "hello"})

			var remoteErr *domain.RemoteError
			if !errors.As(err, &remoteErr) {
				t.Fatalf("expected RemoteError, got %v", err)
			}
			if remoteErr.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", remoteErr.StatusCode, tc.status)
			}
			if remoteErr.Detail != tc.detail {
				t.Fatalf("detail = %q, want %q", remoteErr.Detail, tc.detail)
			}
		})
	}
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "  http://api.example.com/ ", Logger: zerolog.Nop()})
	if got := client.BaseURL(); got != "http://api.example.com" {
		t.Fatalf("BaseURL = %q", got)
	}

	client = NewClient(Config{Logger: zerolog.Nop()})
	if got := client.BaseURL(); got != DefaultBaseURL {
		t.Fatalf("empty config BaseURL = %q, want default", got)
	}
}
