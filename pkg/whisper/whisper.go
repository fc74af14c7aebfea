// Package whisper transcribes audio with an OpenAI-compatible
// /audio/transcriptions endpoint, keeping the per-segment timings of the
// verbose_json response.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Segment is one timed span of recognised speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the decoded verbose_json response.
type Transcript struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Client uploads audio files for transcription.
type Client struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	hc       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLanguage pins the spoken language instead of auto-detection.
func WithLanguage(lang string) Option { return func(c *Client) { c.language = lang } }

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// New returns a Client. An empty baseURL targets the OpenAI API.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		hc: &http.Client{
			Timeout:   60 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe uploads the file at audioPath. Segments with blank text are
// dropped and the rest have their text trimmed.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper: open: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":                     c.model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Transcript{}, fmt.Errorf("whisper: form: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper: form: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Transcript{}, fmt.Errorf("whisper: read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, fmt.Errorf("whisper: form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper: new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Transcript{}, fmt.Errorf("whisper: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var t Transcript
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return Transcript{}, fmt.Errorf("whisper: decode: %w", err)
	}
	kept := t.Segments[:0]
	for _, s := range t.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		kept = append(kept, s)
	}
	t.Segments = kept
	return t, nil
}
