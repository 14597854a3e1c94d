package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// ElevenLabs defaults.
const (
	DefaultBaseURL         = "https://api.elevenlabs.io/v1/text-to-speech"
	DefaultVoiceID         = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultModelID         = "eleven_multilingual_v2"
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
	DefaultHTTPTimeout     = 30 * time.Second
)

// TTSClient converts text into raw audio bytes.
type TTSClient interface {
	TextToSpeech(ctx context.Context, text string) ([]byte, error)
}

// ElevenLabsOpts holds configuration options for the ElevenLabs client.
type ElevenLabsOpts struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	HTTPClient      *http.Client
}

// ElevenLabsOption defines a configuration option for the ElevenLabs client.
type ElevenLabsOption func(*ElevenLabsOpts)

// WithAPIKey sets the ElevenLabs API key.
func WithAPIKey(key string) ElevenLabsOption {
	return func(o *ElevenLabsOpts) { o.APIKey = key }
}

// WithVoiceID overrides the default voice.
func WithVoiceID(id string) ElevenLabsOption {
	return func(o *ElevenLabsOpts) { o.VoiceID = id }
}

// WithModelID overrides the default synthesis model.
func WithModelID(id string) ElevenLabsOption {
	return func(o *ElevenLabsOpts) { o.ModelID = id }
}

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(url string) ElevenLabsOption {
	return func(o *ElevenLabsOpts) { o.BaseURL = url }
}

// WithHTTPClient injects an HTTP client, used by tests.
func WithHTTPClient(c *http.Client) ElevenLabsOption {
	return func(o *ElevenLabsOpts) { o.HTTPClient = c }
}

// ElevenLabsClient calls the ElevenLabs text-to-speech REST API.
type ElevenLabsClient struct {
	apiKey          string
	baseURL         string
	voiceID         string
	modelID         string
	stability       float64
	similarityBoost float64
	httpClient      *http.Client
}

// elVoiceSettings mirrors the voice_settings request object.
type elVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// elSynthesisRequest is the JSON request body for a synthesis call.
type elSynthesisRequest struct {
	Text          string          `json:"text"`
	ModelID       string          `json:"model_id"`
	VoiceSettings elVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient creates an ElevenLabs client, falling back to the
// ELEVENLABS_API_KEY and ELEVENLABS_VOICE_ID environment variables for
// settings not provided via options.
func NewElevenLabsClient(opts ...ElevenLabsOption) (*ElevenLabsClient, error) {
	cfg := ElevenLabsOpts{
		BaseURL:         DefaultBaseURL,
		VoiceID:         os.Getenv("ELEVENLABS_VOICE_ID"),
		ModelID:         DefaultModelID,
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY not set")
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &ElevenLabsClient{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		voiceID:         cfg.VoiceID,
		modelID:         cfg.ModelID,
		stability:       cfg.Stability,
		similarityBoost: cfg.SimilarityBoost,
		httpClient:      cfg.HTTPClient,
	}, nil
}

// TextToSpeech synthesizes text and returns the MP3 bytes.
func (c *ElevenLabsClient) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(elSynthesisRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: elVoiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("ElevenLabsClient.TextToSpeech: API error", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("synthesis API returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}
	slog.Debug("ElevenLabsClient.TextToSpeech: synthesized audio", "chars", len(text), "bytes", len(audio))
	return audio, nil
}
