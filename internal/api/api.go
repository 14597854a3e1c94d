// Package api provides HTTP handlers and the main server logic for VoicePipe.
//
// It exposes the Twilio voice webhook endpoints, the media fetch endpoint for
// synthesized audio, and a read-only status endpoint. The API integrates the
// flow controller with the media cache, conversation store and voicemail repo.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/VoicePipe/internal/flow"
	"github.com/BTreeMap/VoicePipe/internal/genai"
	"github.com/BTreeMap/VoicePipe/internal/media"
	"github.com/BTreeMap/VoicePipe/internal/speech"
	"github.com/BTreeMap/VoicePipe/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	BaseURL      string
	Disabled     bool
	SystemPrompt string
	DBDriver     string
	DBDSN        string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithBaseURL sets the externally reachable base URL used in playback links.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithDisabled disables AI takeover entirely.
func WithDisabled(disabled bool) Option {
	return func(o *Opts) { o.Disabled = disabled }
}

// WithSystemPrompt overrides the controller's system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Opts) { o.SystemPrompt = prompt }
}

// WithDBDriver selects the voicemail repo backend ("sqlite3" or "postgres").
func WithDBDriver(driver string) Option {
	return func(o *Opts) { o.DBDriver = driver }
}

// WithDBDSN sets the voicemail database DSN.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// Server holds the wired modules behind the HTTP handlers.
type Server struct {
	ctrl       *flow.Controller
	cache      *media.Cache
	convs      *store.ConversationStore
	voicemails store.VoicemailRepo

	disabled              bool
	generatorConfigured   bool
	synthesizerConfigured bool
}

// NewServer builds a Server from already-constructed modules. Used directly
// by tests; Run performs the production wiring.
func NewServer(ctrl *flow.Controller, cache *media.Cache, convs *store.ConversationStore, voicemails store.VoicemailRepo) *Server {
	return &Server{ctrl: ctrl, cache: cache, convs: convs, voicemails: voicemails}
}

// Handler returns the route table for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/voice/answer", s.answerHandler)
	mux.HandleFunc("/voice/speech", s.speechHandler)
	mux.HandleFunc("/voice/recording", s.recordingHandler)
	mux.HandleFunc("/voice/transcription", s.transcriptionHandler)
	mux.HandleFunc("/audio/", s.audioHandler)
	mux.HandleFunc("/status", s.statusHandler)
	return mux
}

// Run wires every module from the given options and serves HTTP until the
// listener fails. A missing OpenAI credential is fatal here unless AI
// takeover is disabled; a missing ElevenLabs credential only degrades
// playback to plain text.
func Run(genaiOpts []genai.Option, ttsOpts []speech.ElevenLabsOption, apiOpts []Option) error {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	cache := media.NewCache()
	convs := store.NewConversationStore()

	voicemails, err := buildVoicemailRepo(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize voicemail repo: %w", err)
	}

	var generator flow.ResponseGenerator
	genClient, err := genai.NewClient(genaiOpts...)
	switch {
	case err == nil:
		generator = genClient
	case cfg.Disabled:
		slog.Warn("API.Run: GenAI client not configured, agent disabled anyway", "error", err)
	default:
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	var synthesizer flow.SpeechSynthesizer
	ttsClient, err := speech.NewElevenLabsClient(ttsOpts...)
	if err != nil {
		// The voice service is allowed to be absent; every line falls back
		// to provider text-to-speech.
		slog.Warn("API.Run: ElevenLabs client not configured, using text fallback", "error", err)
	} else {
		synthesizer = speech.NewSynthesizer(ttsClient, cache, cfg.BaseURL)
	}

	ctrlOpts := []flow.ControllerOption{flow.WithDisabled(cfg.Disabled)}
	if cfg.SystemPrompt != "" {
		ctrlOpts = append(ctrlOpts, flow.WithSystemPrompt(cfg.SystemPrompt))
	}
	ctrl := flow.NewController(convs, generator, synthesizer, voicemails, ctrlOpts...)

	server := NewServer(ctrl, cache, convs, voicemails)
	server.disabled = cfg.Disabled
	server.generatorConfigured = generator != nil
	server.synthesizerConfigured = synthesizer != nil

	slog.Info("VoicePipe API running", "addr", cfg.Addr, "generator_configured", server.generatorConfigured, "synthesizer_configured", server.synthesizerConfigured, "disabled", cfg.Disabled)
	return http.ListenAndServe(cfg.Addr, server.Handler())
}

// buildVoicemailRepo selects the voicemail backend from the configured driver
// and DSN, defaulting to in-memory when no database is configured.
func buildVoicemailRepo(cfg Opts) (store.VoicemailRepo, error) {
	if cfg.DBDSN == "" {
		slog.Debug("API.buildVoicemailRepo: no DSN configured, using in-memory repo")
		return store.NewInMemoryVoicemailRepo(), nil
	}
	switch cfg.DBDriver {
	case "postgres":
		return store.NewPostgresVoicemailRepo(cfg.DBDSN)
	case "", "sqlite3":
		return store.NewSQLiteVoicemailRepo(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}
