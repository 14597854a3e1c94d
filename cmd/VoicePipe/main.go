package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/VoicePipe/internal/api"
	"github.com/BTreeMap/VoicePipe/internal/genai"
	"github.com/BTreeMap/VoicePipe/internal/speech"
	"github.com/BTreeMap/VoicePipe/internal/util"
)

// Default configuration constants
const (
	// DefaultAPIAddr is the default HTTP listen address.
	DefaultAPIAddr = ":8080"
	// DefaultBaseURL is used for playback links when nothing external is
	// configured; it only works for local testing.
	DefaultBaseURL = "http://localhost:8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	genaiOpts := buildGenAIOptions(flags)
	ttsOpts := buildTTSOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping VoicePipe with configured modules")
	slog.Debug("Final configuration", "api_addr", *flags.apiAddr, "base_url", *flags.baseURL, "agent_disabled", *flags.disabled, "dsn_set", *flags.dbDSN != "")
	if err := api.Run(genaiOpts, ttsOpts, apiOpts); err != nil {
		slog.Error("VoicePipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("VoicePipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	OpenAIKey     string
	OpenAIModel   string
	ElevenKey     string
	ElevenVoiceID string
	BaseURL       string
	APIAddr       string
	DBDriver      string
	DBDSN         string
	SystemPrompt  string
	Disabled      bool
}

// Flags holds command line flag values
type Flags struct {
	openaiKey     *string
	openaiModel   *string
	elevenKey     *string
	elevenVoiceID *string
	baseURL       *string
	apiAddr       *string
	dbDriver      *string
	dbDSN         *string
	systemPrompt  *string
	disabled      *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		ElevenKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		BaseURL:       util.FirstEnv("VOICEPIPE_BASE_URL", "RENDER_EXTERNAL_URL"),
		APIAddr:       os.Getenv("API_ADDR"),
		DBDriver:      os.Getenv("VOICEPIPE_DB_DRIVER"),
		DBDSN:         util.FirstEnv("VOICEPIPE_DB_DSN", "DATABASE_URL"),
		SystemPrompt:  os.Getenv("VOICEPIPE_SYSTEM_PROMPT"),
		Disabled:      util.ParseBoolEnv("AGENT_DISABLED", false),
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
		slog.Debug("No base URL set, using default", "default_base_url", config.BaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	return config
}

// parseCommandLineFlags parses command line flags with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		openaiKey:     flag.String("openai-key", config.OpenAIKey, "OpenAI API key"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI chat model"),
		elevenKey:     flag.String("elevenlabs-key", config.ElevenKey, "ElevenLabs API key"),
		elevenVoiceID: flag.String("elevenlabs-voice", config.ElevenVoiceID, "ElevenLabs voice id"),
		baseURL:       flag.String("base-url", config.BaseURL, "externally reachable base URL for playback links"),
		apiAddr:       flag.String("addr", config.APIAddr, "HTTP listen address"),
		dbDriver:      flag.String("db-driver", config.DBDriver, "voicemail database driver (sqlite3 or postgres)"),
		dbDSN:         flag.String("db-dsn", config.DBDSN, "voicemail database DSN (empty for in-memory)"),
		systemPrompt:  flag.String("system-prompt", config.SystemPrompt, "override the agent system prompt"),
		disabled:      flag.Bool("disabled", config.Disabled, "disable AI takeover entirely"),
	}
	flag.Parse()
	return flags
}

// buildGenAIOptions builds GenAI module options from flags
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(*flags.openaiModel))
	}
	return opts
}

// buildTTSOptions builds ElevenLabs module options from flags
func buildTTSOptions(flags Flags) []speech.ElevenLabsOption {
	var opts []speech.ElevenLabsOption
	if *flags.elevenKey != "" {
		opts = append(opts, speech.WithAPIKey(*flags.elevenKey))
	}
	if *flags.elevenVoiceID != "" {
		opts = append(opts, speech.WithVoiceID(*flags.elevenVoiceID))
	}
	return opts
}

// buildAPIOptions builds API server options from flags
func buildAPIOptions(flags Flags) []api.Option {
	opts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithBaseURL(*flags.baseURL),
		api.WithDisabled(*flags.disabled),
		api.WithDBDriver(*flags.dbDriver),
		api.WithDBDSN(*flags.dbDSN),
	}
	if *flags.systemPrompt != "" {
		opts = append(opts, api.WithSystemPrompt(*flags.systemPrompt))
	}
	return opts
}
