package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/VoicePipe/internal/models"
	"github.com/BTreeMap/VoicePipe/internal/twiliovoice"
)

// answerHandler handles POST /voice/answer, the dial status callback fired
// when no human answered within the timeout.
func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slog.Debug("Server.answerHandler: processing answer callback", "path", r.URL.Path)

	ev := twiliovoice.ParseAnswerTimeoutEvent(r)
	directives := s.ctrl.HandleAnswerTimeout(r.Context(), ev)
	writeVoiceResponse(w, directives)
}

// speechHandler handles POST /voice/speech, the gather result callback.
func (s *Server) speechHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slog.Debug("Server.speechHandler: processing speech result", "path", r.URL.Path)

	ev := twiliovoice.ParseSpeechResultEvent(r)
	directives := s.ctrl.HandleSpeechResult(r.Context(), ev)
	writeVoiceResponse(w, directives)
}

// recordingHandler handles POST /voice/recording, fired when the fallback
// voicemail recording finished.
func (s *Server) recordingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slog.Debug("Server.recordingHandler: processing recording callback", "path", r.URL.Path)

	ev := twiliovoice.ParseRecordingCompleteEvent(r)
	directives := s.ctrl.HandleRecordingComplete(r.Context(), ev)
	writeVoiceResponse(w, directives)
}

// transcriptionHandler handles POST /voice/transcription, the asynchronous
// transcription callback. Twilio expects no TwiML here.
func (s *Server) transcriptionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ev := twiliovoice.ParseRecordingCompleteEvent(r)
	s.ctrl.SaveTranscription(ev)
	w.WriteHeader(http.StatusOK)
}

// audioHandler handles GET /audio/{id}.mp3, serving cached synthesized audio.
// A miss is a plain 404 whether the id expired or never existed.
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/audio/")
	id = strings.TrimSuffix(id, ".mp3")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	payload, ok := s.cache.Get(id)
	if !ok {
		slog.Debug("Server.audioHandler: cache miss", "id", id)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	if _, err := w.Write(payload); err != nil {
		slog.Error("Server.audioHandler: failed to write audio response", "error", err, "id", id)
	}
}

// statusResult is the read-only status payload. It reports configuration
// presence only, never secrets.
type statusResult struct {
	AgentDisabled         bool `json:"agent_disabled"`
	GeneratorConfigured   bool `json:"generator_configured"`
	SynthesizerConfigured bool `json:"synthesizer_configured"`
	LiveSessions          int  `json:"live_sessions"`
	CachedAssets          int  `json:"cached_assets"`
}

// statusHandler handles GET /status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	result := statusResult{
		AgentDisabled:         s.disabled,
		GeneratorConfigured:   s.generatorConfigured,
		SynthesizerConfigured: s.synthesizerConfigured,
		LiveSessions:          s.convs.Len(),
		CachedAssets:          s.cache.Len(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}
