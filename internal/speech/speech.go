// Package speech wraps text-to-speech synthesis for VoicePipe.
//
// The Synthesizer turns a reply string into a cached audio asset and returns
// a playback URL. Every failure is reported as models.ErrDegraded: the voice
// service is allowed to be down without ending a call, so callers must fall
// back to a plain textual announcement.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/VoicePipe/internal/media"
	"github.com/BTreeMap/VoicePipe/internal/models"
)

// Synthesizer synthesizes speech and stores the audio in the media cache.
type Synthesizer struct {
	tts     TTSClient
	cache   *media.Cache
	baseURL string
}

// NewSynthesizer creates a Synthesizer that serves playback URLs under
// baseURL (for example "https://agent.example.com").
func NewSynthesizer(tts TTSClient, cache *media.Cache, baseURL string) *Synthesizer {
	return &Synthesizer{
		tts:     tts,
		cache:   cache,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Synthesize converts text into audio, stores it in the media cache and
// returns a playback URL embedding the cache id. On any synthesis error it
// returns models.ErrDegraded.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if s.tts == nil {
		return "", fmt.Errorf("%w: no TTS client configured", models.ErrDegraded)
	}

	audio, err := s.tts.TextToSpeech(ctx, text)
	if err != nil {
		slog.Warn("Synthesizer.Synthesize: TTS failed, caller should fall back to text", "error", err)
		return "", fmt.Errorf("%w: %v", models.ErrDegraded, err)
	}

	id := s.cache.Put(audio)
	url := fmt.Sprintf("%s/audio/%s.mp3", s.baseURL, id)
	slog.Debug("Synthesizer.Synthesize: audio cached", "id", id, "url", url)
	return url, nil
}
