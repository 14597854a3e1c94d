package store

import (
	"sync"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

// VoicemailRepo records completed fallback recordings.
type VoicemailRepo interface {
	SaveVoicemail(vm models.Voicemail) error
	ListVoicemails() ([]models.Voicemail, error)
}

// InMemoryVoicemailRepo is the default repo when no database is configured.
type InMemoryVoicemailRepo struct {
	mu         sync.Mutex
	voicemails []models.Voicemail
}

// NewInMemoryVoicemailRepo creates an empty in-memory voicemail repo.
func NewInMemoryVoicemailRepo() *InMemoryVoicemailRepo {
	return &InMemoryVoicemailRepo{}
}

// SaveVoicemail appends vm to the in-memory log.
func (r *InMemoryVoicemailRepo) SaveVoicemail(vm models.Voicemail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voicemails = append(r.voicemails, vm)
	return nil
}

// ListVoicemails returns all recorded voicemails, oldest first.
func (r *InMemoryVoicemailRepo) ListVoicemails() ([]models.Voicemail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Voicemail(nil), r.voicemails...), nil
}
