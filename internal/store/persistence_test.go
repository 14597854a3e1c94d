package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

func TestSQLiteVoicemailRepo(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "voicepipe.db")
	repo, err := NewSQLiteVoicemailRepo(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite repo: %v", err)
	}
	defer repo.Close()

	vm := models.Voicemail{
		CallSID:      "CA1",
		Caller:       "+15551234567",
		RecordingURL: "https://api.twilio.com/recordings/RE1",
		Transcript:   "please call me back",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveVoicemail(vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.ListVoicemails()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 voicemail, got %d", len(got))
	}
	if got[0].CallSID != "CA1" || got[0].RecordingURL != vm.RecordingURL || got[0].Transcript != vm.Transcript {
		t.Errorf("voicemail fields not round-tripped: %+v", got[0])
	}
}

func TestSQLiteVoicemailRepoEmptyDSN(t *testing.T) {
	if _, err := NewSQLiteVoicemailRepo(""); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestPostgresVoicemailRepo(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	repo, err := NewPostgresVoicemailRepo(dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer repo.Close()
	repo.db.Exec("DELETE FROM voicemails")

	vm := models.Voicemail{CallSID: "CA1", RecordingURL: "https://example.com/RE1", CreatedAt: time.Now()}
	if err := repo.SaveVoicemail(vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.ListVoicemails()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].CallSID != "CA1" {
		t.Error("voicemail not stored or retrieved correctly in Postgres")
	}
}
