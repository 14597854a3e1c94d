package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

func TestGetOrCreateNewSession(t *testing.T) {
	s := NewConversationStore()
	sess := s.GetOrCreate("CA123", "+15551234567")
	if sess.ID != "CA123" || sess.CallerAddress != "+15551234567" {
		t.Errorf("unexpected session identity: %+v", sess)
	}
	if sess.State != models.StateAwaitingGreeting {
		t.Errorf("expected new session in awaiting_greeting, got %s", sess.State)
	}
	if len(sess.Turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(sess.Turns))
	}
}

func TestAppendTurnCreatesAndAppends(t *testing.T) {
	s := NewConversationStore()
	sess := s.AppendTurn("CA1", models.SpeakerCaller, "I need a plumber")
	if len(sess.Turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(sess.Turns))
	}
	sess = s.AppendTurn("CA1", models.SpeakerAgent, "We can help!")
	if len(sess.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Speaker != models.SpeakerCaller || sess.Turns[1].Speaker != models.SpeakerAgent {
		t.Error("turn ordering not chronological")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewConversationStore()
	before := s.AppendTurn("CA1", models.SpeakerCaller, "first")
	s.AppendTurn("CA1", models.SpeakerAgent, "second")
	if len(before.Turns) != 1 {
		t.Error("earlier snapshot should not see later appends")
	}
}

func collectTurns(s *ConversationStore, id string, n int) []models.Turn {
	var out []models.Turn
	for turn := range s.RecentTurns(id, n) {
		out = append(out, turn)
	}
	return out
}

func TestRecentTurnsBounded(t *testing.T) {
	s := NewConversationStore()
	for i := 0; i < 10; i++ {
		s.AppendTurn("CA1", models.SpeakerCaller, fmt.Sprintf("turn %d", i))
	}
	turns := collectTurns(s, "CA1", 6)
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	if turns[0].Text != "turn 4" || turns[5].Text != "turn 9" {
		t.Errorf("expected the most recent 6 turns, got %q..%q", turns[0].Text, turns[5].Text)
	}
}

func TestRecentTurnsShortHistory(t *testing.T) {
	s := NewConversationStore()
	for i := 0; i < 3; i++ {
		s.AppendTurn("CA1", models.SpeakerCaller, fmt.Sprintf("turn %d", i))
	}
	if got := len(collectTurns(s, "CA1", 6)); got != 3 {
		t.Errorf("expected all 3 turns, got %d", got)
	}
	if got := len(collectTurns(s, "unknown", 6)); got != 0 {
		t.Errorf("expected no turns for unknown session, got %d", got)
	}
}

func TestRecentTurnsSnapshotAtCallTime(t *testing.T) {
	s := NewConversationStore()
	s.AppendTurn("CA1", models.SpeakerCaller, "before")
	seq := s.RecentTurns("CA1", 6)
	s.AppendTurn("CA1", models.SpeakerAgent, "after")

	var out []models.Turn
	for turn := range seq {
		out = append(out, turn)
	}
	if len(out) != 1 || out[0].Text != "before" {
		t.Errorf("sequence should reflect state at call time, got %d turns", len(out))
	}
}

func TestEvictIfOverCapacity(t *testing.T) {
	s := NewConversationStore()
	for i := 0; i < MaxSessions+1; i++ {
		s.GetOrCreate(fmt.Sprintf("CA%03d", i), "")
	}
	s.EvictIfOverCapacity()

	if got := s.Len(); got != RetainSessions {
		t.Fatalf("expected %d sessions after eviction, got %d", RetainSessions, got)
	}
	// The survivors are the most recently created; the oldest 51 are gone.
	if _, ok := s.Get("CA000"); ok {
		t.Error("oldest session should have been evicted")
	}
	if _, ok := s.Get("CA050"); ok {
		t.Error("session 50 should have been evicted")
	}
	if _, ok := s.Get("CA051"); !ok {
		t.Error("session 51 should have survived")
	}
	if _, ok := s.Get("CA100"); !ok {
		t.Error("newest session should have survived")
	}
}

func TestEvictNoopUnderCapacity(t *testing.T) {
	s := NewConversationStore()
	for i := 0; i < MaxSessions; i++ {
		s.GetOrCreate(fmt.Sprintf("CA%03d", i), "")
	}
	s.EvictIfOverCapacity()
	if got := s.Len(); got != MaxSessions {
		t.Errorf("expected no eviction at exactly MaxSessions, got %d", got)
	}
}

func TestReset(t *testing.T) {
	s := NewConversationStore()
	s.AppendTurn("CA1", models.SpeakerCaller, "hello")
	s.SetState("CA1", models.StateEnding)

	sess := s.Reset("CA1", "+15550000000")
	if sess.State != models.StateAwaitingGreeting {
		t.Errorf("expected fresh session state, got %s", sess.State)
	}
	if len(sess.Turns) != 0 {
		t.Error("reset session should have no memory of the prior call")
	}
	if s.Len() != 1 {
		t.Errorf("reset should not change session count, got %d", s.Len())
	}
}

func TestInMemoryVoicemailRepo(t *testing.T) {
	repo := NewInMemoryVoicemailRepo()
	vm := models.Voicemail{
		CallSID:      "CA1",
		Caller:       "+15551234567",
		RecordingURL: "https://api.twilio.com/recordings/RE1",
		Transcript:   "please call me back",
		CreatedAt:    time.Now(),
	}
	if err := repo.SaveVoicemail(vm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.ListVoicemails()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].CallSID != "CA1" {
		t.Error("voicemail not stored or retrieved correctly")
	}
}
