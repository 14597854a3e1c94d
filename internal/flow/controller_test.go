package flow

import (
	"context"
	"iter"
	"testing"

	"github.com/BTreeMap/VoicePipe/internal/models"
	"github.com/BTreeMap/VoicePipe/internal/store"
)

// stubGenerator implements ResponseGenerator for testing.
type stubGenerator struct {
	reply      string
	err        error
	historyLen int // turns seen on the last call
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt string, history iter.Seq[models.Turn]) (string, error) {
	g.historyLen = 0
	for range history {
		g.historyLen++
	}
	return g.reply, g.err
}

// stubSynthesizer implements SpeechSynthesizer for testing.
type stubSynthesizer struct {
	url string
	err error
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	return s.url, s.err
}

func directiveTypes(directives []models.Directive) []models.DirectiveType {
	out := make([]models.DirectiveType, len(directives))
	for i, d := range directives {
		out[i] = d.Type
	}
	return out
}

func containsType(directives []models.Directive, dt models.DirectiveType) bool {
	for _, d := range directives {
		if d.Type == dt {
			return true
		}
	}
	return false
}

func answerEvent(id string) models.AnswerTimeoutEvent {
	return models.AnswerTimeoutEvent{SessionID: id, CallerAddress: "+15551234567", DialOutcome: "no-answer"}
}

func TestAnswerTimeoutGreetsAndGathers(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{}, nil, nil)

	directives := ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	want := []models.DirectiveType{models.DirectiveSayText, models.DirectiveGatherSpeech, models.DirectiveStartRecording}
	got := directiveTypes(directives)
	if len(got) != len(want) {
		t.Fatalf("expected %d directives, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("directive %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if directives[0].Text != GreetingLine {
		t.Errorf("expected greeting text, got %q", directives[0].Text)
	}
	if directives[1].TimeoutSeconds != GreetingGatherTimeout {
		t.Errorf("expected gather timeout %d, got %d", GreetingGatherTimeout, directives[1].TimeoutSeconds)
	}

	sess, ok := st.Get("abc")
	if !ok || sess.State != models.StateAwaitingSpeech {
		t.Errorf("expected session awaiting speech, got %+v", sess)
	}
}

func TestAnswerTimeoutDuplicateDoesNotGreetAgain(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{}, nil, nil)

	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	directives := ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	got := directiveTypes(directives)
	if len(got) != 1 || got[0] != models.DirectiveGatherSpeech {
		t.Fatalf("duplicate event should only gather, got %v", got)
	}
}

func TestAnswerTimeoutPlaysSynthesizedGreeting(t *testing.T) {
	st := store.NewConversationStore()
	synth := &stubSynthesizer{url: "http://localhost:8080/audio/id1.mp3"}
	ctrl := NewController(st, &stubGenerator{}, synth, nil)

	directives := ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	if directives[0].Type != models.DirectivePlayAudio {
		t.Fatalf("expected play-audio greeting, got %s", directives[0].Type)
	}
	if directives[0].AudioURL != synth.url {
		t.Errorf("unexpected playback URL %q", directives[0].AudioURL)
	}
}

func TestAnswerTimeoutDisabledShortCircuits(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{}, nil, nil, WithDisabled(true))

	directives := ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	got := directiveTypes(directives)
	if len(got) != 2 || got[0] != models.DirectiveSayText || got[1] != models.DirectiveHangup {
		t.Fatalf("expected [say, hangup], got %v", got)
	}
	if directives[0].Text != UnavailableLine {
		t.Errorf("expected unavailable message, got %q", directives[0].Text)
	}
}

func TestSpeechResultFullRound(t *testing.T) {
	st := store.NewConversationStore()
	gen := &stubGenerator{reply: "We can help! What's your address?"}
	ctrl := NewController(st, gen, nil, nil)

	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	directives := ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{
		SessionID:       "abc",
		TranscribedText: "I need a plumber",
	})

	sess, _ := st.Get("abc")
	if len(sess.Turns) != 2 {
		t.Fatalf("expected 2 turns after one round, got %d", len(sess.Turns))
	}
	if sess.Turns[0].Speaker != models.SpeakerCaller || sess.Turns[0].Text != "I need a plumber" {
		t.Errorf("unexpected caller turn %+v", sess.Turns[0])
	}
	if sess.Turns[1].Speaker != models.SpeakerAgent || sess.Turns[1].Text != gen.reply {
		t.Errorf("unexpected agent turn %+v", sess.Turns[1])
	}
	if sess.State != models.StateAwaitingSpeech {
		t.Errorf("expected awaiting_speech, got %s", sess.State)
	}

	last := directives[len(directives)-1]
	if last.Type != models.DirectiveGatherSpeech {
		t.Fatalf("expected sequence ending in gather, got %v", directiveTypes(directives))
	}
	if last.TimeoutSeconds != FollowUpGatherTimeout {
		t.Errorf("expected follow-up gather timeout %d, got %d", FollowUpGatherTimeout, last.TimeoutSeconds)
	}
	if containsType(directives, models.DirectiveHangup) {
		t.Error("continuing round must not hang up")
	}
}

func TestSpeechResultEmptyTranscriptReprompts(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{reply: "hi"}, nil, nil)

	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	directives := ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc"})

	sess, _ := st.Get("abc")
	if len(sess.Turns) != 0 {
		t.Errorf("empty transcript must not append a turn, got %d", len(sess.Turns))
	}
	if sess.State != models.StateAwaitingSpeech {
		t.Errorf("expected awaiting_speech, got %s", sess.State)
	}
	got := directiveTypes(directives)
	if len(got) != 2 || got[0] != models.DirectiveSayText || got[1] != models.DirectiveGatherSpeech {
		t.Fatalf("expected [say, gather] re-prompt, got %v", got)
	}
	if directives[0].Text != ClarificationLine {
		t.Errorf("expected clarification line, got %q", directives[0].Text)
	}
}

func TestTurnsGrowByTwoPerRound(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{reply: "Tell me more."}, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	for i := 0; i < 3; i++ {
		ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "more detail"})
	}
	sess, _ := st.Get("abc")
	if len(sess.Turns) != 6 {
		t.Errorf("expected 6 turns after 3 rounds, got %d", len(sess.Turns))
	}
}

func TestGeneratorSeesBoundedHistory(t *testing.T) {
	st := store.NewConversationStore()
	gen := &stubGenerator{reply: "Noted."}
	ctrl := NewController(st, gen, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	for i := 0; i < 8; i++ {
		ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "more"})
	}
	if gen.historyLen > HistoryLimit {
		t.Errorf("generator saw %d turns, limit is %d", gen.historyLen, HistoryLimit)
	}
}

func TestEndingPhraseEndsCall(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{reply: "We'll be in touch soon!"}, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	directives := ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "please call me back"})

	sess, _ := st.Get("abc")
	if sess.State != models.StateEnding {
		t.Errorf("expected ending state, got %s", sess.State)
	}
	got := directiveTypes(directives)
	if got[len(got)-1] != models.DirectiveHangup {
		t.Fatalf("expected sequence ending in hangup, got %v", got)
	}
}

func TestNonEndingReplyContinues(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{reply: "Let me check that for you"}, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "is my order ready?"})

	sess, _ := st.Get("abc")
	if sess.State != models.StateAwaitingSpeech {
		t.Errorf("expected awaiting_speech, got %s", sess.State)
	}
}

func TestGenerationFailureEscalatesToVoicemail(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{err: models.ErrDegraded}, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	directives := ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "hello?"})

	if !containsType(directives, models.DirectiveStartRecording) {
		t.Errorf("escalation must start a recording, got %v", directiveTypes(directives))
	}
	if containsType(directives, models.DirectiveGatherSpeech) {
		t.Errorf("escalation must not gather, got %v", directiveTypes(directives))
	}
	sess, _ := st.Get("abc")
	if sess.State != models.StateEnding {
		t.Errorf("expected ending state after escalation, got %s", sess.State)
	}
}

func TestSynthesisFailureFallsBackToText(t *testing.T) {
	st := store.NewConversationStore()
	synth := &stubSynthesizer{err: models.ErrDegraded}
	ctrl := NewController(st, &stubGenerator{reply: "Sure, happy to help."}, synth, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	directives := ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "hi"})

	if directives[0].Type != models.DirectiveSayText {
		t.Errorf("expected text fallback when synthesis fails, got %s", directives[0].Type)
	}
	sess, _ := st.Get("abc")
	if sess.State != models.StateAwaitingSpeech {
		t.Error("synthesis failure must not block the state transition")
	}
}

func TestRecordingCompleteSavesVoicemail(t *testing.T) {
	st := store.NewConversationStore()
	repo := store.NewInMemoryVoicemailRepo()
	ctrl := NewController(st, &stubGenerator{}, nil, repo)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))

	directives := ctrl.HandleRecordingComplete(context.Background(), models.RecordingCompleteEvent{
		SessionID:        "abc",
		RecordingLocator: "https://api.twilio.com/recordings/RE1",
		TranscribedText:  "please call me back",
	})

	vms, err := repo.ListVoicemails()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vms) != 1 || vms[0].RecordingURL != "https://api.twilio.com/recordings/RE1" {
		t.Fatalf("voicemail not saved: %+v", vms)
	}
	if vms[0].Caller != "+15551234567" {
		t.Errorf("expected caller address from session, got %q", vms[0].Caller)
	}

	got := directiveTypes(directives)
	if got[len(got)-1] != models.DirectiveHangup {
		t.Errorf("expected closing confirmation then hangup, got %v", got)
	}
	sess, _ := st.Get("abc")
	if sess.State != models.StateEnding {
		t.Errorf("expected ending state, got %s", sess.State)
	}
}

func TestEventAfterEndingRecreatesSession(t *testing.T) {
	st := store.NewConversationStore()
	ctrl := NewController(st, &stubGenerator{reply: "How can I help?"}, nil, nil)
	ctrl.HandleAnswerTimeout(context.Background(), answerEvent("abc"))
	ctrl.HandleRecordingComplete(context.Background(), models.RecordingCompleteEvent{SessionID: "abc"})

	// A stale id reused by the provider starts a fresh conversation with no
	// memory of the prior call.
	ctrl.HandleSpeechResult(context.Background(), models.SpeechResultEvent{SessionID: "abc", TranscribedText: "hello again"})
	sess, _ := st.Get("abc")
	if len(sess.Turns) != 2 {
		t.Errorf("expected fresh session with one round, got %d turns", len(sess.Turns))
	}
}

func TestContainsEndingPhrase(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"We'll be in touch soon!", true},
		{"Thanks for calling, GOODBYE", true},
		{"Have a great day ahead", true},
		{"Let me check that for you", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ContainsEndingPhrase(tc.reply); got != tc.want {
			t.Errorf("ContainsEndingPhrase(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}
