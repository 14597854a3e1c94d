// Package flow implements the call session state machine.
//
// The Controller is invoked once per inbound telephony event, reads and
// updates the conversation store, invokes the response generator and speech
// synthesizer, and produces the ordered directive sequence handed back to the
// telephony layer. It holds no lock across network calls: store mutation is
// guarded inside the store itself.
package flow

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/BTreeMap/VoicePipe/internal/models"
	"github.com/BTreeMap/VoicePipe/internal/store"
)

// HistoryLimit bounds how many recent turns the response generator sees.
const HistoryLimit = 6

// Gather timeouts in seconds.
const (
	// GreetingGatherTimeout is the wait for the caller's first utterance.
	GreetingGatherTimeout = 4
	// FollowUpGatherTimeout is the wait after an agent reply. A timeout here
	// falls through to hangup on the provider's side.
	FollowUpGatherTimeout = 5
)

// Fixed spoken lines. Each is synthesized when the voice service is up and
// spoken as plain text when it is not.
const (
	GreetingLine      = "Hi, you've reached our automated assistant. Nobody could pick up right now, but I can help. What can I do for you?"
	ClarificationLine = "Sorry, I didn't catch that. Could you say that again?"
	FollowUpPrompt    = "Is there anything else I can help you with?"
	ApologyLine       = "I'm sorry, I'm having trouble assisting you right now. Please leave a message after the tone and we'll get back to you as soon as possible."
	ClosingLine       = "Thank you, your message has been recorded. We'll get back to you soon. Goodbye!"
	UnavailableLine   = "Our automated assistant is currently unavailable. Please call back later."
)

// DefaultSystemPrompt instructs the generation model. Replies are spoken
// aloud, so it asks for short conversational answers.
const DefaultSystemPrompt = "You are a friendly phone assistant answering a call that a human could not pick up. " +
	"Keep replies short, natural and conversational: one or two sentences, no lists, no markdown. " +
	"Help the caller with their request or collect enough detail for a follow-up. " +
	"When the conversation is finished, close with a polite goodbye."

// ResponseGenerator produces an agent reply from a system prompt and bounded
// recent history, or models.ErrDegraded.
type ResponseGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history iter.Seq[models.Turn]) (string, error)
}

// SpeechSynthesizer produces a playback URL for text, or models.ErrDegraded.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Controller drives one call session per inbound telephony event.
type Controller struct {
	store       *store.ConversationStore
	generator   ResponseGenerator
	synthesizer SpeechSynthesizer
	voicemails  store.VoicemailRepo

	systemPrompt      string
	disabled          bool
	speechCallback    string
	recordingCallback string
	now               func() time.Time
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) ControllerOption {
	return func(c *Controller) { c.systemPrompt = prompt }
}

// WithDisabled disables the agent entirely: every call is told the assistant
// is unavailable and hung up.
func WithDisabled(disabled bool) ControllerOption {
	return func(c *Controller) { c.disabled = disabled }
}

// WithCallbacks overrides the webhook paths the provider posts gather and
// recording results to.
func WithCallbacks(speech, recording string) ControllerOption {
	return func(c *Controller) {
		c.speechCallback = speech
		c.recordingCallback = recording
	}
}

// WithControllerClock injects a clock for tests.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController creates a Controller with its collaborators. generator and
// synthesizer may be nil, in which case every turn takes the degraded path.
func NewController(st *store.ConversationStore, gen ResponseGenerator, synth SpeechSynthesizer, vms store.VoicemailRepo, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:             st,
		generator:         gen,
		synthesizer:       synth,
		voicemails:        vms,
		systemPrompt:      DefaultSystemPrompt,
		speechCallback:    "/voice/speech",
		recordingCallback: "/voice/recording",
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleAnswerTimeout handles the takeover event: the call was not answered
// by a human within the dial timeout. It greets the caller exactly once,
// starts gathering speech, and arms a background recording as a durable
// fallback.
func (c *Controller) HandleAnswerTimeout(ctx context.Context, ev models.AnswerTimeoutEvent) []models.Directive {
	slog.Info("Controller.HandleAnswerTimeout: agent taking over call", "session", ev.SessionID, "caller", ev.CallerAddress, "outcome", ev.DialOutcome)
	c.store.EvictIfOverCapacity()

	if c.disabled {
		return []models.Directive{models.SayText(UnavailableLine), models.Hangup()}
	}

	sess := c.store.GetOrCreate(ev.SessionID, ev.CallerAddress)
	if sess.State == models.StateEnding {
		// Stale identifier reused by the provider: start fresh.
		sess = c.store.Reset(ev.SessionID, ev.CallerAddress)
	}
	if sess.State != models.StateAwaitingGreeting {
		// Duplicate delivery; the greeting already went out. Just gather.
		slog.Warn("Controller.HandleAnswerTimeout: duplicate event for live session", "session", ev.SessionID, "state", sess.State)
		return []models.Directive{models.GatherSpeech(GreetingGatherTimeout, c.speechCallback, "")}
	}

	c.store.SetState(ev.SessionID, models.StateAwaitingSpeech)
	return []models.Directive{
		c.speak(ctx, GreetingLine),
		models.GatherSpeech(GreetingGatherTimeout, c.speechCallback, ""),
		models.StartRecording(c.recordingCallback, true),
	}
}

// HandleSpeechResult handles a gather result carrying transcribed caller
// speech. An empty transcript re-prompts without appending a turn; a
// non-empty transcript drives one conversation round.
func (c *Controller) HandleSpeechResult(ctx context.Context, ev models.SpeechResultEvent) []models.Directive {
	c.store.EvictIfOverCapacity()

	sess, ok := c.store.Get(ev.SessionID)
	if !ok || sess.State == models.StateEnding {
		// Unknown or already-terminated id: re-create under the same
		// identifier with no memory of any prior call.
		c.store.Reset(ev.SessionID, sess.CallerAddress)
	}

	if ev.TranscribedText == "" {
		slog.Debug("Controller.HandleSpeechResult: empty transcript, re-prompting", "session", ev.SessionID)
		return []models.Directive{
			models.SayText(ClarificationLine),
			models.GatherSpeech(GreetingGatherTimeout, c.speechCallback, ""),
		}
	}

	c.store.AppendTurn(ev.SessionID, models.SpeakerCaller, ev.TranscribedText)
	c.store.SetState(ev.SessionID, models.StateResponding)

	reply, err := c.generate(ctx, ev.SessionID)
	if err != nil {
		slog.Error("Controller.HandleSpeechResult: generation failed, escalating to voicemail", "session", ev.SessionID, "error", err)
		c.store.SetState(ev.SessionID, models.StateEscalated)
		directives := []models.Directive{
			c.speak(ctx, ApologyLine),
			models.StartRecording(c.recordingCallback, true),
		}
		c.store.SetState(ev.SessionID, models.StateEnding)
		return directives
	}

	c.store.AppendTurn(ev.SessionID, models.SpeakerAgent, reply)
	speak := c.speak(ctx, reply)

	if ContainsEndingPhrase(reply) {
		slog.Info("Controller.HandleSpeechResult: reply contains closing phrase, ending call", "session", ev.SessionID)
		c.store.SetState(ev.SessionID, models.StateEnding)
		return []models.Directive{speak, models.Hangup()}
	}

	c.store.SetState(ev.SessionID, models.StateAwaitingSpeech)
	return []models.Directive{
		speak,
		models.GatherSpeech(FollowUpGatherTimeout, c.speechCallback, FollowUpPrompt),
	}
}

// HandleRecordingComplete handles the voicemail fallback path: the recording
// is persisted, the caller hears a closing confirmation, and the call ends.
func (c *Controller) HandleRecordingComplete(ctx context.Context, ev models.RecordingCompleteEvent) []models.Directive {
	slog.Info("Controller.HandleRecordingComplete: voicemail recorded", "session", ev.SessionID, "recording", ev.RecordingLocator, "transcribed", ev.TranscribedText != "")
	c.store.EvictIfOverCapacity()

	caller := ev.CallerAddress
	if sess, ok := c.store.Get(ev.SessionID); ok && caller == "" {
		caller = sess.CallerAddress
	}
	if c.voicemails != nil {
		vm := models.Voicemail{
			CallSID:      ev.SessionID,
			Caller:       caller,
			RecordingURL: ev.RecordingLocator,
			Transcript:   ev.TranscribedText,
			CreatedAt:    c.now(),
		}
		if err := c.voicemails.SaveVoicemail(vm); err != nil {
			// The recording still exists at the provider; losing the log
			// entry must not break the call.
			slog.Error("Controller.HandleRecordingComplete: failed to save voicemail", "session", ev.SessionID, "error", err)
		}
	}

	c.store.SetState(ev.SessionID, models.StateEnding)
	return []models.Directive{c.speak(ctx, ClosingLine), models.Hangup()}
}

// SaveTranscription attaches a late transcription callback to the voicemail
// log. Best effort only.
func (c *Controller) SaveTranscription(ev models.RecordingCompleteEvent) {
	if c.voicemails == nil || ev.TranscribedText == "" {
		return
	}
	vm := models.Voicemail{
		CallSID:      ev.SessionID,
		Caller:       ev.CallerAddress,
		RecordingURL: ev.RecordingLocator,
		Transcript:   ev.TranscribedText,
		CreatedAt:    c.now(),
	}
	if err := c.voicemails.SaveVoicemail(vm); err != nil {
		slog.Error("Controller.SaveTranscription: failed to save transcription", "session", ev.SessionID, "error", err)
	}
}

// generate runs one single-attempt generation over the bounded recent history.
func (c *Controller) generate(ctx context.Context, sessionID string) (string, error) {
	if c.generator == nil {
		return "", models.ErrDegraded
	}
	return c.generator.Generate(ctx, c.systemPrompt, c.store.RecentTurns(sessionID, HistoryLimit))
}

// speak synthesizes text into a play-audio directive, falling back to a plain
// say-text directive when synthesis is degraded. The fallback never blocks a
// state transition.
func (c *Controller) speak(ctx context.Context, text string) models.Directive {
	if c.synthesizer == nil {
		return models.SayText(text)
	}
	url, err := c.synthesizer.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("Controller.speak: synthesis degraded, falling back to text", "error", err)
		return models.SayText(text)
	}
	return models.PlayAudio(url)
}
