// Package twiliovoice adapts VoicePipe directives and events to the Twilio
// voice webhook protocol.
//
// It renders the controller's directive sequences to TwiML and parses inbound
// Twilio form posts into the typed telephony events. It is the only package
// that knows anything about Twilio.
package twiliovoice

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/twilio/twilio-go/twiml"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

// Recording limits for the voicemail fallback.
const (
	// MaxRecordingSeconds caps a voicemail length.
	MaxRecordingSeconds = 120
	// TranscriptionCallbackPath receives the async transcription result.
	TranscriptionCallbackPath = "/voice/transcription"
)

// Render converts an ordered directive sequence into a TwiML document.
func Render(directives []models.Directive) (string, error) {
	var verbs []twiml.Element
	for _, d := range directives {
		switch d.Type {
		case models.DirectivePlayAudio:
			verbs = append(verbs, &twiml.VoicePlay{Url: d.AudioURL})
		case models.DirectiveSayText:
			verbs = append(verbs, &twiml.VoiceSay{Message: d.Text})
		case models.DirectiveGatherSpeech:
			gather := &twiml.VoiceGather{
				Input:         "speech",
				Action:        d.CallbackTarget,
				Method:        http.MethodPost,
				Timeout:       strconv.Itoa(d.TimeoutSeconds),
				SpeechTimeout: "auto",
			}
			if d.Text != "" {
				// Follow-up gather: the prompt is spoken inside the gather and
				// a timeout falls through to the end of the document, which
				// hangs up. The initial gather instead posts back an empty
				// result so the caller is re-prompted.
				gather.InnerElements = []twiml.Element{&twiml.VoiceSay{Message: d.Text}}
			} else {
				gather.ActionOnEmptyResult = "true"
			}
			verbs = append(verbs, gather)
		case models.DirectiveStartRecording:
			record := &twiml.VoiceRecord{
				Action:    d.CallbackTarget,
				Method:    http.MethodPost,
				MaxLength: strconv.Itoa(MaxRecordingSeconds),
				PlayBeep:  "true",
			}
			if d.Transcribe {
				record.Transcribe = "true"
				record.TranscribeCallback = TranscriptionCallbackPath
			}
			verbs = append(verbs, record)
		case models.DirectiveHangup:
			verbs = append(verbs, &twiml.VoiceHangup{})
		default:
			return "", fmt.Errorf("unknown directive type %q", d.Type)
		}
	}

	doc, err := twiml.Voice(verbs)
	if err != nil {
		return "", fmt.Errorf("failed to render TwiML: %w", err)
	}
	return doc, nil
}

// ParseAnswerTimeoutEvent extracts the takeover event from a Twilio dial
// status callback.
func ParseAnswerTimeoutEvent(r *http.Request) models.AnswerTimeoutEvent {
	outcome := r.FormValue("DialCallStatus")
	if outcome == "" {
		outcome = r.FormValue("CallStatus")
	}
	ev := models.AnswerTimeoutEvent{
		SessionID:     r.FormValue("CallSid"),
		CallerAddress: r.FormValue("From"),
		DialOutcome:   outcome,
	}
	slog.Debug("twiliovoice.ParseAnswerTimeoutEvent", "session", ev.SessionID, "outcome", ev.DialOutcome)
	return ev
}

// ParseSpeechResultEvent extracts the gather result from a Twilio speech
// callback. SpeechResult is empty when the gather timed out.
func ParseSpeechResultEvent(r *http.Request) models.SpeechResultEvent {
	ev := models.SpeechResultEvent{
		SessionID:       r.FormValue("CallSid"),
		TranscribedText: r.FormValue("SpeechResult"),
	}
	slog.Debug("twiliovoice.ParseSpeechResultEvent", "session", ev.SessionID, "transcript_len", len(ev.TranscribedText))
	return ev
}

// ParseRecordingCompleteEvent extracts the recording (or transcription)
// callback fields.
func ParseRecordingCompleteEvent(r *http.Request) models.RecordingCompleteEvent {
	ev := models.RecordingCompleteEvent{
		SessionID:        r.FormValue("CallSid"),
		CallerAddress:    r.FormValue("From"),
		RecordingLocator: r.FormValue("RecordingUrl"),
		TranscribedText:  r.FormValue("TranscriptionText"),
	}
	slog.Debug("twiliovoice.ParseRecordingCompleteEvent", "session", ev.SessionID, "recording", ev.RecordingLocator)
	return ev
}
