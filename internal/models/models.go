// Package models defines the core data structures for VoicePipe.
//
// It includes the call session and turn types shared across modules, the
// directive types handed back to the telephony layer, and the inbound
// telephony event types.
package models

import (
	"errors"
	"time"
)

// Speaker identifies who produced a turn in the dialogue.
type Speaker string

const (
	// SpeakerCaller marks a transcribed caller utterance.
	SpeakerCaller Speaker = "caller"
	// SpeakerAgent marks a generated agent reply.
	SpeakerAgent Speaker = "agent"
)

// SessionState is the call session state machine position.
type SessionState string

const (
	// StateAwaitingGreeting is the initial state of a freshly created session.
	StateAwaitingGreeting SessionState = "awaiting_greeting"
	// StateAwaitingSpeech means the greeting (or a reply) has been spoken and
	// the agent is waiting for gathered caller speech.
	StateAwaitingSpeech SessionState = "awaiting_speech"
	// StateResponding means a caller turn has been appended and a reply is
	// being generated.
	StateResponding SessionState = "responding"
	// StateEnding is terminal: the next instruction hangs up the call.
	StateEnding SessionState = "ending"
	// StateEscalated means the conversation could not proceed and the caller
	// is being routed to voicemail.
	StateEscalated SessionState = "escalated"
)

// Turn is one utterance in a session's dialogue history. Turns are immutable
// once appended; ordering is append-only and chronological.
type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// CallSession holds the state associated with one phone call, keyed by the
// telephony provider's call identifier.
type CallSession struct {
	ID            string       `json:"id"`
	CallerAddress string       `json:"caller_address"` // display-only
	Turns         []Turn       `json:"turns"`
	State         SessionState `json:"state"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Voicemail records a completed fallback recording. Unlike conversation
// history, voicemails survive restarts when a persistent repo is configured.
type Voicemail struct {
	CallSID      string    `json:"call_sid"`
	Caller       string    `json:"caller"`
	RecordingURL string    `json:"recording_url"`
	Transcript   string    `json:"transcript,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrDegraded signals that an upstream generation or synthesis dependency is
// unavailable or erroring. Callers must fall back to plain text; it is never
// fatal for the call.
var ErrDegraded = errors.New("upstream dependency degraded")

// API Response types for consistent JSON responses

// APIStatus enumerates the status field values for API responses.
type APIStatus string

const (
	// APIStatusOK indicates a successful request.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed request.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
