package models

// AnswerTimeoutEvent fires when a call was not answered by a human within the
// dial timeout and control passes to the agent.
type AnswerTimeoutEvent struct {
	SessionID     string `json:"session_id"`
	CallerAddress string `json:"caller_address"`
	DialOutcome   string `json:"dial_outcome"`
}

// SpeechResultEvent carries the transcription of gathered caller speech.
// TranscribedText may be empty when the gather timed out or nothing was
// recognized.
type SpeechResultEvent struct {
	SessionID       string `json:"session_id"`
	TranscribedText string `json:"transcribed_text"`
}

// RecordingCompleteEvent fires when a fallback voicemail recording finished.
type RecordingCompleteEvent struct {
	SessionID        string `json:"session_id"`
	CallerAddress    string `json:"caller_address"`
	RecordingLocator string `json:"recording_locator"`
	TranscribedText  string `json:"transcribed_text,omitempty"`
}
