package models

// DirectiveType identifies one instruction handed back to the telephony layer.
type DirectiveType string

const (
	// DirectivePlayAudio plays a synthesized audio asset by playback URL.
	DirectivePlayAudio DirectiveType = "play_audio"
	// DirectiveSayText speaks plain text with the provider's built-in voice.
	// It is the fallback pairing of DirectivePlayAudio.
	DirectiveSayText DirectiveType = "say_text"
	// DirectiveGatherSpeech asks the provider to capture spoken input.
	DirectiveGatherSpeech DirectiveType = "gather_speech"
	// DirectiveStartRecording starts a recording as a durable fallback.
	DirectiveStartRecording DirectiveType = "start_recording"
	// DirectiveHangup terminates the call.
	DirectiveHangup DirectiveType = "hangup"
)

// Directive is a single instruction in the ordered sequence returned by the
// call controller. Exactly the fields relevant to the Type are set.
type Directive struct {
	Type DirectiveType `json:"type"`

	// AudioURL is the playback locator for DirectivePlayAudio.
	AudioURL string `json:"audio_url,omitempty"`
	// Text is the utterance for DirectiveSayText and the optional nested
	// prompt spoken inside a DirectiveGatherSpeech.
	Text string `json:"text,omitempty"`
	// TimeoutSeconds bounds a DirectiveGatherSpeech wait.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	// CallbackTarget is the webhook path the provider should post results to
	// for DirectiveGatherSpeech and DirectiveStartRecording.
	CallbackTarget string `json:"callback_target,omitempty"`
	// Transcribe asks the provider to transcribe a DirectiveStartRecording.
	Transcribe bool `json:"transcribe,omitempty"`
}

// PlayAudio builds a play-audio directive.
func PlayAudio(url string) Directive {
	return Directive{Type: DirectivePlayAudio, AudioURL: url}
}

// SayText builds a say-text directive.
func SayText(text string) Directive {
	return Directive{Type: DirectiveSayText, Text: text}
}

// GatherSpeech builds a gather directive with an optional nested prompt.
func GatherSpeech(timeoutSeconds int, callbackTarget, prompt string) Directive {
	return Directive{
		Type:           DirectiveGatherSpeech,
		TimeoutSeconds: timeoutSeconds,
		CallbackTarget: callbackTarget,
		Text:           prompt,
	}
}

// StartRecording builds a recording directive with transcription enabled.
func StartRecording(callbackTarget string, transcribe bool) Directive {
	return Directive{Type: DirectiveStartRecording, CallbackTarget: callbackTarget, Transcribe: transcribe}
}

// Hangup builds a hangup directive.
func Hangup() Directive {
	return Directive{Type: DirectiveHangup}
}
