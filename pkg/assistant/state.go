package assistant

// State is the loop's current phase, mirrored on the display.
type State int

const (
	Ready State = iota
	Listening
	Transcribing
	NoSpeech
	Thinking
	Answered
	Error
)

var stateNames = [...]string{
	Ready:        "ready",
	Listening:    "listening",
	Transcribing: "transcribing",
	NoSpeech:     "no_speech",
	Thinking:     "thinking",
	Answered:     "answered",
	Error:        "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
