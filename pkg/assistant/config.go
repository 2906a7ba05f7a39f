package assistant

import "time"

// Screen texts.
const (
	listeningText    = "Listening..."
	transcribingText = "Transcribing..."
	thinkingText     = "Thinking..."
	noSpeechLine1    = "No speech"
	noSpeechLine2    = "Try again"
	errorText        = "Error"
)

// Config holds loop timings and the ready screen.
type Config struct {
	// AudioPath is overwritten by every recording.
	AudioPath      string
	RecordDuration time.Duration

	NoSpeechPause time.Duration
	AnswerDwell   time.Duration
	ErrorPause    time.Duration

	ReadyLine1 string
	ReadyLine2 string

	// Cols is the display width used for splitting answers and errors.
	Cols int
}

// DefaultConfig returns the timings of the reference device.
func DefaultConfig() Config {
	return Config{
		AudioPath:      "input.wav",
		RecordDuration: 6 * time.Second,
		NoSpeechPause:  2500 * time.Millisecond,
		AnswerDwell:    6 * time.Second,
		ErrorPause:     3 * time.Second,
		ReadyLine1:     "Pi Voice Ready",
		ReadyLine2:     "Flip switch to talk",
		Cols:           16,
	}
}
