// Package stt turns recorded speech into text.
//
// The OpenAI provider posts the WAV file to the audio transcription
// endpoint. Mock returns canned text for tests and offline runs.
package stt

import "context"

// Transcriber converts an audio file to text.
// Silence yields an empty string, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
