package application

import "context"

// SpeechCapture records one utterance and returns it as WAV bytes.
type SpeechCapture interface {
	Capture(ctx context.Context) ([]byte, error)
	Name() string
}
