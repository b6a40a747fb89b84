package application

import (
	"context"
	"errors"
	"log/slog"

	"voice-chatbot/internal/domain"
)

// SpeechToText is implemented by the cloud transcription providers. Providers
// report domain.ErrNoSpeech or domain.ErrTranscriptionService for the failures
// a turn can recover from.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer speaks text aloud and returns once playback has finished.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Generator produces a bounded reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcription outcomes reported to Metrics.
const (
	TranscriptRecognized   = "recognized"
	TranscriptNoSpeech     = "no_speech"
	TranscriptServiceError = "service_error"
	TranscriptFailed       = "failed"
)

// Transcriber turns recognition and service failures into an empty transcript.
type Transcriber struct {
	stt     SpeechToText
	metrics Metrics
	logger  *slog.Logger
}

func NewTranscriber(stt SpeechToText, metrics Metrics, logger *slog.Logger) *Transcriber {
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &Transcriber{stt: stt, metrics: metrics, logger: logger}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	text, err := t.stt.Transcribe(ctx, audio)
	switch {
	case err == nil:
		t.metrics.Transcribed(TranscriptRecognized)
		t.logger.Info("You said", "text", text)
		return text, nil
	case errors.Is(err, domain.ErrNoSpeech):
		t.metrics.Transcribed(TranscriptNoSpeech)
		t.logger.Warn("speech recognition could not understand audio", "error", err)
		return "", nil
	case errors.Is(err, domain.ErrTranscriptionService):
		t.metrics.Transcribed(TranscriptServiceError)
		t.logger.Warn("could not request results from speech recognition service", "error", err)
		return "", nil
	case errors.Is(err, context.Canceled):
		return "", err
	default:
		t.metrics.Transcribed(TranscriptFailed)
		return "", err
	}
}
