package tts

import (
	"context"
	"log/slog"
)

// NoopSpeaker logs replies instead of speaking them. Used when tts.engine is none.
type NoopSpeaker struct {
	logger *slog.Logger
}

func NewNoopSpeaker(logger *slog.Logger) *NoopSpeaker {
	return &NoopSpeaker{logger: logger}
}

func (n *NoopSpeaker) Speak(_ context.Context, text string) error {
	n.logger.Debug("speech disabled, not speaking", "text", text)
	return nil
}
