package application

import "time"

// Metrics receives pipeline measurements. Stage is one of capture, transcribe,
// generate or speak.
type Metrics interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	TurnCompleted(outcome string)
	Transcribed(outcome string)
}

type NoopMetrics struct{}

func (n *NoopMetrics) ObserveStage(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) TurnCompleted(_ string) {}

func (n *NoopMetrics) Transcribed(_ string) {}
