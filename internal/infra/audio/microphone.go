//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// MicrophoneSource opens the default input device for each capture and closes
// it again before returning.
type MicrophoneSource struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

func NewMicrophoneSource(cfg DetectorConfig, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{cfg: cfg, logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Capture(ctx context.Context) ([]byte, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, m.cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.cfg.SampleRate), len(buffer), buffer)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	detector := NewUtteranceDetector(m.cfg)

	for i := 0; i < detector.CalibrationFrames(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}
		detector.Calibrate(buffer)
	}

	m.logger.Debug("calibrated for ambient noise", "threshold", detector.Threshold())

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}
		if detector.Push(buffer) {
			break
		}
	}

	return EncodeWAV(detector.Samples(), m.cfg.SampleRate)
}
