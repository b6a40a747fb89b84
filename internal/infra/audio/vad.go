package audio

import (
	"math"
	"time"
)

// DetectorConfig controls calibration and utterance boundaries.
type DetectorConfig struct {
	SampleRate      int
	FrameSize       int
	EnergyThreshold float64
	DynamicRatio    float64
	Calibration     time.Duration
	Pause           time.Duration
	LeadIn          time.Duration
	MaxUtterance    time.Duration
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SampleRate:      16000,
		FrameSize:       1024,
		EnergyThreshold: 300,
		DynamicRatio:    1.5,
		Calibration:     time.Second,
		Pause:           800 * time.Millisecond,
		LeadIn:          300 * time.Millisecond,
		MaxUtterance:    15 * time.Second,
	}
}

// UtteranceDetector finds one utterance in a stream of frames: it starts at the
// first frame louder than the threshold and ends after a pause of quiet frames.
type UtteranceDetector struct {
	cfg       DetectorConfig
	threshold float64

	ambientSum    float64
	ambientFrames int

	leadIn   [][]int16
	speaking bool
	samples  []int16
	silent   int
}

func NewUtteranceDetector(cfg DetectorConfig) *UtteranceDetector {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultDetectorConfig().FrameSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultDetectorConfig().SampleRate
	}
	return &UtteranceDetector{
		cfg:       cfg,
		threshold: cfg.EnergyThreshold,
	}
}

// CalibrationFrames is the number of frames Calibrate expects before listening.
func (d *UtteranceDetector) CalibrationFrames() int {
	return d.framesFor(d.cfg.Calibration)
}

// Calibrate folds one frame of ambient noise into the speech threshold.
func (d *UtteranceDetector) Calibrate(frame []int16) {
	d.ambientSum += CalculateRMS(frame)
	d.ambientFrames++

	ambient := d.ambientSum / float64(d.ambientFrames)
	d.threshold = math.Max(d.cfg.EnergyThreshold, ambient*d.cfg.DynamicRatio)
}

func (d *UtteranceDetector) Threshold() float64 {
	return d.threshold
}

// Push feeds one frame and reports whether the utterance is complete.
func (d *UtteranceDetector) Push(frame []int16) bool {
	loud := CalculateRMS(frame) > d.threshold

	if !d.speaking {
		if !loud {
			d.keepLeadIn(frame)
			return false
		}
		d.speaking = true
		for _, f := range d.leadIn {
			d.samples = append(d.samples, f...)
		}
		d.leadIn = nil
	}

	d.samples = append(d.samples, frame...)

	if loud {
		d.silent = 0
	} else {
		d.silent += len(frame)
	}

	if d.silent >= d.samplesFor(d.cfg.Pause) {
		return true
	}
	return d.cfg.MaxUtterance > 0 && len(d.samples) >= d.samplesFor(d.cfg.MaxUtterance)
}

func (d *UtteranceDetector) Speaking() bool {
	return d.speaking
}

// Samples returns the utterance collected so far.
func (d *UtteranceDetector) Samples() []int16 {
	return d.samples
}

func (d *UtteranceDetector) keepLeadIn(frame []int16) {
	limit := d.framesFor(d.cfg.LeadIn)
	if limit == 0 {
		return
	}
	d.leadIn = append(d.leadIn, append([]int16(nil), frame...))
	if len(d.leadIn) > limit {
		d.leadIn = d.leadIn[len(d.leadIn)-limit:]
	}
}

func (d *UtteranceDetector) samplesFor(dur time.Duration) int {
	return int(dur.Seconds() * float64(d.cfg.SampleRate))
}

func (d *UtteranceDetector) framesFor(dur time.Duration) int {
	n := d.samplesFor(dur)
	return (n + d.cfg.FrameSize - 1) / d.cfg.FrameSize
}

// CalculateRMS returns the root mean square energy of 16-bit samples.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
