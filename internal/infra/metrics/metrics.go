// Package metrics exports pipeline counters and latencies for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	registry     *prometheus.Registry
	turns        *prometheus.CounterVec
	transcripts  *prometheus.CounterVec
	stages       *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_chatbot_turns_total",
			Help: "Push-to-talk turns by outcome",
		}, []string{"outcome"}),
		transcripts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_chatbot_transcriptions_total",
			Help: "Transcription results by outcome",
		}, []string{"outcome"}),
		stages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_chatbot_stage_requests_total",
			Help: "Pipeline stage runs by status",
		}, []string{"stage", "status"}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_chatbot_stage_latency_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
	}
}

func (r *Recorder) ObserveStage(stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.stages.WithLabelValues(stage, status).Inc()
	r.stageLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (r *Recorder) TurnCompleted(outcome string) {
	r.turns.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Transcribed(outcome string) {
	r.transcripts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
