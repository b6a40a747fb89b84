package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voice-chatbot/internal/domain"
)

// Turn outcomes reported to Metrics.
const (
	OutcomeSpoken      = "spoken"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// Session is the push-to-talk controller. It owns the Idle/Recording state and
// runs the capture, transcribe, generate, speak loop on a worker goroutine while
// the control is held.
type Session struct {
	capture     SpeechCapture
	transcriber *Transcriber
	generator   Generator
	synth       Synthesizer
	metrics     Metrics
	mode        domain.ReleaseMode
	logger      *slog.Logger

	mu      sync.Mutex
	state   domain.SessionState
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	subs    map[int]chan domain.SessionState
	nextSub int
}

func NewSession(
	capture SpeechCapture,
	transcriber *Transcriber,
	generator Generator,
	synth Synthesizer,
	metrics Metrics,
	mode domain.ReleaseMode,
	logger *slog.Logger,
) *Session {
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	if !mode.Valid() {
		mode = domain.ReleaseFinish
	}
	return &Session{
		capture:     capture,
		transcriber: transcriber,
		generator:   generator,
		synth:       synth,
		metrics:     metrics,
		mode:        mode,
		logger:      logger,
		state:       domain.StateIdle,
		subs:        make(map[int]chan domain.SessionState),
	}
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the most recent worker, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Press moves the session to Recording and starts a worker. It returns false
// when the session was already recording. Press never blocks on the pipeline;
// a worker left over from an earlier press is waited for on the new worker.
func (s *Session) Press(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateRecording {
		return false
	}

	s.gen++
	workerCtx, cancel := context.WithCancel(ctx)
	prev := s.done
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done
	s.lastErr = nil
	s.setStateLocked(domain.StateRecording)

	go s.run(workerCtx, cancel, s.gen, prev, done)
	return true
}

// Release moves the session back to Idle. In ReleaseFinish mode the turn in
// flight completes before the worker exits; in ReleaseCancel mode it is
// interrupted.
func (s *Session) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateRecording {
		return false
	}

	s.setStateLocked(domain.StateIdle)
	if s.mode == domain.ReleaseCancel && s.cancel != nil {
		s.cancel()
	}
	return true
}

// Wait blocks until the current worker, if any, has exited.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Subscribe returns a channel of state changes and a function to stop them.
// Slow subscribers miss intermediate states.
func (s *Session) Subscribe() (<-chan domain.SessionState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.SessionState, 4)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Session) setStateLocked(state domain.SessionState) {
	if s.state == state {
		return
	}
	s.state = state
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

func (s *Session) active(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == domain.StateRecording
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer cancel()

	if prev != nil {
		<-prev
	}

	s.logger.Info("recording started")

	// Every press runs at least one full turn, even when released at once.
	// Only a cancelled context skips it.
	var runErr error
	for ctx.Err() == nil {
		if err := s.turn(ctx); err != nil {
			if ctx.Err() != nil && !s.active(gen) {
				s.logger.Info("turn interrupted by release")
				s.metrics.TurnCompleted(OutcomeInterrupted)
				break
			}
			s.logger.Error("turn failed", "error", err)
			s.metrics.TurnCompleted(OutcomeFailed)
			runErr = err
			break
		}
		if !s.active(gen) {
			break
		}
	}

	s.mu.Lock()
	if s.gen == gen {
		s.lastErr = runErr
		s.setStateLocked(domain.StateIdle)
	}
	s.mu.Unlock()

	s.logger.Info("recording stopped")
}

func (s *Session) turn(ctx context.Context) error {
	logger := s.logger.With("turn", uuid.NewString())

	logger.Info("Listening...", "source", s.capture.Name())
	var audio []byte
	err := s.stage("capture", func() error {
		var err error
		audio, err = s.capture.Capture(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("capturing speech: %w", err)
	}

	var text string
	err = s.stage("transcribe", func() error {
		var err error
		text, err = s.transcriber.Transcribe(ctx, audio)
		return err
	})
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}

	if text == "" {
		logger.Debug("empty transcript, skipping reply")
		s.metrics.TurnCompleted(OutcomeSkipped)
		return nil
	}

	var reply string
	err = s.stage("generate", func() error {
		var err error
		reply, err = s.generator.Generate(ctx, text)
		return err
	})
	if err != nil {
		return fmt.Errorf("generating response: %w", err)
	}

	logger.Info("Chatbot response", "text", reply)

	err = s.stage("speak", func() error {
		return s.synth.Speak(ctx, reply)
	})
	if err != nil {
		return fmt.Errorf("speaking response: %w", err)
	}

	s.metrics.TurnCompleted(OutcomeSpoken)
	return nil
}

func (s *Session) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()

	// an interrupted stage is not a stage failure
	observed := err
	if errors.Is(err, context.Canceled) {
		observed = nil
	}
	s.metrics.ObserveStage(name, time.Since(start), observed)
	return err
}
