package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voice-chatbot/config"
	"voice-chatbot/internal/application"
	"voice-chatbot/internal/domain"
	"voice-chatbot/internal/infra/audio"
	"voice-chatbot/internal/infra/google"
	"voice-chatbot/internal/infra/llm"
	"voice-chatbot/internal/infra/metrics"
	"voice-chatbot/internal/infra/openai"
	"voice-chatbot/internal/infra/tts"
	"voice-chatbot/internal/infra/ui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	generator, err := createGenerator(cfg.Generator)
	if err != nil {
		logger.Error("creating generator", "error", err)
		os.Exit(1)
	}

	synth, err := createSynthesizer(cfg.TTS, logger)
	if err != nil {
		logger.Error("creating speech synthesizer", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewRecorder()

	session := application.NewSession(
		createCapture(cfg.Audio, logger),
		application.NewTranscriber(createSpeechToText(cfg.Transcription), recorder, logger),
		generator,
		synth,
		recorder,
		domain.ReleaseMode(cfg.Session.ReleaseMode),
		logger,
	)

	server, err := ui.NewServer(cfg.UI.Addr, cfg.UI.IconPath, session, recorder.Handler(), logger)
	if err != nil {
		logger.Error("creating push-to-talk page", "error", err)
		os.Exit(1)
	}

	logger.Info("starting voice chatbot",
		"audio_source", cfg.Audio.Source,
		"transcription", cfg.Transcription.Provider,
		"backend", cfg.Generator.Backend,
		"release_mode", cfg.Session.ReleaseMode,
	)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	session.Release()
	session.Wait()
	if err := server.Stop(); err != nil {
		logger.Error("stopping server", "error", err)
	}
}

func createCapture(cfg config.AudioConfig, logger *slog.Logger) application.SpeechCapture {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir)
	default:
		return audio.NewMicrophoneSource(audio.DetectorConfig{
			SampleRate:      cfg.SampleRate,
			FrameSize:       cfg.FrameSize,
			EnergyThreshold: cfg.EnergyThreshold,
			DynamicRatio:    cfg.DynamicRatio,
			Calibration:     cfg.Calibration,
			Pause:           cfg.Pause,
			LeadIn:          cfg.LeadIn,
			MaxUtterance:    cfg.MaxUtterance,
		}, logger)
	}
}

func createSpeechToText(t config.TranscriptionConfig) application.SpeechToText {
	switch t.Provider {
	case "whisper":
		return openai.NewWhisperClient(t.OpenAI.APIKey, t.OpenAI.Language)
	default:
		return google.NewSpeechClient(t.Google.APIKey, t.Google.Language)
	}
}

func createGenerator(cfg config.GeneratorConfig) (application.Generator, error) {
	backend, err := domain.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case domain.BackendLocal:
		gen, err := llm.NewLocalGenerator(cfg.Local.Command, cfg.Local.Model, cfg.Local.Device, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case domain.BackendRemote:
		r := cfg.Remote
		return llm.NewRemoteGenerator(r.BaseURL, r.APIKey, r.Model, cfg.MaxTokens, r.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}

func createSynthesizer(cfg config.TTSConfig, logger *slog.Logger) (application.Synthesizer, error) {
	if cfg.Engine == "none" {
		return tts.NewNoopSpeaker(logger), nil
	}
	speaker, err := tts.NewExecSpeaker(tts.Options{
		Command: cfg.Command,
		Voice:   cfg.Voice,
		Rate:    cfg.Rate,
	})
	if err != nil {
		return nil, err
	}
	return speaker, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
