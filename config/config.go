package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voice-chatbot/internal/domain"
)

type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Generator     GeneratorConfig     `yaml:"generator"`
	TTS           TTSConfig           `yaml:"tts"`
	Session       SessionConfig       `yaml:"session"`
	UI            UIConfig            `yaml:"ui"`
	Log           LogConfig           `yaml:"log"`
}

type AudioConfig struct {
	Source          string        `yaml:"source"`
	FileDir         string        `yaml:"file_dir"`
	SampleRate      int           `yaml:"sample_rate"`
	FrameSize       int           `yaml:"frame_size"`
	EnergyThreshold float64       `yaml:"energy_threshold"`
	DynamicRatio    float64       `yaml:"dynamic_ratio"`
	Calibration     time.Duration `yaml:"calibration"`
	Pause           time.Duration `yaml:"pause"`
	LeadIn          time.Duration `yaml:"lead_in"`
	MaxUtterance    time.Duration `yaml:"max_utterance"`
}

type TranscriptionConfig struct {
	Provider string       `yaml:"provider"`
	Google   GoogleConfig `yaml:"google"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

type GoogleConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type GeneratorConfig struct {
	Backend   string       `yaml:"backend"`
	MaxTokens int          `yaml:"max_tokens"`
	Local     LocalConfig  `yaml:"local"`
	Remote    RemoteConfig `yaml:"remote"`
}

type LocalConfig struct {
	Command string `yaml:"command"`
	Model   string `yaml:"model"`
	Device  string `yaml:"device"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type TTSConfig struct {
	Engine  string `yaml:"engine"`
	Command string `yaml:"command"`
	Voice   string `yaml:"voice"`
	Rate    int    `yaml:"rate"`
}

type SessionConfig struct {
	ReleaseMode string `yaml:"release_mode"`
}

type UIConfig struct {
	Addr     string `yaml:"addr"`
	IconPath string `yaml:"icon_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file. Variables from a .env file in the working
// directory are loaded first so ${VAR} references can use them.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 1024
	}
	if c.Audio.EnergyThreshold == 0 {
		c.Audio.EnergyThreshold = 300
	}
	if c.Audio.DynamicRatio == 0 {
		c.Audio.DynamicRatio = 1.5
	}
	if c.Audio.Calibration == 0 {
		c.Audio.Calibration = time.Second
	}
	if c.Audio.Pause == 0 {
		c.Audio.Pause = 800 * time.Millisecond
	}
	if c.Audio.LeadIn == 0 {
		c.Audio.LeadIn = 300 * time.Millisecond
	}
	if c.Audio.MaxUtterance == 0 {
		c.Audio.MaxUtterance = 15 * time.Second
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "google"
	}
	if c.Transcription.Google.Language == "" {
		c.Transcription.Google.Language = "en-US"
	}
	if c.Transcription.OpenAI.Language == "" {
		c.Transcription.OpenAI.Language = "en"
	}
	if c.Generator.Backend == "" {
		c.Generator.Backend = string(domain.BackendRemote)
	}
	if c.Generator.MaxTokens == 0 {
		c.Generator.MaxTokens = domain.DefaultMaxTokens
	}
	if c.Generator.Local.Model == "" {
		c.Generator.Local.Model = "distilgpt2"
	}
	if c.Generator.Local.Device == "" {
		c.Generator.Local.Device = "auto"
	}
	if c.Generator.Remote.BaseURL == "" {
		c.Generator.Remote.BaseURL = "http://localhost:11434/v1"
	}
	if c.Generator.Remote.Model == "" {
		c.Generator.Remote.Model = "quantized-llama3"
	}
	if c.TTS.Engine == "" {
		c.TTS.Engine = "exec"
	}
	if c.TTS.Command == "" {
		c.TTS.Command = defaultTTSCommand()
	}
	if c.Session.ReleaseMode == "" {
		c.Session.ReleaseMode = string(domain.ReleaseFinish)
	}
	if c.UI.Addr == "" {
		c.UI.Addr = "127.0.0.1:8080"
	}
	if c.UI.IconPath == "" {
		c.UI.IconPath = "mic_icon.png"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultTTSCommand() string {
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak-ng"
}

// Validate rejects values that would otherwise be guessed at.
func (c *Config) Validate() error {
	switch c.Audio.Source {
	case "microphone", "file":
	default:
		return fmt.Errorf("unknown audio source %q", c.Audio.Source)
	}

	switch c.Transcription.Provider {
	case "google", "whisper":
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}

	backend, err := domain.ParseBackend(c.Generator.Backend)
	if err != nil {
		return err
	}
	if backend == domain.BackendLocal && c.Generator.Local.Command == "" {
		return fmt.Errorf("generator.local.command is required for the local backend")
	}
	if c.Generator.MaxTokens < 0 || c.Generator.MaxTokens > domain.DefaultMaxTokens {
		return fmt.Errorf("generator.max_tokens must be between 1 and %d", domain.DefaultMaxTokens)
	}

	switch c.TTS.Engine {
	case "exec", "none":
	default:
		return fmt.Errorf("unknown tts engine %q", c.TTS.Engine)
	}

	if !domain.ReleaseMode(c.Session.ReleaseMode).Valid() {
		return fmt.Errorf("unknown session release mode %q", c.Session.ReleaseMode)
	}

	return nil
}
