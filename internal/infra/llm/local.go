package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"voice-chatbot/internal/domain"
)

// LocalGenerator runs a small causal model on this machine through a runner
// command. The runner reads one JSON request on stdin and answers with
// {"text": "..."} on stdout.
type LocalGenerator struct {
	cmd       []string
	model     string
	device    string
	maxLength int
	mu        sync.Mutex
}

type localRequest struct {
	Prompt             string `json:"prompt"`
	Model              string `json:"model"`
	MaxLength          int    `json:"max_length"`
	NumReturnSequences int    `json:"num_return_sequences"`
	Device             string `json:"device"`
}

type localResponse struct {
	Text string `json:"text"`
}

func NewLocalGenerator(command, model, device string, maxLength int) (*LocalGenerator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse local model command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("local model command empty")
	}
	if maxLength <= 0 {
		maxLength = domain.DefaultMaxTokens
	}
	if device == "" {
		device = "auto"
	}
	return &LocalGenerator{cmd: args, model: model, device: device, maxLength: maxLength}, nil
}

func (g *LocalGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, err := json.Marshal(localRequest{
		Prompt:             prompt,
		Model:              g.model,
		MaxLength:          g.maxLength,
		NumReturnSequences: 1,
		Device:             g.device,
	})
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, g.cmd[0], g.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("local model command failed: %w: %s", err, stderr.String())
	}

	var resp localResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode local model response: %w", err)
	}

	return StripSpecialTokens(resp.Text), nil
}
