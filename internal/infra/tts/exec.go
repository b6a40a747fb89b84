package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecSpeaker plays text through a local speech engine command such as
// espeak-ng or say. The text is passed as the last argument, after "--" so
// replies starting with a dash are not read as flags. Speak returns when the
// command exits.
type ExecSpeaker struct {
	cmd []string
	mu  sync.Mutex
}

type Options struct {
	Command string
	Voice   string
	Rate    int
}

func NewExecSpeaker(opts Options) (*ExecSpeaker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}

	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}
	if opts.Rate > 0 {
		args = append(args, rateFlag(args[0]), strconv.Itoa(opts.Rate))
	}

	return &ExecSpeaker{cmd: args}, nil
}

// espeak takes words per minute as -s, say as -r.
func rateFlag(engine string) string {
	switch engine {
	case "espeak", "espeak-ng":
		return "-s"
	default:
		return "-r"
	}
}

func (e *ExecSpeaker) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := append(append([]string{}, e.cmd[1:]...), "--", text)
	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("tts command failed: %w: %s", err, stderr.String())
	}
	return nil
}
