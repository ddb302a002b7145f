package engine

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed assets/whisper_runner.py
var runnerScript []byte

// CLILoader loads Whisper models by shelling out to a python helper.
// Load pre-warms the model weights (download + first load) so that the
// slow step happens exactly once per model name; Run then invokes the
// helper per job against the warmed cache.
type CLILoader struct {
	python string
	log    zerolog.Logger
}

func NewCLILoader(python string, log zerolog.Logger) *CLILoader {
	if python == "" {
		python = "python3"
	}
	return &CLILoader{python: python, log: log}
}

func (l *CLILoader) Load(ctx context.Context, model, device string) (Handle, error) {
	script, err := writeRunner()
	if err != nil {
		return nil, err
	}
	defer os.Remove(script)

	start := time.Now()
	cmd := exec.CommandContext(ctx, l.python, script, "--preload", "--model", model, "--device", device)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("load model %s: %s", model, firstLine(out, err))
	}

	l.log.Info().
		Str("model", model).
		Str("device", device).
		Dur("took", time.Since(start)).
		Msg("model loaded")

	return &cliHandle{python: l.python, model: model, device: device}, nil
}

type cliHandle struct {
	python string
	model  string
	device string
}

func (h *cliHandle) Run(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	script, err := writeRunner()
	if err != nil {
		return nil, err
	}
	defer os.Remove(script)

	args := []string{script, "--model", h.model, "--device", h.device, "--audio", audioPath}
	if opts.Task != "" {
		args = append(args, "--task", opts.Task)
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.Accelerated {
		args = append(args, "--fp16")
	}

	cmd := exec.CommandContext(ctx, h.python, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("whisper: %s", firstLine(ee.Stderr, err))
		}
		return nil, fmt.Errorf("run whisper helper: %w", err)
	}

	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	return &res, nil
}

func writeRunner() (string, error) {
	path := filepath.Join(os.TempDir(), "whisper_runner.py")
	if err := os.WriteFile(path, runnerScript, 0o755); err != nil {
		return "", fmt.Errorf("write helper script: %w", err)
	}
	return path, nil
}

// firstLine reduces helper output to a single human-readable message for
// the job's error field.
func firstLine(out []byte, fallback error) string {
	s := strings.TrimSpace(string(out))
	if s == "" {
		return fallback.Error()
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	return s
}
