package engine

import (
	"context"
	"os/exec"
)

// Segment is a timed span of transcript text, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the full output of one inference run.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

// Options configures a single inference run.
type Options struct {
	// Task is "transcribe" or "translate".
	Task string
	// Language is passed through verbatim; empty means auto-detect.
	Language string
	// Accelerated enables half-precision GPU inference. Only set when the
	// requested device is cuda and the host actually has it.
	Accelerated bool
}

// Handle is a loaded inference-model instance. Handles are shared by all
// jobs requesting the same model name and live for the process lifetime.
type Handle interface {
	Run(ctx context.Context, audioPath string, opts Options) (*Result, error)
}

// Loader turns a model name and device into a ready Handle. Loading is
// blocking and potentially slow.
type Loader interface {
	Load(ctx context.Context, model, device string) (Handle, error)
}

// CUDAAvailable probes the host for an NVIDIA accelerator. Submission uses
// it to silently fall back to cpu when cuda was requested but is absent.
func CUDAAvailable() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}
