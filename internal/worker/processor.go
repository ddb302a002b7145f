package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"transcription-service/internal/engine"
	"transcription-service/internal/entity"
	"transcription-service/internal/subtitle"
)

// JobRepo is the store port the processor needs: single-record mutation
// plus the cross-job broadcast used while a model loads.
type JobRepo interface {
	Update(id uuid.UUID, mutate func(*entity.Job)) error
	UpdateAllMatching(pred func(*entity.Job) bool, mutate func(*entity.Job)) int
}

// Processor drives one task through the job state machine.
type Processor struct {
	repo       JobRepo
	engines    *engine.Cache
	resultsDir string
	log        zerolog.Logger
}

func NewProcessor(repo JobRepo, engines *engine.Cache, resultsDir string, log zerolog.Logger) *Processor {
	return &Processor{
		repo:       repo,
		engines:    engines,
		resultsDir: resultsDir,
		log:        log,
	}
}

// Process runs the task to a terminal state. Any failure becomes the
// job's error state and is never retried; the temp input is removed
// whichever way the task ends.
func (p *Processor) Process(ctx context.Context, task entity.Task) {
	defer p.cleanup(task)

	start := time.Now()
	if err := p.run(ctx, task); err != nil {
		msg := err.Error()
		_ = p.repo.Update(task.JobID, func(j *entity.Job) {
			j.Fail(msg)
		})
		p.log.Error().
			Str("job_id", task.JobID.String()).
			Dur("took", time.Since(start)).
			Str("error", msg).
			Msg("job failed")
		return
	}

	p.log.Info().
		Str("job_id", task.JobID.String()).
		Dur("took", time.Since(start)).
		Msg("job done")
}

func (p *Processor) run(ctx context.Context, task entity.Task) error {
	if err := p.repo.Update(task.JobID, func(j *entity.Job) {
		j.Advance(entity.StatusProcessing, 5)
	}); err != nil {
		return err
	}

	handle, err := p.resolveEngine(ctx, task)
	if err != nil {
		return err
	}

	opts := engine.Options{
		Task:        "transcribe",
		Accelerated: task.Device == "cuda" && engine.CUDAAvailable(),
	}
	if task.Kind == "translate" {
		opts.Task = "translate"
	}
	if task.Language != "auto" {
		opts.Language = task.Language
	}

	if err := p.repo.Update(task.JobID, func(j *entity.Job) {
		j.Advance(entity.StatusTranscribing, 40)
	}); err != nil {
		return err
	}

	started := time.Now()
	result, err := handle.Run(ctx, task.InputPath, opts)
	if err != nil {
		return err
	}
	took := time.Since(started).Seconds()

	if err := p.repo.Update(task.JobID, func(j *entity.Job) {
		j.Advance(entity.StatusTranscribing, 70)
	}); err != nil {
		return err
	}

	outputPath, err := p.materialize(task, result)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename))
	return p.repo.Update(task.JobID, func(j *entity.Job) {
		j.Advance(entity.StatusDone, 100)
		j.OutputPath = outputPath
		j.OutputName = stem + "." + task.Format
		j.Seconds = took
	})
}

// resolveEngine returns the handle for the task's model. A cold load is a
// queue-wide event: every job waiting on the same model is moved through
// loading_model and back, not just the current one.
func (p *Processor) resolveEngine(ctx context.Context, task entity.Task) (engine.Handle, error) {
	if p.engines.Cached(task.Model) {
		return p.engines.Get(ctx, task.Model, task.Device)
	}

	sameModel := func(j *entity.Job) bool {
		return j.Model == task.Model && !j.Status.Terminal()
	}

	p.repo.UpdateAllMatching(sameModel, func(j *entity.Job) {
		j.Advance(entity.StatusLoadingModel, 10)
	})

	handle, err := p.engines.Get(ctx, task.Model, task.Device)
	if err != nil {
		return nil, err
	}

	p.repo.UpdateAllMatching(func(j *entity.Job) bool {
		return j.Model == task.Model && j.Status == entity.StatusLoadingModel
	}, func(j *entity.Job) {
		j.Advance(entity.StatusTranscribing, 30)
	})

	return handle, nil
}

// materialize renders the result into the requested format, writes it to
// a scratch file and copies it byte-for-byte into the durable results
// directory under {jobID}_{stem}.{format}.
func (p *Processor) materialize(task entity.Task, result *engine.Result) (string, error) {
	body, err := subtitle.Render(result, task.Format)
	if err != nil {
		return "", err
	}

	scratch, err := os.CreateTemp("", "result-*."+task.Format)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())

	if _, err := scratch.Write(body); err != nil {
		scratch.Close()
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.resultsDir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	stem := strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename))
	name := fmt.Sprintf("%s_%s.%s", task.JobID, stem, task.Format)
	outputPath := filepath.Join(p.resultsDir, name)

	if err := copyFile(scratch.Name(), outputPath); err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return outputPath, nil
}

// cleanup removes the task's temp input and directory. It runs whether
// the job succeeded or failed; the task item is considered consumed
// either way.
func (p *Processor) cleanup(task entity.Task) {
	if err := os.Remove(task.InputPath); err != nil && !os.IsNotExist(err) {
		p.log.Warn().Err(err).Str("path", task.InputPath).Msg("temp input remove failed")
	}
	if task.TempDir != "" {
		if err := os.RemoveAll(task.TempDir); err != nil {
			p.log.Warn().Err(err).Str("path", task.TempDir).Msg("temp dir remove failed")
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
