package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"transcription-service/internal/engine"
	"transcription-service/internal/entity"
	"transcription-service/internal/repository/jsonfile"
)

var (
	// ErrNotFound re-exports the repository sentinel so transport code
	// depends on one package for error mapping.
	ErrNotFound = jsonfile.ErrNotFound

	// ErrMissingFilename rejects submissions without an uploaded file.
	ErrMissingFilename = errors.New("no file provided")

	// ErrInvalidState rejects operations not valid for the job's status.
	ErrInvalidState = errors.New("operation not valid for job status")

	// ErrFileRequired rejects resubmission without a fresh upload: the
	// original temp input is removed during worker cleanup, so retrying
	// always requires the file again.
	ErrFileRequired = errors.New("original file is gone, upload it again")
)

// Repository is the store port the lifecycle API needs.
type Repository interface {
	Create(job *entity.Job)
	GetByID(id uuid.UUID) (*entity.Job, error)
	List() []*entity.Job
	Update(id uuid.UUID, mutate func(*entity.Job)) error
}

// TaskQueue is the enqueue-only port of the queue.
type TaskQueue interface {
	Enqueue(task entity.Task)
}

type JobService struct {
	repo    Repository
	queue   TaskQueue
	hasCUDA func() bool
	log     zerolog.Logger
}

func NewJobService(repo Repository, queue TaskQueue, log zerolog.Logger) *JobService {
	return &JobService{
		repo:    repo,
		queue:   queue,
		hasCUDA: engine.CUDAAvailable,
		log:     log,
	}
}

type SubmitRequest struct {
	Filename string
	File     io.Reader
	Model    string
	Format   string
	Device   string
	Language string
	Task     string
}

// Submit stages the upload, records the job as queued and hands a task to
// the worker. Returns the new job ID.
func (s *JobService) Submit(req SubmitRequest) (uuid.UUID, error) {
	if req.Filename == "" {
		return uuid.Nil, ErrMissingFilename
	}

	device := s.resolveDevice(req.Device)

	tempDir, inputPath, err := s.stage(req.Filename, req.File)
	if err != nil {
		return uuid.Nil, err
	}

	job := &entity.Job{
		ID:        uuid.New(),
		Filename:  req.Filename,
		Model:     req.Model,
		Format:    req.Format,
		Device:    device,
		Language:  req.Language,
		Task:      req.Task,
		Status:    entity.StatusQueued,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	s.repo.Create(job)

	s.queue.Enqueue(entity.Task{
		JobID:     job.ID,
		InputPath: inputPath,
		TempDir:   tempDir,
		Filename:  job.Filename,
		Model:     job.Model,
		Format:    job.Format,
		Device:    job.Device,
		Language:  job.Language,
		Kind:      job.Task,
	})

	s.log.Info().
		Str("job_id", job.ID.String()).
		Str("model", job.Model).
		Str("format", job.Format).
		Str("device", job.Device).
		Msg("job queued")

	return job.ID, nil
}

// Get returns the current record verbatim.
func (s *JobService) Get(id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(id)
}

// List returns all records.
func (s *JobService) List() []*entity.Job {
	return s.repo.List()
}

// Download resolves the output artifact for a finished job. It returns
// the on-disk path and the filename the artifact should be served under.
func (s *JobService) Download(id uuid.UUID) (path, name string, err error) {
	job, err := s.repo.GetByID(id)
	if err != nil {
		return "", "", err
	}
	if job.Status != entity.StatusDone {
		return "", "", fmt.Errorf("%w: job is %s", ErrInvalidState, job.Status)
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		return "", "", fmt.Errorf("result file: %w", ErrNotFound)
	}
	return job.OutputPath, job.OutputName, nil
}

// Resubmit re-queues an errored job with a newly uploaded file, keeping
// the original request parameters. filename may be empty only when file
// is nil, which is rejected with ErrFileRequired.
func (s *JobService) Resubmit(id uuid.UUID, filename string, file io.Reader) error {
	job, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if job.Status != entity.StatusError {
		return fmt.Errorf("%w: only errored jobs can be resubmitted", ErrInvalidState)
	}
	if file == nil {
		return ErrFileRequired
	}
	if filename == "" {
		filename = job.Filename
	}

	tempDir, inputPath, err := s.stage(filename, file)
	if err != nil {
		return err
	}

	if err := s.repo.Update(id, func(j *entity.Job) {
		j.ResetForRetry(filename)
	}); err != nil {
		return err
	}

	s.queue.Enqueue(entity.Task{
		JobID:     id,
		InputPath: inputPath,
		TempDir:   tempDir,
		Filename:  filename,
		Model:     job.Model,
		Format:    job.Format,
		Device:    job.Device,
		Language:  job.Language,
		Kind:      job.Task,
	})

	s.log.Info().Str("job_id", id.String()).Msg("job requeued")
	return nil
}

// resolveDevice falls back to cpu silently when cuda is requested but the
// host has no accelerator.
func (s *JobService) resolveDevice(requested string) string {
	if requested == "cuda" && s.hasCUDA() {
		return "cuda"
	}
	return "cpu"
}

// stage persists an uploaded stream into a fresh temp dir owned by the
// task until worker cleanup.
func (s *JobService) stage(filename string, file io.Reader) (dir, path string, err error) {
	dir, err = os.MkdirTemp("", "transcribe-")
	if err != nil {
		return "", "", fmt.Errorf("create temp dir: %w", err)
	}

	path = filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("stage upload: %w", err)
	}
	defer dst.Close()

	if file != nil {
		if _, err := io.Copy(dst, file); err != nil {
			os.RemoveAll(dir)
			return "", "", fmt.Errorf("stage upload: %w", err)
		}
	}
	return dir, path, nil
}
