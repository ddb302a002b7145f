package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"transcription-service/internal/entity"
	"transcription-service/internal/repository/jsonfile"
)

type recordingQueue struct {
	tasks []entity.Task
}

func (q *recordingQueue) Enqueue(task entity.Task) {
	q.tasks = append(q.tasks, task)
}

func newTestService(t *testing.T) (*JobService, *jsonfile.JobRepository, *recordingQueue) {
	t.Helper()
	repo := jsonfile.New(filepath.Join(t.TempDir(), "jobs.json"), zerolog.Nop())
	queue := &recordingQueue{}
	svc := NewJobService(repo, queue, zerolog.Nop())
	svc.hasCUDA = func() bool { return false }
	return svc, repo, queue
}

func cleanupTasks(t *testing.T, q *recordingQueue) {
	t.Helper()
	for _, task := range q.tasks {
		os.RemoveAll(task.TempDir)
	}
}

func TestSubmitEmptyFilename(t *testing.T) {
	svc, repo, queue := newTestService(t)

	_, err := svc.Submit(SubmitRequest{Filename: ""})
	if !errors.Is(err, ErrMissingFilename) {
		t.Fatalf("expected ErrMissingFilename, got %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatal("nothing should be enqueued")
	}
	if len(repo.List()) != 0 {
		t.Fatal("nothing should be recorded")
	}
}

func TestSubmitQueuesJob(t *testing.T) {
	svc, repo, queue := newTestService(t)
	defer cleanupTasks(t, queue)

	id, err := svc.Submit(SubmitRequest{
		Filename: "talk.mp3",
		File:     strings.NewReader("fake audio"),
		Model:    "base",
		Format:   "srt",
		Device:   "cpu",
		Language: "pt",
		Task:     "translate",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if job.Status != entity.StatusQueued || job.Progress != 0 {
		t.Fatalf("expected queued/0, got %s/%d", job.Status, job.Progress)
	}
	if job.Model != "base" || job.Format != "srt" || job.Language != "pt" || job.Task != "translate" {
		t.Fatalf("request parameters lost: %+v", job)
	}

	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.JobID != id || task.Model != "base" || task.Kind != "translate" {
		t.Fatalf("task does not match job: %+v", task)
	}

	staged, err := os.ReadFile(task.InputPath)
	if err != nil {
		t.Fatalf("staged input missing: %v", err)
	}
	if string(staged) != "fake audio" {
		t.Fatalf("staged content = %q", staged)
	}
}

func TestSubmitDeviceFallback(t *testing.T) {
	svc, repo, queue := newTestService(t)
	defer cleanupTasks(t, queue)

	id, err := svc.Submit(SubmitRequest{
		Filename: "talk.mp3",
		File:     strings.NewReader("x"),
		Device:   "cuda",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := repo.GetByID(id)
	if job.Device != "cpu" {
		t.Fatalf("expected silent fallback to cpu, got %s", job.Device)
	}

	svc.hasCUDA = func() bool { return true }
	id, err = svc.Submit(SubmitRequest{
		Filename: "talk.mp3",
		File:     strings.NewReader("x"),
		Device:   "cuda",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ = repo.GetByID(id)
	if job.Device != "cuda" {
		t.Fatalf("expected cuda, got %s", job.Device)
	}
}

func TestDownloadStates(t *testing.T) {
	svc, repo, _ := newTestService(t)

	if _, _, err := svc.Download(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}

	queued := &entity.Job{ID: uuid.New(), Filename: "a.mp3", Status: entity.StatusQueued, CreatedAt: time.Now()}
	repo.Create(queued)
	if _, _, err := svc.Download(queued.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("queued job: expected ErrInvalidState, got %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "out.srt")
	if err := os.WriteFile(outPath, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	done := &entity.Job{
		ID:         uuid.New(),
		Filename:   "a.mp3",
		Status:     entity.StatusDone,
		OutputPath: outPath,
		OutputName: "a.srt",
		CreatedAt:  time.Now(),
	}
	repo.Create(done)

	path, name, err := svc.Download(done.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != outPath || name != "a.srt" {
		t.Fatalf("got %q/%q", path, name)
	}

	// output deleted out from under a done job
	os.Remove(outPath)
	if _, _, err := svc.Download(done.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing output: expected ErrNotFound, got %v", err)
	}
}

func TestResubmitRules(t *testing.T) {
	svc, repo, queue := newTestService(t)
	defer cleanupTasks(t, queue)

	if err := svc.Resubmit(uuid.New(), "", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}

	done := &entity.Job{ID: uuid.New(), Filename: "a.mp3", Status: entity.StatusDone, CreatedAt: time.Now()}
	repo.Create(done)
	if err := svc.Resubmit(done.ID, "a.mp3", strings.NewReader("x")); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("done job: expected ErrInvalidState, got %v", err)
	}

	failed := &entity.Job{
		ID:        uuid.New(),
		Filename:  "a.mp3",
		Model:     "base",
		Format:    "vtt",
		Device:    "cpu",
		Language:  "auto",
		Task:      "transcribe",
		Status:    entity.StatusError,
		Progress:  40,
		Error:     "boom",
		CreatedAt: time.Now(),
	}
	repo.Create(failed)

	// the original temp input is gone after worker cleanup, so a retry
	// without a fresh upload is rejected
	if err := svc.Resubmit(failed.ID, "", nil); !errors.Is(err, ErrFileRequired) {
		t.Fatalf("expected ErrFileRequired, got %v", err)
	}

	if err := svc.Resubmit(failed.ID, "a2.mp3", strings.NewReader("new audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := repo.GetByID(failed.ID)
	if job.Status != entity.StatusQueued || job.Progress != 0 || job.Error != "" {
		t.Fatalf("record not reset: %+v", job)
	}
	if job.Filename != "a2.mp3" {
		t.Fatalf("filename not updated: %s", job.Filename)
	}

	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Model != "base" || task.Format != "vtt" || task.Kind != "transcribe" {
		t.Fatalf("original parameters lost: %+v", task)
	}
}
