package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"transcription-service/internal/engine"
	"transcription-service/internal/entity"
	"transcription-service/internal/repository/jsonfile"
	"transcription-service/internal/service"
)

// panickyRepo blows up on the first job to exercise the loop's outer
// boundary, then behaves normally.
type panickyRepo struct {
	*jsonfile.JobRepository
	panicFor uuid.UUID
}

func (r *panickyRepo) Update(id uuid.UUID, mutate func(*entity.Job)) error {
	if id == r.panicFor {
		panic("repo blew up")
	}
	return r.JobRepository.Update(id, mutate)
}

func TestLoopSurvivesPanicAndContinues(t *testing.T) {
	env := newEnv(t)
	bad := env.stageJob(t, "tiny", "txt")
	good := env.stageJob(t, "tiny", "txt")

	repo := &panickyRepo{JobRepository: env.repo, panicFor: bad.JobID}
	processor := NewProcessor(repo, engine.NewCache(env.loader), env.resultsDir, zerolog.Nop())

	queue := service.NewFIFOQueue()
	queue.Enqueue(bad)
	queue.Enqueue(good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := NewLoop(queue, processor, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		job, err := env.repo.GetByID(good.JobID)
		if err == nil && job.Status == entity.StatusDone {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job after a panicking one was never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on context cancel")
	}
}

func TestLoopStopsWhenIdle(t *testing.T) {
	repo := jsonfile.New(filepath.Join(t.TempDir(), "jobs.json"), zerolog.Nop())
	processor := NewProcessor(repo, engine.NewCache(&fakeLoader{}), t.TempDir(), zerolog.Nop())
	loop := NewLoop(service.NewFIFOQueue(), processor, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("idle loop did not stop on context cancel")
	}
}
