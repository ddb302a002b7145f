package worker

import (
	"context"

	"github.com/rs/zerolog"

	"transcription-service/internal/entity"
)

// DequeueQueue is the consume side of the task queue.
type DequeueQueue interface {
	Dequeue(ctx context.Context) (entity.Task, error)
}

// Loop is the single background consumer. Exactly one Loop runs per
// process; the engine cache relies on that for lock-free memoization.
type Loop struct {
	queue     DequeueQueue
	processor *Processor
	log       zerolog.Logger
}

func NewLoop(queue DequeueQueue, processor *Processor, log zerolog.Logger) *Loop {
	return &Loop{queue: queue, processor: processor, log: log}
}

// Run consumes tasks until ctx is done. A job failure never stops the
// loop: Process converts it to the job's terminal error state, and the
// recover below is the outer boundary for anything that escapes.
func (l *Loop) Run(ctx context.Context) {
	l.log.Info().Msg("worker started")

	for {
		if ctx.Err() != nil {
			l.log.Info().Msg("worker stopped")
			return
		}
		task, err := l.queue.Dequeue(ctx)
		if err != nil {
			l.log.Info().Msg("worker stopped")
			return
		}
		// The job in flight is never aborted; shutdown waits for it and
		// the loop exits before picking up the next task.
		l.safeProcess(context.WithoutCancel(ctx), task)
	}
}

func (l *Loop) safeProcess(ctx context.Context, task entity.Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Str("job_id", task.JobID.String()).
				Interface("panic", r).
				Msg("worker recovered from panic")
		}
	}()
	l.processor.Process(ctx, task)
}
