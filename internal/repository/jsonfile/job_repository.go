// Package jsonfile persists job records as a single JSON snapshot file,
// rewritten wholesale after every mutation and read once at startup.
package jsonfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"transcription-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

// JobRepository owns the job map. The lifecycle API reads it concurrently
// with the single worker writing it, so all access goes through the lock;
// reads hand out copies so callers never observe a half-written record.
type JobRepository struct {
	mu   sync.RWMutex
	path string
	jobs map[uuid.UUID]*entity.Job
	log  zerolog.Logger
}

// New opens the repository backed by the snapshot at path. A missing or
// unreadable snapshot starts the store empty rather than failing startup.
func New(path string, log zerolog.Logger) *JobRepository {
	r := &JobRepository{
		path: path,
		jobs: make(map[uuid.UUID]*entity.Job),
		log:  log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("snapshot unreadable, starting empty")
		}
		return r
	}

	if err := json.Unmarshal(data, &r.jobs); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("snapshot corrupt, starting empty")
		r.jobs = make(map[uuid.UUID]*entity.Job)
		return r
	}

	log.Info().Int("jobs", len(r.jobs)).Str("path", path).Msg("snapshot loaded")
	return r
}

// Create stores a new record and snapshots.
func (r *JobRepository) Create(job *entity.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *job
	r.jobs[job.ID] = &clone
	r.saveLocked()
}

// GetByID returns a copy of the record.
func (r *JobRepository) GetByID(id uuid.UUID) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *j
	return &clone, nil
}

// List returns copies of all records in unspecified order.
func (r *JobRepository) List() []*entity.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		clone := *j
		out = append(out, &clone)
	}
	return out
}

// Update applies mutate to one record under the lock and snapshots.
func (r *JobRepository) Update(id uuid.UUID, mutate func(*entity.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(j)
	r.saveLocked()
	return nil
}

// UpdateAllMatching applies mutate to every record satisfying pred and
// snapshots once. The worker uses it to broadcast model-loading progress
// to all jobs waiting on the same model.
func (r *JobRepository) UpdateAllMatching(pred func(*entity.Job) bool, mutate func(*entity.Job)) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, j := range r.jobs {
		if pred(j) {
			mutate(j)
			n++
		}
	}
	if n > 0 {
		r.saveLocked()
	}
	return n
}

// saveLocked rewrites the snapshot file. Durability is best effort: a
// write failure is logged and the in-memory mutation stands, losing at
// most the latest transition on a crash.
func (r *JobRepository) saveLocked() {
	data, err := json.MarshalIndent(r.jobs, "", "  ")
	if err != nil {
		r.log.Error().Err(err).Msg("snapshot marshal failed")
		return
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			r.log.Error().Err(err).Str("path", r.path).Msg("snapshot dir create failed")
			return
		}
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("snapshot write failed")
	}
}
