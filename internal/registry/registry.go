// Package registry holds the in-memory job table. Mutation is serialized
// per job; readers always see a consistent pre- or post-transition
// snapshot, never a mix. Nothing here survives a restart.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psannetwork/youtube/internal/domain"
)

type entry struct {
	mu  sync.Mutex
	job domain.Job
}

// Registry maps job ids to job records. The outer lock only guards the
// map; each record carries its own lock so concurrent jobs never
// serialize against each other.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*entry)}
}

// Create atomically reserves a new unique id and inserts a queued job.
func (r *Registry) Create(url string, format domain.Format, opts domain.Options, workspaceID string) domain.Job {
	job := domain.Job{
		ID:          uuid.NewString(),
		SourceURL:   url,
		Format:      format,
		Options:     opts,
		Status:      domain.StatusQueued,
		Progress:    domain.UnknownProgress(),
		WorkspaceID: workspaceID,
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = &entry{job: job}
	r.mu.Unlock()

	return job
}

// Get returns a snapshot of the job, or false if it is unknown or
// already garbage-collected.
func (r *Registry) Get(id string) (domain.Job, bool) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), true
}

// Update applies fn to the job record under its per-job lock and returns
// the resulting snapshot. Transitions are monotonic: once a job is
// terminal, the only state change Update admits is expiry, and no other
// field may move. Returns false if the job is unknown.
func (r *Registry) Update(id string, fn func(*domain.Job)) (domain.Job, bool) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.Terminal() {
		next := e.job.Clone()
		fn(&next)
		if next.Status == domain.StatusExpired && e.job.Status != domain.StatusExpired {
			e.job.Status = domain.StatusExpired
		}
		return e.job.Clone(), true
	}

	fn(&e.job)
	return e.job.Clone(), true
}

// Remove deletes the job record.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// List returns a snapshot of every tracked job.
func (r *Registry) List() []domain.Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.job.Clone())
		e.mu.Unlock()
	}
	return out
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
