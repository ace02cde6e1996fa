// Package notify fans job-state transitions out to subscribers. Pull
// consumers read the registry directly; this hub only carries the push
// path. Publishing never blocks the supervisor: each subscriber owns a
// pending queue drained at its own pace.
package notify

import (
	"context"
	"sync"

	"github.com/psannetwork/youtube/internal/domain"
)

// Subscription is one observer's live view of a job's transitions, in
// publish order. It completes naturally when the job reaches a terminal
// state, or early via Cancel.
type Subscription struct {
	hub   *Hub
	jobID string

	mu      sync.Mutex
	pending []domain.Job
	done    bool
	wake    chan struct{}
}

// Next blocks until a snapshot is available, the subscription completes,
// or ctx is cancelled. Returns false when no more snapshots will arrive;
// queued snapshots are still drained after completion so the terminal
// state is never lost.
func (s *Subscription) Next(ctx context.Context) (domain.Job, bool) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			job := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return job, true
		}
		if s.done {
			s.mu.Unlock()
			return domain.Job{}, false
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Job{}, false
		case <-s.wake:
		}
	}
}

// Cancel detaches the subscription. The underlying job keeps running and
// other subscribers are unaffected. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.hub.remove(s.jobID, s)

	s.mu.Lock()
	s.done = true
	s.pending = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Subscription) push(job domain.Job) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, job)
	s.mu.Unlock()
	s.notify()
}

// finish marks the subscription complete without dropping queued snapshots.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.notify()
}

func (s *Subscription) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Hub routes published snapshots to the subscribers of each job.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe attaches a new observer to a job. Transitions published from
// this point on are delivered in order; missed history is not replayed
// (the caller seeds the current snapshot itself).
func (h *Hub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{
		hub:   h,
		jobID: jobID,
		wake:  make(chan struct{}, 1),
	}

	h.mu.Lock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[jobID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish delivers a full job snapshot to every subscriber of the job.
// A terminal snapshot additionally completes and detaches all of them.
func (h *Hub) Publish(job domain.Job) {
	h.mu.Lock()
	set := h.subs[job.ID]
	targets := make([]*Subscription, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	if job.Status.Terminal() {
		delete(h.subs, job.ID)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.push(job.Clone())
		if job.Status.Terminal() {
			sub.finish()
		}
	}
}

// Subscribers reports how many observers a job currently has.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (h *Hub) remove(jobID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[jobID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, jobID)
		}
	}
}
