// Package supervisor owns the job lifecycle: it launches the extraction
// process against a freshly allocated workspace, translates its output
// into progress updates, drives the state machine to a terminal state,
// and schedules storage reclamation.
package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/logger"
	"github.com/psannetwork/youtube/internal/notify"
	"github.com/psannetwork/youtube/internal/registry"
	"github.com/psannetwork/youtube/internal/workspace"
	"github.com/psannetwork/youtube/internal/youtube"
	"github.com/psannetwork/youtube/internal/ytdlp"
)

// maxStderrBytes bounds the retained stderr tail surfaced on failure.
const maxStderrBytes = 4096

// Config holds the supervision policy knobs.
type Config struct {
	// Timeout is the wall-clock ceiling for one job; the process is
	// killed when it is exceeded.
	Timeout time.Duration
	// Retention is how long a terminal job's files stay on disk.
	Retention time.Duration
	// LowSpaceThreshold triggers best-effort eviction before new
	// allocations and on every sweep.
	LowSpaceThreshold int64
}

// Supervisor coordinates download jobs. All exported methods are safe
// for concurrent use.
type Supervisor struct {
	registry   *registry.Registry
	workspaces *workspace.Manager
	hub        *notify.Hub
	runner     ytdlp.Runner
	log        *logger.Logger
	cfg        Config
}

// New wires a supervisor from its collaborators.
func New(
	reg *registry.Registry,
	workspaces *workspace.Manager,
	hub *notify.Hub,
	runner ytdlp.Runner,
	log *logger.Logger,
	cfg Config,
) *Supervisor {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Supervisor{
		registry:   reg,
		workspaces: workspaces,
		hub:        hub,
		runner:     runner,
		log:        log.WithField(logger.FieldComponent, "supervisor"),
		cfg:        cfg,
	}
}

// Start accepts a normalized URL, allocates an isolated workspace,
// registers a queued job, and launches supervision in the background.
// Validation failures belong to the caller; only resource errors are
// possible here, and a job hit by one is never created.
func (s *Supervisor) Start(url string, format domain.Format, opts domain.Options) (domain.Job, error) {
	if evicted, ok := s.workspaces.EvictIfLow(s.cfg.LowSpaceThreshold); ok {
		s.log.WithField("path", evicted).Info("reclaimed space before allocation")
	}

	ws, err := s.workspaces.Allocate()
	if err != nil {
		return domain.Job{}, err
	}

	job := s.registry.Create(url, format, opts, ws.ID)
	s.log.WithFields(logger.Fields{
		logger.FieldJobID:       job.ID,
		logger.FieldWorkspaceID: ws.ID,
		logger.FieldURL:         url,
		logger.FieldFormat:      string(format),
	}).Info("job accepted")

	go s.run(job, ws)
	return job, nil
}

// Snapshot returns the current state of a job without blocking.
func (s *Supervisor) Snapshot(id string) (domain.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

// Subscribe attaches a push observer to a job. The returned snapshot is
// the subscriber's first event; the subscription carries every transition
// from this point on. Registration happens before the snapshot read, so
// a racing transition is delivered twice rather than lost.
func (s *Supervisor) Subscribe(id string) (*notify.Subscription, domain.Job, error) {
	sub := s.hub.Subscribe(id)
	job, ok := s.registry.Get(id)
	if !ok {
		sub.Cancel()
		return nil, domain.Job{}, domain.ErrJobNotFound
	}
	return sub, job, nil
}

// run supervises one job to a terminal state. It is the only writer of
// that job's record.
func (s *Supervisor) run(job domain.Job, ws workspace.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	log := s.log.WithFields(logger.Fields{
		logger.FieldJobID:       job.ID,
		logger.FieldWorkspaceID: ws.ID,
	})

	s.transition(job.ID, func(j *domain.Job) {
		j.Status = domain.StatusRunning
	})

	tail := &stderrTail{limit: maxStderrBytes}
	runErr := s.runner.Run(ctx, ytdlp.RunRequest{
		URL:          job.SourceURL,
		Format:       job.Format,
		OutputDir:    ws.Path,
		Playlist:     job.Options.Playlist || youtube.IsPlaylist(job.SourceURL),
		Subtitles:    job.Options.Subtitles,
		SubtitleLang: job.Options.SubtitleLang,
	}, func(line string) {
		s.onStdout(job.ID, line)
	}, func(line string) {
		if ev := ytdlp.ParseStderrLine(line); ev.Kind == ytdlp.EventError {
			tail.append(ev.Message)
		}
	})

	switch {
	case runErr == nil:
		s.complete(job.ID, ws, log)
	case ctx.Err() == context.DeadlineExceeded:
		terr := &domain.TimeoutError{Limit: s.cfg.Timeout.String()}
		log.Warnf("job killed: %v", terr)
		s.fail(job.ID, terr.Error())
		// The files are garbage; reclaim without waiting for retention.
		if err := s.workspaces.Reclaim(ws); err != nil {
			log.WithError(err).Warn("eager reclaim failed, janitor will retry")
		}
		return
	default:
		s.fail(job.ID, s.describeFailure(runErr, tail.String()))
		log.WithError(runErr).Warn("job failed")
	}

	s.scheduleReclaim(job.ID, ws, log)
}

func (s *Supervisor) complete(jobID string, ws workspace.Handle, log *logger.Logger) {
	files, err := s.workspaces.Collect(ws.ID, youtube.SanitizeFilename)
	if err == nil && len(files) == 0 {
		err = errors.New("process exited cleanly but produced no output files")
	}
	if err != nil {
		s.fail(jobID, "download produced no output: "+err.Error())
		log.WithError(err).Warn("completion without output")
		return
	}

	now := time.Now().UTC()
	s.transition(jobID, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.Files = files
		j.Progress.Percent = 100
		j.Progress.ETASeconds = 0
		j.CompletedAt = &now
	})
	log.WithField("files", len(files)).Info("job completed")
}

func (s *Supervisor) fail(jobID, detail string) {
	now := time.Now().UTC()
	s.transition(jobID, func(j *domain.Job) {
		j.Status = domain.StatusFailed
		j.Error = detail
		j.CompletedAt = &now
	})
}

// transition applies one state change and emits exactly one notification
// carrying the full updated snapshot.
func (s *Supervisor) transition(jobID string, fn func(*domain.Job)) {
	if snap, ok := s.registry.Update(jobID, fn); ok {
		s.hub.Publish(snap)
	}
}

// onStdout feeds one stdout line through the progress parser. Noise is
// dropped without touching state; recognized progress is a
// running-to-running transition.
func (s *Supervisor) onStdout(jobID, line string) {
	ev := ytdlp.ParseLine(line)
	if ev.Kind != ytdlp.EventProgress {
		return
	}
	s.transition(jobID, func(j *domain.Job) {
		j.Progress = ev.Progress
	})
}

// describeFailure builds the client-visible error detail for a failed
// run, preferring captured stderr over the raw process error.
func (s *Supervisor) describeFailure(runErr error, stderr string) string {
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		perr := &domain.ExternalProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr}
		return perr.Error()
	}
	if stderr != "" {
		return runErr.Error() + ": " + stderr
	}
	return runErr.Error()
}

// scheduleReclaim removes the workspace after the retention window. A
// leased or failing reclaim is left for the janitor sweep to retry.
func (s *Supervisor) scheduleReclaim(jobID string, ws workspace.Handle, log *logger.Logger) {
	time.AfterFunc(s.cfg.Retention, func() {
		ok, err := s.workspaces.TryReclaim(ws.ID)
		if err != nil {
			log.WithError(err).Warn("retention reclaim failed, janitor will retry")
			return
		}
		if !ok {
			log.Debug("workspace leased at retention deadline, janitor will retry")
			return
		}
		s.expire(jobID)
	})
}

// expire marks a reclaimed job expired and drops its record.
func (s *Supervisor) expire(jobID string) {
	s.transition(jobID, func(j *domain.Job) {
		j.Status = domain.StatusExpired
	})
	s.registry.Remove(jobID)
}

// Sweep is the janitor pass: evicts under disk pressure, retries
// reclamation of terminal jobs past retention, and garbage-collects
// their registry records so memory stays bounded. Cleanup failures are
// logged and retried on the next sweep; they never block job creation.
func (s *Supervisor) Sweep(now time.Time) {
	s.workspaces.EvictIfLow(s.cfg.LowSpaceThreshold)

	for _, job := range s.registry.List() {
		if !job.Status.Terminal() || job.CompletedAt == nil {
			continue
		}
		if now.Sub(*job.CompletedAt) < s.cfg.Retention {
			continue
		}
		ok, err := s.workspaces.TryReclaim(job.WorkspaceID)
		if err != nil {
			s.log.WithError(err).WithField(logger.FieldJobID, job.ID).
				Warn("sweep reclaim failed, will retry")
			continue
		}
		if !ok {
			continue
		}
		s.expire(job.ID)
	}
}

// RunJanitor runs Sweep on a fixed interval until ctx is cancelled.
func (s *Supervisor) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// stderrTail keeps the last bounded chunk of stderr lines.
type stderrTail struct {
	mu    sync.Mutex
	lines []string
	size  int
	limit int
}

func (t *stderrTail) append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > t.limit && len(t.lines) > 1 {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}
