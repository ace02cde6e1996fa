package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/logger"
	"github.com/psannetwork/youtube/internal/notify"
	"github.com/psannetwork/youtube/internal/registry"
	"github.com/psannetwork/youtube/internal/workspace"
	"github.com/psannetwork/youtube/internal/ytdlp"
)

// fakeRunner stands in for the yt-dlp process: it replays scripted output
// lines, drops files into the workspace, and exits with a fixed error.
type fakeRunner struct {
	stdout   []string
	stderr   []string
	files    map[string]int
	err      error
	gate     chan struct{} // when set, emission waits until closed
	untilCtx bool          // when set, block until the context expires
}

func (f *fakeRunner) Run(ctx context.Context, req ytdlp.RunRequest, onStdout, onStderr func(string)) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.untilCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, line := range f.stdout {
		onStdout(line)
	}
	for _, line := range f.stderr {
		onStderr(line)
	}
	for name, size := range f.files {
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), make([]byte, size), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func newTestSupervisor(t *testing.T, runner ytdlp.Runner, cfg Config) (*Supervisor, *workspace.Manager) {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Retention == 0 {
		cfg.Retention = time.Hour
	}
	ws, err := workspace.NewManager(t.TempDir(), logger.NewDefault())
	if err != nil {
		t.Fatalf("workspace manager: %v", err)
	}
	sup := New(registry.New(), ws, notify.NewHub(), runner, logger.NewDefault(), cfg)
	return sup, ws
}

func waitTerminal(t *testing.T, sup *Supervisor, id string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := sup.Snapshot(id)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return domain.Job{}
}

func TestRunCompletesWithFiles(t *testing.T) {
	runner := &fakeRunner{
		stdout: []string{
			"[youtube] abc12345678: Downloading webpage",
			`{"percent":"12.3%","eta":"34","speed":"1048576"}`,
			"[download]  57.8% of ~4.51MiB at 1.25MiB/s ETA 00:10",
		},
		files: map[string]int{"song.mp3": 2048},
	}
	sup, ws := newTestSupervisor(t, runner, Config{})

	job, err := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.Status != domain.StatusQueued {
		t.Errorf("accepted job status = %s, want queued", job.Status)
	}

	final := waitTerminal(t, sup, job.ID)
	if final.Status != domain.StatusCompleted {
		t.Fatalf("status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.Progress.Percent != 100 || final.Progress.ETASeconds != 0 {
		t.Errorf("terminal progress = %+v, want 100%% with zero eta", final.Progress)
	}
	if len(final.Files) != 1 || final.Files[0].Name != "song.mp3" {
		t.Fatalf("files = %+v, want song.mp3", final.Files)
	}
	if final.Files[0].SizeBytes != 2048 {
		t.Errorf("file size = %d, want 2048", final.Files[0].SizeBytes)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// The advertised name resolves through the guarded file path.
	if _, err := ws.ResolveFile(final.WorkspaceID, final.Files[0].Name); err != nil {
		t.Errorf("produced file does not resolve: %v", err)
	}
}

func TestSubscriberObservesOrderedProgress(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{
		gate: gate,
		stdout: []string{
			`{"percent":"12.3%","eta":"34","speed":"1048576"}`,
			`{"percent":"57.8%","eta":"10","speed":"2097152"}`,
		},
		files: map[string]int{"song.mp3": 1024},
	}
	sup, _ := newTestSupervisor(t, runner, Config{})

	job, err := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub, seed, err := sup.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()
	if seed.Status.Terminal() {
		t.Fatalf("seed snapshot already terminal: %s", seed.Status)
	}
	close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var percents []float64
	last := seed
	for !last.Status.Terminal() {
		next, ok := sub.Next(ctx)
		if !ok {
			t.Fatal("subscription ended before the terminal snapshot")
		}
		percents = append(percents, next.Progress.Percent)
		last = next
	}

	if last.Status != domain.StatusCompleted {
		t.Fatalf("final status = %s, want completed", last.Status)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress went backwards: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("last observed percent = %v, want 100", percents[len(percents)-1])
	}
}

func TestRunFailureSurfacesStderr(t *testing.T) {
	runner := &fakeRunner{
		stdout: []string{`{"percent":"41.0%","eta":"90","speed":"512000"}`},
		stderr: []string{"ERROR: unable to download video data: network error"},
		err:    errors.New("exit status 1"),
	}
	sup, _ := newTestSupervisor(t, runner, Config{})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatVideo, domain.Options{})
	final := waitTerminal(t, sup, job.ID)

	if final.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "network error") {
		t.Errorf("error detail %q does not carry the stderr tail", final.Error)
	}
	if len(final.Files) != 0 {
		t.Errorf("failed job advertises files: %+v", final.Files)
	}
	// Progress freezes at its last observed value.
	if final.Progress.Percent != 41.0 {
		t.Errorf("failed job percent = %v, want 41.0", final.Progress.Percent)
	}
}

func TestRunNoOutputIsFailure(t *testing.T) {
	runner := &fakeRunner{err: nil} // clean exit, nothing written
	sup, _ := newTestSupervisor(t, runner, Config{})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatBest, domain.Options{})
	final := waitTerminal(t, sup, job.ID)

	if final.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "no output") {
		t.Errorf("error detail = %q", final.Error)
	}
}

func TestTimeoutKillsJobAndReclaimsWorkspace(t *testing.T) {
	runner := &fakeRunner{untilCtx: true}
	sup, ws := newTestSupervisor(t, runner, Config{Timeout: 30 * time.Millisecond})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	final := waitTerminal(t, sup, job.ID)

	if final.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "time limit") {
		t.Errorf("error detail = %q, want a time limit message", final.Error)
	}
	// Partial files are reclaimed eagerly, not after retention.
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := ws.Path(final.WorkspaceID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("workspace survived a timeout kill")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSweepExpiresTerminalJobsPastRetention(t *testing.T) {
	runner := &fakeRunner{files: map[string]int{"song.mp3": 512}}
	sup, ws := newTestSupervisor(t, runner, Config{Retention: time.Hour})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	final := waitTerminal(t, sup, job.ID)
	if final.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}

	// Before retention elapses, the sweep leaves the job alone.
	sup.Sweep(time.Now())
	if _, err := sup.Snapshot(job.ID); err != nil {
		t.Fatalf("job reclaimed before retention: %v", err)
	}

	sup.Sweep(time.Now().Add(2 * time.Hour))
	if _, err := sup.Snapshot(job.ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expired job still resolvable, err = %v", err)
	}
	if _, ok := ws.Path(final.WorkspaceID); ok {
		t.Error("workspace survived retention sweep")
	}
}

func TestSweepSkipsLeasedWorkspace(t *testing.T) {
	runner := &fakeRunner{files: map[string]int{"song.mp3": 512}}
	sup, ws := newTestSupervisor(t, runner, Config{Retention: time.Hour})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	final := waitTerminal(t, sup, job.ID)

	release, err := ws.Lease(final.WorkspaceID)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}

	sup.Sweep(time.Now().Add(2 * time.Hour))
	if _, err := sup.Snapshot(job.ID); err != nil {
		t.Fatal("job expired while its workspace was leased")
	}

	release()
	sup.Sweep(time.Now().Add(2 * time.Hour))
	if _, err := sup.Snapshot(job.ID); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("job survived sweep after lease release, err = %v", err)
	}
}

func TestSubscribeUnknownJob(t *testing.T) {
	sup, _ := newTestSupervisor(t, &fakeRunner{}, Config{})
	if _, _, err := sup.Subscribe("no-such-job"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestLateSubscriberSeesTerminalSeed(t *testing.T) {
	runner := &fakeRunner{files: map[string]int{"song.mp3": 512}}
	sup, _ := newTestSupervisor(t, runner, Config{})

	job, _ := sup.Start("https://www.youtube.com/watch?v=abc12345678", domain.FormatAudio, domain.Options{})
	waitTerminal(t, sup, job.ID)

	sub, seed, err := sup.Subscribe(job.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()
	if seed.Status != domain.StatusCompleted {
		t.Errorf("seed status = %s, want completed", seed.Status)
	}
	if len(seed.Files) != 1 {
		t.Errorf("seed files = %+v", seed.Files)
	}
}
