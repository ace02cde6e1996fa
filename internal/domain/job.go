package domain

import "time"

// Status represents the lifecycle state of a download job.
// Transitions are monotonic: queued -> running -> completed/failed -> expired.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further state change (other than expiry) can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Format is the requested output kind for a download job.
type Format string

const (
	// FormatAudio extracts the audio track and converts it to mp3.
	FormatAudio Format = "audio"
	// FormatVideo downloads best video+audio and muxes to mp4.
	FormatVideo Format = "video"
	// FormatBest downloads whatever single format yt-dlp considers best,
	// container untouched.
	FormatBest Format = "best"
)

// ParseFormat validates a client-supplied format string.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatAudio, FormatVideo, FormatBest:
		return Format(s), true
	}
	return "", false
}

// Progress is the latest-wins snapshot of download progress.
// ETASeconds and BytesPerSecond are -1 when unknown.
type Progress struct {
	Percent        float64 `json:"percent"`
	ETASeconds     int64   `json:"eta_seconds"`
	BytesPerSecond float64 `json:"bytes_per_second"`
}

// UnknownProgress returns a zero-percent progress with unknown ETA and speed.
func UnknownProgress() Progress {
	return Progress{Percent: 0, ETASeconds: -1, BytesPerSecond: -1}
}

// ProducedFile describes one file discovered in the job's workspace
// after successful completion.
type ProducedFile struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// Options carries per-job download options.
type Options struct {
	Playlist     bool   `json:"playlist,omitempty"`
	Subtitles    bool   `json:"subtitles,omitempty"`
	SubtitleLang string `json:"subtitle_lang,omitempty"`
}

// Job is one tracked download request. The workspace handle is internal
// and deliberately kept out of the job snapshot JSON; clients see
// workspace-scoped download URLs on the produced files instead.
type Job struct {
	ID          string         `json:"id"`
	SourceURL   string         `json:"source_url"`
	Format      Format         `json:"format"`
	Options     Options        `json:"options,omitempty"`
	Status      Status         `json:"status"`
	Progress    Progress       `json:"progress"`
	Files       []ProducedFile `json:"files,omitempty"`
	Error       string         `json:"error,omitempty"`
	WorkspaceID string         `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so concurrent readers never alias the
// registry's mutable record.
func (j Job) Clone() Job {
	out := j
	if j.Files != nil {
		out.Files = make([]ProducedFile, len(j.Files))
		copy(out.Files, j.Files)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
