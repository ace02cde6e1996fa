package ytdlp

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/psannetwork/youtube/internal/domain"
)

// progressTemplate makes yt-dlp emit one JSON object per progress tick so
// the parser does not have to scrape the human-readable status line.
const progressTemplate = `{"percent":"%(progress._percent_str)s","eta":"%(progress.eta)s","speed":"%(progress.speed)s"}`

// maxErrorLineLen bounds how much of a single stderr line is retained.
const maxErrorLineLen = 512

// EventKind classifies one line of process output.
type EventKind int

const (
	// EventNoise is an unrecognized line; it must not affect job state.
	EventNoise EventKind = iota
	// EventProgress carries an updated progress snapshot.
	EventProgress
	// EventError is candidate error content from the process error stream.
	EventError
)

// Event is the structured result of parsing one output line. It is
// ephemeral: consumed to update the job's progress field and forwarded to
// subscribers, never persisted.
type Event struct {
	Kind     EventKind
	Progress domain.Progress
	Message  string
}

type templateLine struct {
	Percent string `json:"percent"`
	ETA     string `json:"eta"`
	Speed   string `json:"speed"`
}

// ParseLine converts one stdout line into an Event. It recognizes the
// JSON progress template and the bare "NN.N%" status lines older yt-dlp
// builds print; anything else degrades to Noise. Never panics on
// malformed input.
func ParseLine(line string) Event {
	s := strings.TrimSpace(line)
	if s == "" {
		return Event{Kind: EventNoise}
	}

	if strings.HasPrefix(s, "{") {
		var tl templateLine
		if err := json.Unmarshal([]byte(s), &tl); err == nil {
			if percent, ok := parsePercent(tl.Percent); ok {
				return Event{Kind: EventProgress, Progress: domain.Progress{
					Percent:        percent,
					ETASeconds:     parseSeconds(tl.ETA),
					BytesPerSecond: parseSpeed(tl.Speed),
				}}
			}
		}
		return Event{Kind: EventNoise}
	}

	percent, ok := parsePercent(s)
	if !ok {
		return Event{Kind: EventNoise}
	}
	return Event{Kind: EventProgress, Progress: domain.Progress{
		Percent:        percent,
		ETASeconds:     parseClockETA(s),
		BytesPerSecond: parseRateSuffix(s),
	}}
}

// ParseStderrLine classifies a process error-stream line, truncated to a
// bounded length for later surfacing on job failure.
func ParseStderrLine(line string) Event {
	s := strings.TrimSpace(line)
	if s == "" {
		return Event{Kind: EventNoise}
	}
	if len(s) > maxErrorLineLen {
		s = s[:maxErrorLineLen]
	}
	return Event{Kind: EventError, Message: s}
}

// parsePercent extracts the first "NN" or "NN.N" percentage from s,
// clamped to [0, 100].
func parsePercent(s string) (float64, bool) {
	idx := strings.IndexByte(s, '%')
	if idx <= 0 {
		return 0, false
	}
	start := idx
	for start > 0 && (isDigit(s[start-1]) || s[start-1] == '.') {
		start--
	}
	if start == idx {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[start:idx], 64)
	if err != nil {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// parseSeconds handles the template's eta field, which is an integer
// second count or "NA"/empty when yt-dlp does not know yet.
func parseSeconds(s string) int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return -1
	}
	return int64(v)
}

// parseSpeed handles the template's speed field, bytes per second.
func parseSpeed(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return -1
	}
	return v
}

// parseClockETA pulls "ETA MM:SS" or "ETA HH:MM:SS" out of a plain status line.
func parseClockETA(s string) int64 {
	idx := strings.Index(s, "ETA ")
	if idx < 0 {
		return -1
	}
	clock := strings.Fields(s[idx+len("ETA "):])
	if len(clock) == 0 {
		return -1
	}
	parts := strings.Split(clock[0], ":")
	if len(parts) < 2 || len(parts) > 3 {
		return -1
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return -1
		}
		total = total*60 + n
	}
	return total
}

// parseRateSuffix pulls "at 1.25MiB/s" style rates out of a plain status line.
func parseRateSuffix(s string) float64 {
	idx := strings.Index(s, "at ")
	if idx < 0 {
		return -1
	}
	fields := strings.Fields(s[idx+len("at "):])
	if len(fields) == 0 {
		return -1
	}
	rate := fields[0]
	unit := 1.0
	switch {
	case strings.HasSuffix(rate, "KiB/s"):
		unit, rate = 1024, strings.TrimSuffix(rate, "KiB/s")
	case strings.HasSuffix(rate, "MiB/s"):
		unit, rate = 1024*1024, strings.TrimSuffix(rate, "MiB/s")
	case strings.HasSuffix(rate, "GiB/s"):
		unit, rate = 1024*1024*1024, strings.TrimSuffix(rate, "GiB/s")
	case strings.HasSuffix(rate, "B/s"):
		rate = strings.TrimSuffix(rate, "B/s")
	default:
		return -1
	}
	v, err := strconv.ParseFloat(rate, 64)
	if err != nil || v < 0 {
		return -1
	}
	return v * unit
}
