// Package ytdlp wraps the external yt-dlp binary: argument construction,
// process supervision plumbing, and progress-line parsing. The binary is
// treated as a black box emitting UTF-8 text on stdout/stderr and an exit
// code.
package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/psannetwork/youtube/internal/domain"
)

// outputTemplate names downloaded files after the video title inside the
// job's workspace.
const outputTemplate = "%(title)s.%(ext)s"

// RunRequest describes one invocation of the downloader.
type RunRequest struct {
	URL          string
	Format       domain.Format
	OutputDir    string
	Playlist     bool
	Subtitles    bool
	SubtitleLang string
}

// Runner launches the extraction process and streams its output lines to
// the supplied callbacks until the process exits. Implemented by Client;
// faked in supervisor tests.
type Runner interface {
	Run(ctx context.Context, req RunRequest, onStdout, onStderr func(line string)) error
}

// Client invokes a yt-dlp binary.
type Client struct {
	binary      string
	cookiesFile string
}

// NewClient returns a client for the given binary path. cookiesFile is
// optional; when set it is passed through via --cookies.
func NewClient(binary, cookiesFile string) *Client {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Client{binary: binary, cookiesFile: cookiesFile}
}

// args builds the argument vector. Every flag and value is a discrete
// element; nothing is ever passed through a shell.
func (c *Client) args(req RunRequest) []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-check-certificates",
		"--progress-template", progressTemplate,
	}
	if c.cookiesFile != "" {
		args = append(args, "--cookies", c.cookiesFile)
	}
	if req.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	if req.Subtitles {
		args = append(args, "--write-auto-sub")
		if req.SubtitleLang != "" {
			args = append(args, "--sub-lang", req.SubtitleLang)
		}
	}

	switch req.Format {
	case domain.FormatAudio:
		args = append(args,
			"-f", "bestaudio",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "0",
		)
	case domain.FormatVideo:
		args = append(args,
			"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]",
			"--merge-output-format", "mp4",
		)
	default:
		args = append(args, "-f", "best")
	}

	args = append(args, "-o", filepath.Join(req.OutputDir, outputTemplate))
	return append(args, req.URL)
}

// Run starts the process and drains both output streams concurrently,
// forwarding each line. It blocks until the process exits; the returned
// error is the process error (an *exec.ExitError on non-zero exit, the
// context error after a kill).
func (c *Client) Run(ctx context.Context, req RunRequest, onStdout, onStderr func(string)) error {
	cmd := exec.CommandContext(ctx, c.binary, c.args(req)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
	}
	wg.Add(2)
	go scan(stdout, onStdout)
	go scan(stderr, onStderr)
	wg.Wait()

	return cmd.Wait()
}
