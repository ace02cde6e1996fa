package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/psannetwork/youtube/internal/domain"
)

// VideoInfo fetches the video metadata document without downloading
// anything, via --dump-single-json. The raw JSON is passed through to the
// client untouched.
func (c *Client) VideoInfo(ctx context.Context, url string) (json.RawMessage, error) {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-check-certificates",
		"--no-playlist",
	}
	if c.cookiesFile != "" {
		args = append(args, "--cookies", c.cookiesFile)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, processError(err, errBuf.String())
	}

	raw := bytes.TrimSpace(out.Bytes())
	if !json.Valid(raw) {
		return nil, fmt.Errorf("yt-dlp produced invalid metadata JSON")
	}
	return json.RawMessage(raw), nil
}

// Subtitles fetches the auto-generated subtitle track for a video in the
// given language and returns its text. Files are written to a throwaway
// directory that is removed before returning.
func (c *Client) Subtitles(ctx context.Context, url, lang string) (string, error) {
	dir, err := os.MkdirTemp("", "subs-")
	if err != nil {
		return "", &domain.ResourceError{Op: "create subtitle dir", Err: err}
	}
	defer os.RemoveAll(dir)

	args := []string{
		"--write-auto-sub",
		"--sub-lang", lang,
		"--skip-download",
		"--no-warnings",
		"--no-check-certificates",
		"-o", filepath.Join(dir, "sub"),
	}
	if c.cookiesFile != "" {
		args = append(args, "--cookies", c.cookiesFile)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", processError(err, errBuf.String())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &domain.ResourceError{Op: "read subtitle dir", Err: err}
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".vtt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", &domain.ResourceError{Op: "read subtitle file", Err: err}
		}
		return string(data), nil
	}
	return "", domain.ErrFileNotFound
}

// processError converts a command failure into the error surfaced to
// clients, keeping a bounded stderr excerpt.
func processError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > maxErrorLineLen {
		stderr = stderr[len(stderr)-maxErrorLineLen:]
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ExternalProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("yt-dlp: %w", err)
}
