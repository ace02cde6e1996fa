package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups.
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrFileNotFound = errors.New("file not found")
)

// ValidationError rejects a request before any job or workspace is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ResourceError reports a workspace allocation or filesystem failure.
// Jobs hit by one never reach the running state.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ExternalProcessError captures a non-zero exit from the extraction
// process together with the retained stderr tail.
type ExternalProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ExternalProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("yt-dlp exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("yt-dlp exited with code %d: %s", e.ExitCode, e.Stderr)
}

// TimeoutError reports that the supervision ceiling was exceeded and the
// process was killed.
type TimeoutError struct {
	Limit string
}

func (e *TimeoutError) Error() string {
	return "download exceeded the time limit of " + e.Limit
}

// PathTraversalError rejects a file request whose resolved path would
// escape the workspace root. No filesystem access is performed.
type PathTraversalError struct {
	Requested string
}

func (e *PathTraversalError) Error() string {
	return "path escapes workspace root: " + e.Requested
}
