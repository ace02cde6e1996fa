package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID).
	FieldRequestID = "request_id"

	// FieldJobID is the download job ID.
	FieldJobID = "job_id"

	// FieldWorkspaceID is the workspace directory handle backing a job.
	FieldWorkspaceID = "workspace_id"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldFormat is the requested output format.
	FieldFormat = "format"

	// FieldURL is the normalized source URL.
	FieldURL = "url"
)

// Standard metric fields, attached at the log call site.
const (
	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldSize is the data size in bytes.
	FieldSize = "size"

	// FieldStatus is the operation status.
	FieldStatus = "status"

	// FieldPercent is the download progress percentage.
	FieldPercent = "percent"
)
