package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUserID is the authenticated dashboard user ID
	FieldUserID = "user_id"

	// FieldJobID is the scrape job ID
	FieldJobID = "job_id"

	// FieldRunID is the remote actor run ID
	FieldRunID = "run_id"

	// FieldStage is the orchestration stage name
	FieldStage = "stage"

	// FieldKind is the scrape job kind
	FieldKind = "kind"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldProvider is the scraping provider identifier
	FieldProvider = "provider"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
