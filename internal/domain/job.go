package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the lifecycle status of a scrape job.
// Values include JobStatusPending, JobStatusRunning, JobStatusCompleted,
// JobStatusFailed, and JobStatusCancelled.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal rows are immutable.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobKind represents the kind of scrape a job performs.
// Values include JobKindPostComments, JobKindProfileDetails, and JobKindMixed.
type JobKind string

const (
	JobKindPostComments   JobKind = "post_comments"
	JobKindProfileDetails JobKind = "profile_details"
	JobKindMixed          JobKind = "mixed"
)

// Valid reports whether the kind is one of the supported values.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindPostComments, JobKindProfileDetails, JobKindMixed:
		return true
	}
	return false
}

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Job represents one scrape request and its ledger row. Stage, Progress and
// Message track live execution so the dashboard can poll a running job.
type Job struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	UserID       string      `gorm:"type:text;not null;index:idx_scrape_jobs_user" json:"user_id"`
	Kind         JobKind     `gorm:"type:text;not null" json:"kind"`
	TargetURL    string      `gorm:"type:text" json:"target_url,omitempty"`
	TargetURLs   StringArray `gorm:"type:text" json:"target_urls,omitempty"`
	Status       JobStatus   `gorm:"type:text;index:idx_scrape_jobs_status;default:pending" json:"status"`
	Stage        string      `gorm:"type:text" json:"stage,omitempty"`
	Progress     int         `gorm:"default:0" json:"progress"`
	Message      string      `gorm:"type:text" json:"message,omitempty"`
	ResultsCount int         `gorm:"default:0" json:"results_count"`
	CacheHits    int         `gorm:"default:0" json:"cache_hits"`
	CacheMisses  int         `gorm:"default:0" json:"cache_misses"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// TableName returns the database table name for Job.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Job) TableName() string {
	return "scrape_jobs"
}
