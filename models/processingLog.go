package models

import "time"

// Step statuses recorded in the processing log.
const (
	StepStarted   = "started"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// ProcessingLog is one append-only step record for a document. Rows are
// written once per step and never mutated afterwards; together they form the
// audit trail of a processing run.
type ProcessingLog struct {
	ID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DocumentID      string    `gorm:"type:uuid;not null;index" json:"document_id"`
	StepName        string    `gorm:"not null" json:"step_name"`
	StepStatus      string    `gorm:"not null" json:"step_status"`
	Details         string    `gorm:"type:text" json:"details,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
}
