package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentType enumerates the kinds of documents the pipeline understands.
type DocumentType string

const (
	DocTypeInvoice        DocumentType = "invoice"
	DocTypeContract       DocumentType = "contract"
	DocTypeInsuranceClaim DocumentType = "insurance_claim"
	DocTypeReceipt        DocumentType = "receipt"
	DocTypeOther          DocumentType = "other"
)

// ValidDocumentType reports whether t is one of the supported document types.
func ValidDocumentType(t string) bool {
	switch DocumentType(t) {
	case DocTypeInvoice, DocTypeContract, DocTypeInsuranceClaim, DocTypeReceipt, DocTypeOther:
		return true
	}
	return false
}

// ProcessingStatus is the document lifecycle state. Transitions only follow
// pending -> processing -> {completed, failed, flagged}; terminal states are
// re-entered only through an explicit reprocess back to pending.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusFlagged    ProcessingStatus = "flagged"
)

// Terminal reports whether s is a terminal processing status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusFlagged
}

// WorkflowAction is the decision produced by rule evaluation.
type WorkflowAction string

const (
	ActionApprove         WorkflowAction = "approve"
	ActionReject          WorkflowAction = "reject"
	ActionFlagForReview   WorkflowAction = "flag_for_review"
	ActionRequestMoreInfo WorkflowAction = "request_more_info"
	ActionSendEmail       WorkflowAction = "send_email"
)

// Document tracks one uploaded file through the intake pipeline.
type Document struct {
	// ID is a unique identifier for the document, stored as a UUID in the database.
	// In Elasticsearch, it's indexed as a keyword for exact matching.
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id" elastic:"type:keyword"`

	// Filename is the generated storage name; OriginalFilename is what the user uploaded.
	Filename         string `gorm:"not null" json:"filename" elastic:"type:keyword"`
	OriginalFilename string `gorm:"not null" json:"original_filename" elastic:"type:text,analyzer:standard"`

	// FilePath is the object key in S3-compatible storage.
	FilePath string `gorm:"not null" json:"file_path" elastic:"type:keyword"`
	FileSize int64  `gorm:"not null" json:"file_size"`
	MimeType string `gorm:"not null" json:"mime_type" elastic:"type:keyword"`

	DocumentType DocumentType     `gorm:"type:varchar(32);not null" json:"document_type" elastic:"type:keyword"`
	Status       ProcessingStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status" elastic:"type:keyword"`

	// ExtractedData maps field name to extracted value; ConfidenceScores maps
	// field name to the model-reported score in [0,1]. Both are JSONB.
	ExtractedData    datatypes.JSON `json:"extracted_data,omitempty" elastic:"type:object"`
	ConfidenceScores datatypes.JSON `json:"confidence_scores,omitempty" elastic:"type:object"`

	// AgentReasoning is the ordered human-readable trace of every pipeline step.
	AgentReasoning string         `gorm:"type:text" json:"agent_reasoning,omitempty" elastic:"type:text,analyzer:standard"`
	WorkflowAction WorkflowAction `gorm:"type:varchar(32)" json:"workflow_action,omitempty" elastic:"type:keyword"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`

	UserID string `gorm:"type:uuid;not null;index" json:"user_id" elastic:"type:keyword"`

	UploadedAt  time.Time  `gorm:"not null" json:"uploaded_at" elastic:"type:date"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" elastic:"type:date"`

	// SearchContent is a computed field for full-text search, combining the
	// original filename and the reasoning trace. Not stored in the database.
	SearchContent string `gorm:"-" json:"-" elastic:"type:text,analyzer:standard"`
}

// BeforeSave is a GORM hook to populate SearchContent before indexing.
func (d *Document) BeforeSave(tx *gorm.DB) error {
	d.SearchContent = d.OriginalFilename + " " + d.AgentReasoning
	return nil
}
