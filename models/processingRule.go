package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProcessingRule defines one decision rule applied after extraction and
// validation. Conditions is a JSONB object of the form
// {"field": "total_amount", "operator": "greater_than", "value": 10000}.
// Rules are evaluated in descending priority order and the first match wins.
type ProcessingRule struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `json:"description,omitempty"`
	DocumentType DocumentType   `gorm:"type:varchar(32);not null" json:"document_type"`
	Conditions   datatypes.JSON `gorm:"not null" json:"conditions"`
	Action       WorkflowAction `gorm:"type:varchar(32);not null" json:"action"`
	Priority     int            `gorm:"default:0" json:"priority"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
