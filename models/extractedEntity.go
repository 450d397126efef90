package models

import "time"

// ExtractedEntity is one extracted field for a document. Rows are created
// during field extraction and mutated only by validation.
type ExtractedEntity struct {
	ID               string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DocumentID       string  `gorm:"type:uuid;not null;index" json:"document_id"`
	EntityType       string  `gorm:"not null" json:"entity_type"`
	EntityValue      string  `json:"entity_value"`
	ConfidenceScore  float64 `gorm:"not null" json:"confidence_score"`
	Validated        bool    `gorm:"default:false" json:"validated"`
	ValidationResult string  `json:"validation_result,omitempty"`
	CreatedAt        time.Time
}
