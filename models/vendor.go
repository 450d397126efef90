package models

import "time"

// Vendor is a reference record used by validation. The pipeline only ever
// reads this table.
type Vendor struct {
	ID         string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VendorName string `gorm:"not null;index" json:"vendor_name"`
	VendorCode string `gorm:"uniqueIndex;not null" json:"vendor_code"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	IsApproved bool   `gorm:"default:true" json:"is_approved"`
	CreatedAt  time.Time
}
