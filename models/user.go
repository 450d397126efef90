package models

import "time"

// User owns zero or more documents.
type User struct {
	ID             string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email          string `gorm:"uniqueIndex;not null" json:"email"`
	Username       string `gorm:"uniqueIndex;not null" json:"username"`
	HashedPassword string `gorm:"not null" json:"-"`
	IsActive       bool   `gorm:"default:true" json:"is_active"`
	IsSuperuser    bool   `gorm:"default:false" json:"is_superuser"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
