package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is master data owned by the catalogue service. The engine only
// reads it for display metadata; packet aggregates reference products by
// opaque id.
type Product struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name     string    `gorm:"index;not null"`
	Style    string    `gorm:"not null"` // supplier style/article number
	Category string    `gorm:"not null;default:'apparel'"`
	IsActive bool      `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
