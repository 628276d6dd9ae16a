package model

import (
	"time"

	"github.com/google/uuid"
)

// Supplier is master data owned by the partner service; read-only here.
type Supplier struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name     string    `gorm:"index;not null"`
	TaxID    *string   `gorm:"uniqueIndex"`
	Email    *string
	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
