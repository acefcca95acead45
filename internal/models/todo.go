package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Todo priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Todo is an owner-scoped task. Every query against this table must filter
// by UserID; ownership is never inferred from the payload.
type Todo struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`

	Priority  string     `gorm:"default:medium" json:"priority"`
	DueDate   *time.Time `json:"due_date"`
	Completed bool       `gorm:"default:false" json:"completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Todo) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
