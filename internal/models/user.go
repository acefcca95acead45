package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles assignable to users. There is no permission registry behind these;
// handlers gate on the raw value.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the sole identity record. The verification pair and the reset pair
// are each set and cleared together; a user is either fully verified (both
// verification fields nil) or pending.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Role  string `gorm:"default:user" json:"role"`

	Password   string `gorm:"not null" json:"-"`
	IsVerified bool   `gorm:"default:false" json:"is_verified"`

	// Verification codes are stored in clear and matched by equality.
	VerificationCode        *string    `json:"-"`
	VerificationCodeExpires *time.Time `json:"-"`

	// Reset codes are stored as sha256 digests; a leaked row must not grant
	// account takeover.
	ResetPasswordCode    *string    `json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
