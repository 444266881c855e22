package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the occupational role of a user. It decides which truck slot a
// sign-in occupies.
type Role string

const (
	RoleDriver       Role = "driver"
	RoleMammographer Role = "mammographer"
	RoleLocumDriver  Role = "locum_driver"
	RoleIT           Role = "it" // admin
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleMammographer, RoleLocumDriver, RoleIT:
		return true
	}
	return false
}

// Slot returns the truck slot the role occupies. ok is false for roles that
// never sit in a truck (admins).
func (r Role) Slot() (Slot, bool) {
	switch r {
	case RoleDriver, RoleLocumDriver:
		return SlotDriver, true
	case RoleMammographer:
		return SlotMammographer, true
	}
	return "", false
}

type User struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;index"`
	IsActive     bool      `json:"is_active" gorm:"not null"`
	PasswordHash *string   `json:"-" gorm:"column:password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Assignments []UserTruckAssignment `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasPassword reports whether a credential has been set for the user.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
