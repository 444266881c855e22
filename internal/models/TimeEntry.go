package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimeEntry is one sign-in event. SignOutTime stays nil while the entry is open.
type TimeEntry struct {
	ID            string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID        string     `json:"user_id" gorm:"type:varchar(36);not null;index"`
	TruckID       string     `json:"truck_id" gorm:"type:varchar(20);not null;index"`
	SignInTime    time.Time  `json:"sign_in_time" gorm:"not null;index"`
	SignOutTime   *time.Time `json:"sign_out_time"`
	IsAutoSignOut bool       `json:"is_auto_sign_out" gorm:"not null"`
	TotalHours    *float64   `json:"total_hours"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (e *TimeEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Open reports whether the entry has not been signed out yet.
func (e TimeEntry) Open() bool {
	return e.SignOutTime == nil
}
