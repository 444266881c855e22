package models

import "time"

// UserTruckAssignment links a user to a truck they may crew. Comments holds the
// notes left at the most recent sign-in.
type UserTruckAssignment struct {
	UserID     string    `json:"user_id" gorm:"type:varchar(36);primaryKey"`
	TruckID    string    `json:"truck_id" gorm:"type:varchar(20);primaryKey"`
	AssignedAt time.Time `json:"assigned_at"`
	Comments   *string   `json:"comments"`
}
