package models

import "time"

// Slot is one of the two occupancy positions a truck tracks.
type Slot string

const (
	SlotDriver       Slot = "driver"
	SlotMammographer Slot = "mammographer"
)

// Column is the trucks column holding the occupant reference for the slot.
func (s Slot) Column() string {
	if s == SlotMammographer {
		return "current_mammographer_id"
	}
	return "current_driver_id"
}

// Truck is a physical mobile unit. The current occupant columns are nullable
// references, the truck does not own the users.
type Truck struct {
	ID                    string    `json:"id" gorm:"type:varchar(20);primaryKey"`
	Name                  string    `json:"name" gorm:"not null"`
	CurrentDriverID       *string   `json:"current_driver_id" gorm:"type:varchar(36);index"`
	CurrentMammographerID *string   `json:"current_mammographer_id" gorm:"type:varchar(36);index"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Occupant returns the user currently referenced by the slot, if any.
func (t Truck) Occupant(slot Slot) *string {
	if slot == SlotMammographer {
		return t.CurrentMammographerID
	}
	return t.CurrentDriverID
}
