package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const BookingStatusConfirmed = "confirmed"

// Booking is a patient appointment on one of the mobile vans. The van here is
// booking-side data and unrelated to the attendance trucks.
type Booking struct {
	ID                string  `json:"id" gorm:"type:varchar(36);primaryKey"`
	BookingReference  string  `json:"booking_reference" gorm:"type:varchar(40);uniqueIndex;not null"`
	PatientName       string  `json:"patient_name"`
	FirstName         string  `json:"first_name" gorm:"not null"`
	LastName          string  `json:"last_name"`
	IDNumber          string  `json:"id_number"`
	Email             string  `json:"email" gorm:"not null"`
	Phone             string  `json:"phone"`
	Province          string  `json:"province"`
	Town              string  `json:"town"`
	ServiceType       string  `json:"service_type"`
	AppointmentDate   string  `json:"appointment_date" gorm:"type:varchar(10);index"`
	AppointmentTime   string  `json:"appointment_time" gorm:"type:varchar(5)"`
	EstimatedDuration int     `json:"estimated_duration"`
	SpecialNotes      *string `json:"special_notes"`
	VanID             string  `json:"van_id"`
	VanName           string  `json:"van_name"`
	VanLocation       string  `json:"van_location"`

	// VanPoint is the van parking spot as WKB (SRID 4326), empty when unknown.
	VanPoint []byte `json:"-"`

	Status          string    `json:"status"`
	CalendarEventID *string   `json:"calendar_event_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
