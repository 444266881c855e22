// Package booking takes patient appointment submissions for the mobile vans.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/models"
	"radhiant_ops/internal/notify"
)

var ErrValidation = errors.New("invalid booking")

type PatientDetails struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
	IDNumber  string `json:"id_number"`
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"required,email"`
}

type Submission struct {
	Province          string         `json:"province"`
	Town              string         `json:"town"`
	Date              string         `json:"selected_date" validate:"required,datetime=2006-01-02"`
	Time              string         `json:"selected_time" validate:"required,datetime=15:04"`
	ServiceType       string         `json:"service_type"`
	EstimatedDuration int            `json:"estimated_duration" validate:"gte=0"`
	Notes             string         `json:"special_notes"`
	Patient           PatientDetails `json:"patient_details"`
}

type Details struct {
	Patient  string          `json:"patient"`
	Service  string          `json:"service"`
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	Location string          `json:"location"`
	VanName  string          `json:"van_name"`
	VanPoint json.RawMessage `json:"van_point,omitempty"`
}

// Confirmation is returned to the patient once the booking is stored.
type Confirmation struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	BookingID        string  `json:"booking_id"`
	BookingReference string  `json:"booking_reference"`
	Details          Details `json:"details"`
}

type Service struct {
	db       *gorm.DB
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(db *gorm.DB, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{db: db, validate: v, log: log, now: time.Now}
}

// Submit validates and stores a booking and queues its calendar, email and SMS
// notifications in the same transaction. Delivery happens later, so a
// notification outage never fails the booking.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Confirmation, error) {
	sub.Patient.FirstName = strings.TrimSpace(sub.Patient.FirstName)
	sub.Patient.Email = strings.TrimSpace(sub.Patient.Email)
	if err := s.validate.StructCtx(ctx, sub); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	van := VanForTown(sub.Town)
	point, err := van.WKB()
	if err != nil {
		return nil, fmt.Errorf("encoding van location: %w", err)
	}

	b := models.Booking{
		BookingReference:  NewReference(s.now()),
		PatientName:       strings.TrimSpace(sub.Patient.FirstName + " " + sub.Patient.LastName),
		FirstName:         sub.Patient.FirstName,
		LastName:          sub.Patient.LastName,
		IDNumber:          sub.Patient.IDNumber,
		Email:             sub.Patient.Email,
		Phone:             sub.Patient.Phone,
		Province:          sub.Province,
		Town:              sub.Town,
		ServiceType:       sub.ServiceType,
		AppointmentDate:   sub.Date,
		AppointmentTime:   sub.Time,
		EstimatedDuration: sub.EstimatedDuration,
		VanID:             van.ID,
		VanName:           van.Name,
		VanLocation:       van.Location,
		VanPoint:          point,
		Status:            models.BookingStatusConfirmed,
	}
	if notes := strings.TrimSpace(sub.Notes); notes != "" {
		b.SpecialNotes = &notes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("saving booking: %w", err)
		}
		msg := message(b)
		for _, kind := range []notify.Kind{notify.KindCalendar, notify.KindEmail, notify.KindSMS} {
			if err := notify.Enqueue(tx, kind, b.ID, msg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("booking_id", b.ID).
		WithField("reference", b.BookingReference).
		WithField("service", b.ServiceType).
		WithField("date", b.AppointmentDate).
		Info("booking submitted")

	geo, err := pointGeoJSON(b.VanPoint)
	if err != nil {
		s.log.WithError(err).Warn("could not render van location")
	}
	return &Confirmation{
		Success:          true,
		Message:          "Booking confirmed successfully!",
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		Details: Details{
			Patient:  b.PatientName,
			Service:  b.ServiceType,
			Date:     b.AppointmentDate,
			Time:     b.AppointmentTime,
			Location: b.Town,
			VanName:  b.VanName,
			VanPoint: geo,
		},
	}, nil
}

// CalendarHook stores the Graph event id on the booking once the calendar
// notification is delivered.
func CalendarHook(db *gorm.DB) notify.Hook {
	return func(ctx context.Context, event models.OutboxEvent, externalID string) error {
		if externalID == "" {
			return nil
		}
		return db.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ?", event.AggregateID).
			Update("calendar_event_id", externalID).Error
	}
}

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReference returns RDH-<unix millis>-<4 random base36 chars>.
func NewReference(now time.Time) string {
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "RDH-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix[:])
}

func message(b models.Booking) notify.Message {
	m := notify.Message{
		BookingID:       b.ID,
		Reference:       b.BookingReference,
		FirstName:       b.FirstName,
		LastName:        b.LastName,
		IDNumber:        b.IDNumber,
		Email:           b.Email,
		Phone:           b.Phone,
		Province:        b.Province,
		Town:            b.Town,
		ServiceType:     b.ServiceType,
		Date:            b.AppointmentDate,
		Time:            b.AppointmentTime,
		DurationMinutes: b.EstimatedDuration,
		VanName:         b.VanName,
		VanLocation:     b.VanLocation,
	}
	if b.SpecialNotes != nil {
		m.Notes = *b.SpecialNotes
	}
	return m
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email")
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must match %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}
