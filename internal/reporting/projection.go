// Package reporting is the read side of the time entry ledger used by the
// admin reports and CSV export.
package reporting

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

const dateLayout = "2006-01-02"

// Filter narrows a report. Zero values mean "no constraint". Start and End are
// calendar days in the service's location and End is inclusive.
type Filter struct {
	Start       time.Time
	End         time.Time
	Role        models.Role
	TruckID     string
	UserID      string
	IncludeOpen bool
}

// Row is one ledger entry joined with its user.
type Row struct {
	EntryID       string      `json:"id"`
	UserID        string      `json:"user_id"`
	UserName      string      `json:"user_name"`
	UserRole      models.Role `json:"user_role"`
	TruckID       string      `json:"truck_id"`
	SignInTime    time.Time   `json:"sign_in_time"`
	SignOutTime   *time.Time  `json:"sign_out_time"`
	TotalHours    *float64    `json:"total_hours"`
	IsAutoSignOut bool        `json:"is_auto_sign_out"`
}

type Service struct {
	db  *gorm.DB
	loc *time.Location
}

func NewService(db *gorm.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, loc: loc}
}

// Location is the zone report days are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// ParseDate reads a YYYY-MM-DD day in the service's location. An empty string
// yields the zero time.
func (s *Service) ParseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(dateLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return d, nil
}

// Query returns matching entries, newest sign-in first. Entries still open
// are left out unless the filter asks for them.
func (s *Service) Query(ctx context.Context, f Filter) ([]Row, error) {
	q := s.db.WithContext(ctx).
		Table("time_entries AS te").
		Select(`te.id AS entry_id, te.user_id, u.name AS user_name, u.role AS user_role, te.truck_id,
			te.sign_in_time, te.sign_out_time, te.total_hours, te.is_auto_sign_out`).
		Joins("LEFT JOIN users AS u ON u.id = te.user_id")

	if !f.Start.IsZero() {
		q = q.Where("te.sign_in_time >= ?", s.dayStart(f.Start).UTC())
	}
	if !f.End.IsZero() {
		q = q.Where("te.sign_in_time < ?", s.dayStart(f.End).AddDate(0, 0, 1).UTC())
	}
	if f.Role != "" {
		q = q.Where("u.role = ?", f.Role)
	}
	if f.TruckID != "" {
		q = q.Where("te.truck_id = ?", f.TruckID)
	}
	if f.UserID != "" {
		q = q.Where("te.user_id = ?", f.UserID)
	}
	if !f.IncludeOpen {
		q = q.Where("te.sign_out_time IS NOT NULL")
	}

	var rows []Row
	if err := q.Order("te.sign_in_time DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying time entries: %w", err)
	}
	return rows, nil
}

func (s *Service) dayStart(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}
