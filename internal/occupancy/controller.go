// Package occupancy keeps the truck slot pointers and the time entry ledger in
// step: sign-in, sign-out, the daily auto sign-out sweep and the retention purge.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

const (
	defaultCutoffHour      = 20
	defaultRetentionMonths = 3
)

// PasswordVerifier checks a plain credential against a stored hash.
type PasswordVerifier interface {
	Verify(hash *string, password string) bool
}

// Observer is told about every truck whose occupancy changed. It runs after
// commit and cannot fail the operation.
type Observer interface {
	TruckChanged(ctx context.Context, truckID string)
}

type Options struct {
	Verifier        PasswordVerifier
	Logger          logrus.FieldLogger
	Location        *time.Location
	CutoffHour      int
	RetentionMonths int
	Metrics         *Metrics
	// Now overrides the clock, tests only.
	Now func() time.Time
}

type Controller struct {
	db              *gorm.DB
	verifier        PasswordVerifier
	log             logrus.FieldLogger
	loc             *time.Location
	cutoffHour      int
	retentionMonths int
	metrics         *Metrics
	observers       []Observer
	now             func() time.Time
}

func NewController(db *gorm.DB, opts Options) (*Controller, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("password verifier required")
	}
	c := &Controller{
		db:              db,
		verifier:        opts.Verifier,
		log:             opts.Logger,
		loc:             opts.Location,
		cutoffHour:      opts.CutoffHour,
		retentionMonths: opts.RetentionMonths,
		metrics:         opts.Metrics,
		now:             opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.cutoffHour <= 0 || c.cutoffHour > 23 {
		c.cutoffHour = defaultCutoffHour
	}
	if c.retentionMonths <= 0 {
		c.retentionMonths = defaultRetentionMonths
	}
	return c, nil
}

// AddObserver registers o for truck change notifications.
func (c *Controller) AddObserver(o Observer) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

// Entry is a time entry enriched with the acting user's display name and role.
type Entry struct {
	models.TimeEntry
	UserName string      `json:"user_name"`
	UserRole models.Role `json:"user_role"`
}

// clock returns the current instant in UTC, the storage time zone.
func (c *Controller) clock() time.Time {
	return c.now().UTC()
}

func (c *Controller) loadUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := c.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("load user", err)
	}
	return &user, nil
}

func (c *Controller) loadTruck(ctx context.Context, truckID string) (*models.Truck, error) {
	var truck models.Truck
	err := c.db.WithContext(ctx).First(&truck, "id = ?", truckID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTruckNotFound
	}
	if err != nil {
		return nil, persistence("load truck", err)
	}
	return &truck, nil
}

func (c *Controller) notify(ctx context.Context, truckIDs ...string) {
	seen := make(map[string]bool, len(truckIDs))
	for _, id := range truckIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		for _, o := range c.observers {
			o.TruckChanged(ctx, id)
		}
	}
}

// clearSlots drops every slot reference to userID on truckID. The slot is
// located by value rather than by the user's role so an admin role change
// during a shift cannot leave a stale pointer.
func clearSlots(tx *gorm.DB, truckID, userID string, now time.Time) error {
	for _, slot := range []models.Slot{models.SlotDriver, models.SlotMammographer} {
		col := slot.Column()
		err := tx.Model(&models.Truck{}).
			Where(fmt.Sprintf("id = ? AND %s = ?", col), truckID, userID).
			Updates(map[string]any{col: nil, "updated_at": now}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
