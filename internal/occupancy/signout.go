package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

type SignOutRequest struct {
	UserID   string
	Password string
	// Forced marks a system sign-out: the credential is not checked and the
	// entry is flagged as an auto sign-out.
	Forced bool
}

// SignOut closes the user's most recent open entry and releases the truck slot
// it held.
func (c *Controller) SignOut(ctx context.Context, req SignOutRequest) (*Entry, error) {
	entry, err := c.signOut(ctx, req)
	op := "sign_out"
	if req.Forced {
		op = "auto_sign_out"
	}
	c.metrics.observe(op, err)
	return entry, err
}

func (c *Controller) signOut(ctx context.Context, req SignOutRequest) (*Entry, error) {
	user, err := c.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !req.Forced && !c.verifier.Verify(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredential
	}

	now := c.clock()
	var entry models.TimeEntry
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND sign_out_time IS NULL", user.ID).
			Order("sign_in_time desc").
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return persistence("find open entry", err)
		}

		hours := TotalHours(entry.SignInTime, now)
		closed := tx.Model(&models.TimeEntry{}).
			Where("id = ? AND sign_out_time IS NULL", entry.ID).
			Updates(map[string]any{
				"sign_out_time":    now,
				"total_hours":      hours,
				"is_auto_sign_out": req.Forced,
				"updated_at":       now,
			})
		if closed.Error != nil {
			return persistence("close time entry", closed.Error)
		}
		if closed.RowsAffected == 0 {
			// closed concurrently
			return ErrNoActiveSession
		}

		if err := clearSlots(tx, entry.TruckID, user.ID, now); err != nil {
			return persistence("release truck slot", err)
		}

		entry.SignOutTime = &now
		entry.TotalHours = &hours
		entry.IsAutoSignOut = req.Forced
		entry.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, classify("sign out", err)
	}

	c.log.WithField("user_id", user.ID).
		WithField("truck_id", entry.TruckID).
		WithField("forced", req.Forced).
		Info("user signed out")

	c.notify(ctx, entry.TruckID)
	return &Entry{TimeEntry: entry, UserName: user.Name, UserRole: user.Role}, nil
}

// TotalHours is the elapsed time between in and out in hours, rounded to two
// decimal places. Clock skew never yields a negative value.
func TotalHours(in, out time.Time) float64 {
	d := out.Sub(in)
	if d < 0 {
		d = 0
	}
	h, _ := decimal.NewFromFloat(d.Hours()).Round(2).Float64()
	return h
}
