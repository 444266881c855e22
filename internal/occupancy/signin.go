package occupancy

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"radhiant_ops/internal/config"
	"radhiant_ops/internal/models"
)

type SignInRequest struct {
	UserID   string
	TruckID  string
	Password string
	Notes    string
}

// SignIn opens a time entry for the user on the truck and claims the slot
// matching the user's role. The slot claim is a compare-and-swap on the truck
// row and runs in the same transaction as the entry insert.
func (c *Controller) SignIn(ctx context.Context, req SignInRequest) (*Entry, error) {
	entry, err := c.signIn(ctx, req)
	c.metrics.observe("sign_in", err)
	return entry, err
}

func (c *Controller) signIn(ctx context.Context, req SignInRequest) (*Entry, error) {
	user, err := c.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !c.verifier.Verify(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredential
	}
	truck, err := c.loadTruck(ctx, req.TruckID)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	entry := models.TimeEntry{
		UserID:     user.ID,
		TruckID:    truck.ID,
		SignInTime: now,
	}

	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.TimeEntry{}).
			Where("user_id = ? AND sign_out_time IS NULL", user.ID).
			Count(&open).Error; err != nil {
			return persistence("check open entries", err)
		}
		if open > 0 {
			return ErrAlreadySignedIn
		}

		slot, ok := user.Role.Slot()
		if !ok {
			return roleNotPermitted(user.Role)
		}
		col := slot.Column()
		claim := tx.Model(&models.Truck{}).
			Where(fmt.Sprintf("id = ? AND %s IS NULL", col), truck.ID).
			Updates(map[string]any{col: user.ID, "updated_at": now})
		if claim.Error != nil {
			return persistence("claim truck slot", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return slotOccupied(slot)
		}

		if err := tx.Create(&entry).Error; err != nil {
			if config.IsUniqueViolation(err) {
				return ErrAlreadySignedIn
			}
			return persistence("insert time entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("sign in", err)
	}

	c.log.WithField("user_id", user.ID).WithField("truck_id", truck.ID).Info("user signed in")

	if notes := strings.TrimSpace(req.Notes); notes != "" {
		res := c.db.WithContext(ctx).Model(&models.UserTruckAssignment{}).
			Where("user_id = ? AND truck_id = ?", user.ID, truck.ID).
			Updates(map[string]any{"comments": notes, "assigned_at": now})
		if res.Error != nil {
			c.log.WithError(res.Error).WithField("user_id", user.ID).Warn("could not save sign-in notes")
		}
	}

	c.notify(ctx, truck.ID)
	return &Entry{TimeEntry: entry, UserName: user.Name, UserRole: user.Role}, nil
}
