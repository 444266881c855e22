package occupancy

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

// SweepReport summarizes one auto sign-out pass.
type SweepReport struct {
	Ran       bool      `json:"ran"`
	Cutoff    time.Time `json:"cutoff"`
	Purged    int64     `json:"purged"`
	SignedOut int       `json:"signed_out"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Cutoff returns the auto sign-out instant for the local day containing now.
func (c *Controller) Cutoff(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.cutoffHour, 0, 0, 0, c.loc)
}

// Sweep force-signs-out every entry left open from before today's cutoff.
// Before the cutoff it does nothing. The retention purge runs first and its
// failure does not stop the sign-outs. Running it twice is harmless: entries
// closed in between are counted as skipped.
func (c *Controller) Sweep(ctx context.Context) (SweepReport, error) {
	now := c.clock()
	cutoff := c.Cutoff(now)
	report := SweepReport{Cutoff: cutoff}
	if now.Before(cutoff) {
		c.log.WithField("cutoff", cutoff).Debug("auto sign-out skipped, cutoff not reached")
		return report, nil
	}
	report.Ran = true

	purged, err := c.Purge(ctx)
	if err != nil {
		c.log.WithError(err).Error("retention purge failed")
	}
	report.Purged = purged

	var open []models.TimeEntry
	err = c.db.WithContext(ctx).
		Where("sign_out_time IS NULL AND sign_in_time < ?", cutoff.UTC()).
		Order("sign_in_time asc").
		Find(&open).Error
	if err != nil {
		c.metrics.observe("sweep", err)
		return report, persistence("list open entries", err)
	}

	for _, entry := range open {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		_, err := c.SignOut(ctx, SignOutRequest{UserID: entry.UserID, Forced: true})
		switch {
		case err == nil:
			report.SignedOut++
		case errors.Is(err, ErrNoActiveSession):
			report.Skipped++
		default:
			report.Failed++
			c.log.WithError(err).
				WithField("entry_id", entry.ID).
				WithField("user_id", entry.UserID).
				Warn("auto sign-out failed for entry")
		}
	}

	c.log.WithField("signed_out", report.SignedOut).
		WithField("skipped", report.Skipped).
		WithField("failed", report.Failed).
		WithField("purged", report.Purged).
		Info("auto sign-out sweep finished")
	return report, nil
}

// Purge deletes time entries whose sign-in is older than the retention window.
// Open entries in that set release their truck slots in the same transaction.
func (c *Controller) Purge(ctx context.Context) (int64, error) {
	now := c.clock()
	threshold := now.AddDate(0, -c.retentionMonths, 0)

	var stale []models.TimeEntry
	var deleted int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sign_out_time IS NULL AND sign_in_time < ?", threshold).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, e := range stale {
			if err := clearSlots(tx, e.TruckID, e.UserID, now); err != nil {
				return err
			}
		}
		res := tx.Where("sign_in_time < ?", threshold).Delete(&models.TimeEntry{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	c.metrics.observe("purge", err)
	if err != nil {
		return 0, persistence("purge time entries", err)
	}
	if deleted > 0 {
		c.log.WithField("deleted", deleted).WithField("older_than", threshold).Info("purged old time entries")
	}

	trucks := make([]string, 0, len(stale))
	for _, e := range stale {
		trucks = append(trucks, e.TruckID)
	}
	c.notify(ctx, trucks...)
	return deleted, nil
}
