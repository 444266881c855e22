package occupancy

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

type Occupant struct {
	UserID     string     `json:"user_id"`
	UserName   string     `json:"user_name"`
	SignInTime *time.Time `json:"sign_in_time,omitempty"`
}

// TruckStatus is a truck with its current crew resolved to names.
type TruckStatus struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Driver       *Occupant `json:"driver"`
	Mammographer *Occupant `json:"mammographer"`
}

func (c *Controller) TruckStatus(ctx context.Context, truckID string) (*TruckStatus, error) {
	var truck models.Truck
	err := c.db.WithContext(ctx).First(&truck, "id = ?", truckID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTruckNotFound
	}
	if err != nil {
		return nil, persistence("load truck", err)
	}
	statuses, err := c.resolve(ctx, []models.Truck{truck})
	if err != nil {
		return nil, err
	}
	return &statuses[0], nil
}

// TruckStatuses lists every truck ordered by fleet number (RAD-2 before RAD-10).
func (c *Controller) TruckStatuses(ctx context.Context) ([]TruckStatus, error) {
	var trucks []models.Truck
	if err := c.db.WithContext(ctx).Find(&trucks).Error; err != nil {
		return nil, persistence("list trucks", err)
	}
	sort.SliceStable(trucks, func(i, j int) bool {
		return lessTruckID(trucks[i].ID, trucks[j].ID)
	})
	return c.resolve(ctx, trucks)
}

func (c *Controller) resolve(ctx context.Context, trucks []models.Truck) ([]TruckStatus, error) {
	var ids []string
	for _, t := range trucks {
		if t.CurrentDriverID != nil {
			ids = append(ids, *t.CurrentDriverID)
		}
		if t.CurrentMammographerID != nil {
			ids = append(ids, *t.CurrentMammographerID)
		}
	}

	names := map[string]string{}
	signIns := map[string]time.Time{}
	if len(ids) > 0 {
		var users []models.User
		if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, persistence("load occupants", err)
		}
		for _, u := range users {
			names[u.ID] = u.Name
		}
		var open []models.TimeEntry
		if err := c.db.WithContext(ctx).
			Where("user_id IN ? AND sign_out_time IS NULL", ids).
			Find(&open).Error; err != nil {
			return nil, persistence("load open entries", err)
		}
		for _, e := range open {
			signIns[e.UserID+"|"+e.TruckID] = e.SignInTime
		}
	}

	occupant := func(truckID string, id *string) *Occupant {
		if id == nil {
			return nil
		}
		o := &Occupant{UserID: *id, UserName: names[*id]}
		if t, ok := signIns[*id+"|"+truckID]; ok {
			o.SignInTime = &t
		}
		return o
	}

	out := make([]TruckStatus, 0, len(trucks))
	for _, t := range trucks {
		out = append(out, TruckStatus{
			ID:           t.ID,
			Name:         t.Name,
			Driver:       occupant(t.ID, t.CurrentDriverID),
			Mammographer: occupant(t.ID, t.CurrentMammographerID),
		})
	}
	return out, nil
}

// lessTruckID orders ids by their trailing number, falling back to plain
// string order when either id has none.
func lessTruckID(a, b string) bool {
	na, okA := truckNumber(a)
	nb, okB := truckNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	if okA != okB {
		return okA
	}
	return a < b
}

func truckNumber(id string) (int, bool) {
	i := strings.LastIndex(id, "-")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	return n, err == nil
}
