package occupancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radhiant_ops/internal/models"
)

func TestTruckStatuses_SortedByFleetNumber(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&models.Truck{ID: "RAD-10", Name: "RAD-10"}).Error)

	statuses, err := f.ctrl.TruckStatuses(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"RAD-1", "RAD-2", "RAD-3", "RAD-4", "RAD-5", "RAD-6", "RAD-7", "RAD-10"}, ids)
}

func TestTruckStatus_ResolvesOccupants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.user(t, "Thabo", models.RoleDriver, "pw")

	_, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: d.ID, TruckID: "RAD-3", Password: "pw"})
	require.NoError(t, err)

	status, err := f.ctrl.TruckStatus(ctx, "RAD-3")
	require.NoError(t, err)
	require.NotNil(t, status.Driver)
	assert.Equal(t, "Thabo", status.Driver.UserName)
	require.NotNil(t, status.Driver.SignInTime)
	assert.True(t, status.Driver.SignInTime.Equal(f.clock.Now()))
	assert.Nil(t, status.Mammographer)

	_, err = f.ctrl.TruckStatus(ctx, "RAD-404")
	assert.ErrorIs(t, err, ErrTruckNotFound)
}

func TestLessTruckID(t *testing.T) {
	assert.True(t, lessTruckID("RAD-2", "RAD-10"))
	assert.False(t, lessTruckID("RAD-10", "RAD-2"))
	assert.True(t, lessTruckID("RAD-9", "SPARE"))
	assert.True(t, lessTruckID("A", "B"))
}
