package users

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"radhiant_ops/internal/auth"
	"radhiant_ops/internal/models"
	"radhiant_ops/internal/testutil"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	log, _ := test.NewNullLogger()
	return NewService(db, auth.NewHasher(4), log), db
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{
		Name:           "  Lindiwe ",
		Role:           models.RoleMammographer,
		AssignedTrucks: []string{"RAD-3", "RAD-1", "RAD-3"},
		Password:       strPtr("secret"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lindiwe", p.Name)
	assert.True(t, p.IsActive)
	assert.True(t, p.HasPassword)
	assert.Equal(t, []string{"RAD-1", "RAD-3"}, p.AssignedTrucks)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, "secret", *stored.PasswordHash)
	assert.True(t, auth.NewHasher(4).Verify(stored.PasswordHash, "secret"))
}

func TestCreate_Validation(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "X", Role: "pilot"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(ctx, CreateInput{Name: " ", Role: models.RoleDriver})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Create(ctx, CreateInput{Name: "X", Role: models.RoleDriver, Password: strPtr("")})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = svc.Create(ctx, CreateInput{Name: "X", Role: models.RoleDriver, AssignedTrucks: []string{"RAD-99"}})
	assert.ErrorIs(t, err, ErrUnknownTruck)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count, "failed create must roll back the user row")
}

func TestCreate_Inactive(t *testing.T) {
	svc, _ := newService(t)
	p, err := svc.Create(context.Background(), CreateInput{Name: "Off", Role: models.RoleDriver, IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.False(t, p.HasPassword)
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Kagiso", Role: models.RoleDriver, AssignedTrucks: []string{"RAD-1"}, Password: strPtr("a")})
	require.NoError(t, err)

	role := models.RoleLocumDriver
	trucks := []string{"RAD-2", "RAD-5"}
	p, err = svc.Update(ctx, p.ID, UpdateInput{Name: strPtr("Kagiso M"), Role: &role, AssignedTrucks: &trucks})
	require.NoError(t, err)
	assert.Equal(t, "Kagiso M", p.Name)
	assert.Equal(t, models.RoleLocumDriver, p.Role)
	assert.Equal(t, []string{"RAD-2", "RAD-5"}, p.AssignedTrucks)
	assert.True(t, p.HasPassword, "password is kept when not supplied")

	p, err = svc.ClearPassword(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, p.HasPassword)

	p, err = svc.Update(ctx, p.ID, UpdateInput{Password: strPtr("b")})
	require.NoError(t, err)
	assert.True(t, p.HasPassword)

	_, err = svc.Update(ctx, "missing", UpdateInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, p.ID, UpdateInput{Password: strPtr("")})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestDelete_RemovesEverything(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Gone", Role: models.RoleDriver, AssignedTrucks: []string{"RAD-1"}})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Truck{}).Where("id = ?", "RAD-1").Update("current_driver_id", p.ID).Error)
	require.NoError(t, db.Create(&models.TimeEntry{UserID: p.ID, TruckID: "RAD-1"}).Error)

	require.NoError(t, svc.Delete(ctx, p.ID))

	var truck models.Truck
	require.NoError(t, db.First(&truck, "id = ?", "RAD-1").Error)
	assert.Nil(t, truck.CurrentDriverID)

	var n int64
	require.NoError(t, db.Model(&models.TimeEntry{}).Where("user_id = ?", p.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.UserTruckAssignment{}).Where("user_id = ?", p.ID).Count(&n).Error)
	assert.Zero(t, n)

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrNotFound)
}

func TestCrew(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	mk := func(name string, role models.Role, active bool, trucks ...string) string {
		p, err := svc.Create(ctx, CreateInput{Name: name, Role: role, IsActive: boolPtr(active), AssignedTrucks: trucks})
		require.NoError(t, err)
		return p.ID
	}
	mk("Driver One", models.RoleDriver, true, "RAD-1")
	mk("Driver Two", models.RoleDriver, true, "RAD-2")
	mk("Retired", models.RoleDriver, false, "RAD-1")
	mk("Mammo", models.RoleMammographer, true, "RAD-1", "RAD-2")
	mk("Locum Assigned", models.RoleLocumDriver, true, "RAD-1")
	mk("Locum Floating", models.RoleLocumDriver, true)
	mk("Locum Off", models.RoleLocumDriver, false)
	mk("Admin", models.RoleIT, true, "RAD-1")

	crew, err := svc.Crew(ctx, "RAD-1")
	require.NoError(t, err)

	var names []string
	for _, p := range crew {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Driver One", "Locum Assigned", "Locum Floating", "Mammo"}, names)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "root", Role: models.RoleIT, Password: strPtr("admin")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "driver", Role: models.RoleDriver, Password: strPtr("admin")})
	require.NoError(t, err)

	p, err := svc.Authenticate(ctx, "root", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleIT, p.Role)

	_, err = svc.Authenticate(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "driver", "admin")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{Name: "b", Role: models.RoleDriver},
		{Name: "a", Role: models.RoleDriver},
		{Name: "c", Role: models.RoleMammographer},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	drivers, err := svc.List(ctx, models.RoleDriver)
	require.NoError(t, err)
	require.Len(t, drivers, 2)
	assert.Equal(t, "a", drivers[0].Name)
}
