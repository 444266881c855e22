package occupancy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"radhiant_ops/internal/auth"
	"radhiant_ops/internal/models"
	"radhiant_ops/internal/testutil"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu     sync.Mutex
	trucks []string
}

func (o *recordingObserver) TruckChanged(_ context.Context, truckID string) {
	o.mu.Lock()
	o.trucks = append(o.trucks, truckID)
	o.mu.Unlock()
}

type fixture struct {
	db     *gorm.DB
	ctrl   *Controller
	clock  *testClock
	hasher *auth.Hasher
	obs    *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	clock := &testClock{t: time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)}
	hasher := auth.NewHasher(4)

	ctrl, err := NewController(db, Options{
		Verifier:   hasher,
		Logger:     log,
		Location:   loc,
		CutoffHour: 20,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	obs := &recordingObserver{}
	ctrl.AddObserver(obs)
	return &fixture{db: db, ctrl: ctrl, clock: clock, hasher: hasher, obs: obs}
}

func (f *fixture) user(t *testing.T, name string, role models.Role, password string, trucks ...string) models.User {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = f.hasher.Hash(password)
		require.NoError(t, err)
	}
	return testutil.CreateUser(t, f.db, name, role, hash, trucks...)
}

func (f *fixture) truck(t *testing.T, id string) models.Truck {
	t.Helper()
	var truck models.Truck
	require.NoError(t, f.db.First(&truck, "id = ?", id).Error)
	return truck
}

func (f *fixture) openEntries(t *testing.T, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.TimeEntry{}).
		Where("user_id = ? AND sign_out_time IS NULL", userID).Count(&n).Error)
	return n
}

func TestNewController_RequiresDeps(t *testing.T) {
	_, err := NewController(nil, Options{Verifier: auth.NewHasher(4)})
	assert.Error(t, err)

	db := testutil.NewDB(t)
	_, err = NewController(db, Options{})
	assert.Error(t, err)
}

func TestSignInSignOut_HandOverDriverSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "Alice", models.RoleDriver, "pw1")
	b := f.user(t, "Bongani", models.RoleDriver, "pw2")

	entry, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: a.ID, TruckID: "RAD-1", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", entry.UserName)
	assert.Equal(t, models.RoleDriver, entry.UserRole)
	assert.True(t, entry.Open())
	assert.False(t, entry.IsAutoSignOut)
	require.NotNil(t, f.truck(t, "RAD-1").CurrentDriverID)
	assert.Equal(t, a.ID, *f.truck(t, "RAD-1").CurrentDriverID)

	_, err = f.ctrl.SignIn(ctx, SignInRequest{UserID: b.ID, TruckID: "RAD-1", Password: "pw2"})
	require.ErrorIs(t, err, ErrSlotOccupied)
	assert.Contains(t, err.Error(), "driver")
	assert.Zero(t, f.openEntries(t, b.ID))

	f.clock.Advance(8*time.Hour + 30*time.Minute)
	out, err := f.ctrl.SignOut(ctx, SignOutRequest{UserID: a.ID, Password: "pw1"})
	require.NoError(t, err)
	require.NotNil(t, out.SignOutTime)
	require.NotNil(t, out.TotalHours)
	assert.Equal(t, 8.5, *out.TotalHours)
	assert.Nil(t, f.truck(t, "RAD-1").CurrentDriverID)

	var stored models.TimeEntry
	require.NoError(t, f.db.First(&stored, "id = ?", entry.ID).Error)
	require.NotNil(t, stored.SignOutTime)
	assert.False(t, stored.SignOutTime.Before(stored.SignInTime))

	_, err = f.ctrl.SignIn(ctx, SignInRequest{UserID: b.ID, TruckID: "RAD-1", Password: "pw2"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, *f.truck(t, "RAD-1").CurrentDriverID)
}

func TestSignIn_DriverAndMammographerShareTruck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.user(t, "Driver", models.RoleLocumDriver, "pw")
	m := f.user(t, "Mammo", models.RoleMammographer, "pw")

	_, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: d.ID, TruckID: "RAD-2", Password: "pw"})
	require.NoError(t, err)
	_, err = f.ctrl.SignIn(ctx, SignInRequest{UserID: m.ID, TruckID: "RAD-2", Password: "pw"})
	require.NoError(t, err)

	truck := f.truck(t, "RAD-2")
	assert.Equal(t, d.ID, *truck.CurrentDriverID)
	assert.Equal(t, m.ID, *truck.CurrentMammographerID)
	assert.ElementsMatch(t, []string{"RAD-2", "RAD-2"}, f.obs.trucks)
}

func TestSignIn_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.user(t, "Driver", models.RoleDriver, "pw")
	nopass := f.user(t, "NoPass", models.RoleDriver, "")
	admin := f.user(t, "Admin", models.RoleIT, "pw")

	tests := []struct {
		name string
		req  SignInRequest
		want *Error
	}{
		{"unknown user", SignInRequest{UserID: "missing", TruckID: "RAD-1", Password: "pw"}, ErrUserNotFound},
		{"wrong password", SignInRequest{UserID: driver.ID, TruckID: "RAD-1", Password: "nope"}, ErrInvalidCredential},
		{"no password set", SignInRequest{UserID: nopass.ID, TruckID: "RAD-1", Password: ""}, ErrInvalidCredential},
		{"unknown truck", SignInRequest{UserID: driver.ID, TruckID: "RAD-99", Password: "pw"}, ErrTruckNotFound},
		{"admin role", SignInRequest{UserID: admin.ID, TruckID: "RAD-1", Password: "pw"}, ErrRoleNotPermitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ctrl.SignIn(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want.Kind, KindOf(err))
		})
	}

	assert.Nil(t, f.truck(t, "RAD-1").CurrentDriverID)
	assert.Empty(t, f.obs.trucks)
}

func TestSignIn_CredentialCheckedBeforeTruck(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Driver", models.RoleDriver, "pw")

	_, err := f.ctrl.SignIn(context.Background(), SignInRequest{UserID: u.ID, TruckID: "RAD-99", Password: "bad"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSignIn_AlreadySignedInElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Driver", models.RoleDriver, "pw")

	_, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: u.ID, TruckID: "RAD-1", Password: "pw"})
	require.NoError(t, err)

	_, err = f.ctrl.SignIn(ctx, SignInRequest{UserID: u.ID, TruckID: "RAD-3", Password: "pw"})
	require.ErrorIs(t, err, ErrAlreadySignedIn)
	assert.Nil(t, f.truck(t, "RAD-3").CurrentDriverID)
	assert.Equal(t, int64(1), f.openEntries(t, u.ID))
}

func TestOpenEntryIndexRejectsSecondOpenEntry(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Driver", models.RoleDriver, "pw")
	now := f.clock.Now()

	require.NoError(t, f.db.Create(&models.TimeEntry{UserID: u.ID, TruckID: "RAD-1", SignInTime: now}).Error)
	err := f.db.Create(&models.TimeEntry{UserID: u.ID, TruckID: "RAD-2", SignInTime: now}).Error
	require.Error(t, err)
}

func TestSignIn_NotesSavedToAssignment(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "Driver", models.RoleDriver, "pw", "RAD-4")

	_, err := f.ctrl.SignIn(context.Background(), SignInRequest{
		UserID: u.ID, TruckID: "RAD-4", Password: "pw", Notes: "  tyre pressure low  ",
	})
	require.NoError(t, err)

	var a models.UserTruckAssignment
	require.NoError(t, f.db.First(&a, "user_id = ? AND truck_id = ?", u.ID, "RAD-4").Error)
	require.NotNil(t, a.Comments)
	assert.Equal(t, "tyre pressure low", *a.Comments)
}

func TestSignIn_ConcurrentClaimsOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 6
	users := make([]models.User, n)
	for i := range users {
		users[i] = f.user(t, "Driver", models.RoleDriver, "pw")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ctrl.SignIn(ctx, SignInRequest{UserID: users[i].ID, TruckID: "RAD-5", Password: "pw"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotOccupied)
	}
	assert.Equal(t, 1, wins)

	var open int64
	require.NoError(t, f.db.Model(&models.TimeEntry{}).Where("truck_id = ? AND sign_out_time IS NULL", "RAD-5").Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestSignOut_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Driver", models.RoleDriver, "pw")

	_, err := f.ctrl.SignOut(ctx, SignOutRequest{UserID: "missing", Password: "pw"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.ctrl.SignOut(ctx, SignOutRequest{UserID: u.ID, Password: "pw"})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = f.ctrl.SignIn(ctx, SignInRequest{UserID: u.ID, TruckID: "RAD-1", Password: "pw"})
	require.NoError(t, err)
	_, err = f.ctrl.SignOut(ctx, SignOutRequest{UserID: u.ID, Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, int64(1), f.openEntries(t, u.ID))
}

func TestSignOut_ForcedSkipsCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Mammo", models.RoleMammographer, "pw")

	_, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: u.ID, TruckID: "RAD-6", Password: "pw"})
	require.NoError(t, err)

	out, err := f.ctrl.SignOut(ctx, SignOutRequest{UserID: u.ID, Forced: true})
	require.NoError(t, err)
	assert.True(t, out.IsAutoSignOut)
	assert.Equal(t, 0.0, *out.TotalHours)
	assert.Nil(t, f.truck(t, "RAD-6").CurrentMammographerID)
}

func TestSignOut_ClearsSlotAfterRoleChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "Switcher", models.RoleDriver, "pw")

	_, err := f.ctrl.SignIn(ctx, SignInRequest{UserID: u.ID, TruckID: "RAD-7", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("role", models.RoleMammographer).Error)

	_, err = f.ctrl.SignOut(ctx, SignOutRequest{UserID: u.ID, Password: "pw"})
	require.NoError(t, err)
	assert.Nil(t, f.truck(t, "RAD-7").CurrentDriverID)
}

func TestTotalHours(t *testing.T) {
	in := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.5, TotalHours(in, in.Add(90*time.Minute)))
	assert.Equal(t, 0.33, TotalHours(in, in.Add(20*time.Minute)))
	assert.Equal(t, 0.0, TotalHours(in, in.Add(-time.Hour)))
}

func TestOutcome(t *testing.T) {
	ok := Outcome("x", nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "x", ok.Data)

	failed := Outcome(nil, ErrNoActiveSession)
	assert.False(t, failed.Success)
	assert.Equal(t, KindNoActiveSession, failed.Code)
	assert.Equal(t, "No active sign-in found for user", failed.Error)
}
