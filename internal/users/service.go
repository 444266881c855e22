// Package users is the admin side of the crew roster: profiles, truck
// assignments and credentials.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/models"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidPassword = errors.New("password cannot be empty")
	ErrInvalidName     = errors.New("name is required")
	ErrUnknownTruck    = errors.New("unknown truck")
	ErrUnauthorized    = errors.New("invalid credentials")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash *string, password string) bool
}

// Profile is a user as the admin screens see it. The hash never leaves the
// service, only whether one is set.
type Profile struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Role           models.Role `json:"role"`
	IsActive       bool        `json:"is_active"`
	HasPassword    bool        `json:"has_password"`
	AssignedTrucks []string    `json:"assigned_trucks"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type CreateInput struct {
	Name           string      `json:"name" binding:"required"`
	Role           models.Role `json:"role" binding:"required"`
	AssignedTrucks []string    `json:"assigned_trucks"`
	Password       *string     `json:"password"`
	IsActive       *bool       `json:"is_active"`
}

// UpdateInput changes only the fields that are set. AssignedTrucks, when
// non-nil, replaces the whole assignment list.
type UpdateInput struct {
	Name           *string      `json:"name"`
	Role           *models.Role `json:"role"`
	AssignedTrucks *[]string    `json:"assigned_trucks"`
	Password       *string      `json:"password"`
	ClearPassword  bool         `json:"clear_password"`
	IsActive       *bool        `json:"is_active"`
}

type Service struct {
	db     *gorm.DB
	hasher PasswordHasher
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewService(db *gorm.DB, hasher PasswordHasher, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{db: db, hasher: hasher, log: log, now: time.Now}
}

// List returns every user, optionally only those with role.
func (s *Service) List(ctx context.Context, role models.Role) ([]Profile, error) {
	q := s.db.WithContext(ctx).Preload("Assignments").Order("name asc")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var list []models.User
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]Profile, 0, len(list))
	for _, u := range list {
		out = append(out, toProfile(u))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Assignments").First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	p := toProfile(u)
	return &p, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Profile, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}

	user := models.User{Name: name, Role: in.Role, IsActive: true}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		return replaceAssignments(tx, user.ID, in.AssignedTrucks, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).WithField("role", user.Role).Info("user created")
	return s.Get(ctx, user.ID)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Profile, error) {
	now := s.now().UTC()
	changes := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		changes["name"] = name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, *in.Role)
		}
		changes["role"] = *in.Role
	}
	if in.IsActive != nil {
		changes["is_active"] = *in.IsActive
	}
	switch {
	case in.ClearPassword:
		changes["password_hash"] = nil
	case in.Password != nil:
		hash, err := s.hash(*in.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("loading user %s: %w", id, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		if len(changes) > 0 {
			changes["updated_at"] = now
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(changes).Error; err != nil {
				return fmt.Errorf("updating user %s: %w", id, err)
			}
		}
		if in.AssignedTrucks != nil {
			if err := tx.Where("user_id = ?", id).Delete(&models.UserTruckAssignment{}).Error; err != nil {
				return fmt.Errorf("clearing assignments: %w", err)
			}
			return replaceAssignments(tx, id, *in.AssignedTrucks, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", id).Info("user updated")
	return s.Get(ctx, id)
}

// ClearPassword removes the user's credential, blocking further sign-ins until
// a new one is set.
func (s *Service) ClearPassword(ctx context.Context, id string) (*Profile, error) {
	return s.Update(ctx, id, UpdateInput{ClearPassword: true})
}

// Delete removes the user together with its assignments, truck slot
// references and time entries.
func (s *Service) Delete(ctx context.Context, id string) error {
	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("loading user %s: %w", id, err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserTruckAssignment{}).Error; err != nil {
			return fmt.Errorf("deleting assignments: %w", err)
		}
		for _, col := range []string{models.SlotDriver.Column(), models.SlotMammographer.Column()} {
			if err := tx.Model(&models.Truck{}).Where(col+" = ?", id).
				Updates(map[string]any{col: nil, "updated_at": now}).Error; err != nil {
				return fmt.Errorf("clearing truck slots: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.TimeEntry{}).Error; err != nil {
			return fmt.Errorf("deleting time entries: %w", err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// Crew lists the active users who may sign in to truckID: drivers and
// mammographers assigned to it plus every active locum driver.
func (s *Service) Crew(ctx context.Context, truckID string) ([]Profile, error) {
	var assigned []models.User
	err := s.db.WithContext(ctx).
		Preload("Assignments").
		Select("users.*").
		Joins("JOIN user_truck_assignments uta ON uta.user_id = users.id").
		Where("uta.truck_id = ? AND users.is_active = ?", truckID, true).
		Find(&assigned).Error
	if err != nil {
		return nil, fmt.Errorf("loading crew for %s: %w", truckID, err)
	}

	var locums []models.User
	err = s.db.WithContext(ctx).
		Preload("Assignments").
		Where("role = ? AND is_active = ?", models.RoleLocumDriver, true).
		Find(&locums).Error
	if err != nil {
		return nil, fmt.Errorf("loading locum drivers: %w", err)
	}

	seen := map[string]bool{}
	var out []Profile
	for _, u := range append(assigned, locums...) {
		if seen[u.ID] || u.Role == models.RoleIT {
			continue
		}
		seen[u.ID] = true
		out = append(out, toProfile(u))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Authenticate checks admin credentials. Only the it role may log in to the
// admin surface.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*Profile, error) {
	var candidates []models.User
	err := s.db.WithContext(ctx).Preload("Assignments").
		Where("name = ? AND role = ? AND is_active = ?", strings.TrimSpace(name), models.RoleIT, true).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("loading admin %s: %w", name, err)
	}
	for _, u := range candidates {
		if s.hasher.Verify(u.PasswordHash, password) {
			p := toProfile(u)
			return &p, nil
		}
	}
	return nil, ErrUnauthorized
}

func (s *Service) hash(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

func replaceAssignments(tx *gorm.DB, userID string, trucks []string, now time.Time) error {
	seen := map[string]bool{}
	for _, truckID := range trucks {
		truckID = strings.TrimSpace(truckID)
		if truckID == "" || seen[truckID] {
			continue
		}
		seen[truckID] = true

		var count int64
		if err := tx.Model(&models.Truck{}).Where("id = ?", truckID).Count(&count).Error; err != nil {
			return fmt.Errorf("checking truck %s: %w", truckID, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownTruck, truckID)
		}
		a := models.UserTruckAssignment{UserID: userID, TruckID: truckID, AssignedAt: now}
		if err := tx.Create(&a).Error; err != nil {
			return fmt.Errorf("assigning truck %s: %w", truckID, err)
		}
	}
	return nil
}

func toProfile(u models.User) Profile {
	trucks := make([]string, 0, len(u.Assignments))
	for _, a := range u.Assignments {
		trucks = append(trucks, a.TruckID)
	}
	sort.Strings(trucks)
	return Profile{
		ID:             u.ID,
		Name:           u.Name,
		Role:           u.Role,
		IsActive:       u.IsActive,
		HasPassword:    u.HasPassword(),
		AssignedTrucks: trucks,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
