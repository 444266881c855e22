package occupancy

import (
	"errors"
	"fmt"

	"radhiant_ops/internal/models"
)

// Kind classifies an occupancy failure.
type Kind string

const (
	KindInvalidCredential  Kind = "InvalidCredential"
	KindUserNotFound       Kind = "UserNotFound"
	KindTruckNotFound      Kind = "TruckNotFound"
	KindAlreadySignedIn    Kind = "AlreadySignedIn"
	KindSlotOccupied       Kind = "SlotOccupied"
	KindNoActiveSession    Kind = "NoActiveSession"
	KindRoleNotPermitted   Kind = "RoleNotPermitted"
	KindPersistenceFailure Kind = "PersistenceFailure"
)

// Error is the failure type returned by every Controller operation.
// errors.Is matches on Kind, so callers compare against the Err* values.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredential  = &Error{Kind: KindInvalidCredential, Message: "Invalid password"}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound, Message: "User not found"}
	ErrTruckNotFound      = &Error{Kind: KindTruckNotFound, Message: "Truck not found"}
	ErrAlreadySignedIn    = &Error{Kind: KindAlreadySignedIn, Message: "User is already signed in"}
	ErrSlotOccupied       = &Error{Kind: KindSlotOccupied, Message: "Truck slot is already occupied"}
	ErrNoActiveSession    = &Error{Kind: KindNoActiveSession, Message: "No active sign-in found for user"}
	ErrRoleNotPermitted   = &Error{Kind: KindRoleNotPermitted, Message: "Role cannot sign in to a truck"}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure, Message: "Database operation failed"}
)

func slotOccupied(slot models.Slot) error {
	return &Error{Kind: KindSlotOccupied, Message: fmt.Sprintf("Truck already has a %s signed in", slot)}
}

func roleNotPermitted(role models.Role) error {
	return &Error{Kind: KindRoleNotPermitted, Message: fmt.Sprintf("Role %q cannot sign in to a truck", role)}
}

func persistence(op string, err error) error {
	return &Error{Kind: KindPersistenceFailure, Message: "Database operation failed in " + op, Err: err}
}

// classify passes occupancy errors through and wraps anything else as a
// persistence failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return persistence(op, err)
}

// KindOf returns the Kind carried by err, or "" when err is nil or foreign.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	if err != nil {
		return KindPersistenceFailure
	}
	return ""
}

// Result is the success-or-failure shape handed to callers at the boundary.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    Kind   `json:"code,omitempty"`
}

// Outcome folds an operation's return values into a Result.
func Outcome(data any, err error) Result {
	if err != nil {
		return Result{Success: false, Error: err.Error(), Code: KindOf(err)}
	}
	return Result{Success: true, Data: data}
}
