// Package alarm implements the wake-up scheduling subsystem: the Driver
// abstraction over the platform's wake mechanism, a timer-backed driver for
// daemon deployments, and the Scheduler that owns arming, fallback,
// persistence, and recovery of the notification alarm and its pre-check.
package alarm

import (
	"context"
	"errors"
	"time"

	"umbrella/internal/types"
)

// Slot identifies which of the two outstanding wake-ups an operation
// addresses. Each slot holds at most one armed wake-up; arming a slot
// replaces its previous wake-up.
type Slot string

const (
	// SlotPrimary is the user-facing notification wake-up.
	SlotPrimary Slot = "primary"
	// SlotPreCheck is the forecast refresh ahead of the notification.
	SlotPreCheck Slot = "precheck"
)

// Payload is the data carried from scheduling time to firing time.
type Payload struct {
	TargetTime time.Time
	PoP        int
	PrecipType types.PrecipitationType
}

// ErrExactNotPermitted is returned by ArmExact when exact scheduling is not
// currently permitted. CanScheduleExact can report true and ArmExact still
// fail with this error: permission can be revoked between the check and the
// arm, and the Scheduler treats the error as the signal to fall back to
// inexact mode.
var ErrExactNotPermitted = errors.New("exact wake-up scheduling not permitted")

// Driver is the platform wake mechanism. Implementations must tolerate
// Cancel on a slot that holds nothing.
type Driver interface {
	// CanScheduleExact reports whether exact scheduling is currently
	// permitted. Advisory only; ArmExact remains the authority.
	CanScheduleExact(ctx context.Context) bool

	// ArmExact arms the slot to fire at exactly the given instant.
	ArmExact(ctx context.Context, slot Slot, at time.Time, payload Payload) error

	// ArmInexact arms the slot to fire approximately at the given instant;
	// the platform may defer delivery.
	ArmInexact(ctx context.Context, slot Slot, at time.Time, payload Payload) error

	// Cancel disarms the slot.
	Cancel(ctx context.Context, slot Slot) error
}
