package alarm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"umbrella/internal/types"
)

// FireFunc is invoked when an armed wake-up fires. The context carries the
// wake token as its request ID; implementations receive the payload armed
// with the slot.
type FireFunc func(ctx context.Context, slot Slot, payload Payload)

// TimerDriver is a Driver backed by in-process timers. It is the production
// driver for daemon deployments, where the process itself stays resident
// and exactness is only lost when the host suspends; CanScheduleExact is
// therefore a configuration switch rather than a runtime permission.
//
// Each armed wake-up carries a token. A fire is delivered only if its token
// still matches the slot's current token, so a re-arm or cancel that races
// a firing timer wins.
type TimerDriver struct {
	mu      sync.Mutex
	slots   map[Slot]*armedTimer
	onFire  FireFunc
	clock   types.Clock
	logger  *slog.Logger
	exactOK bool
}

type armedTimer struct {
	token string
	timer *time.Timer
}

// TimerDriverOption configures a TimerDriver.
type TimerDriverOption func(*TimerDriver)

// WithExactDisabled makes CanScheduleExact report false and ArmExact fail,
// modeling a platform that withholds exact-wake permission.
func WithExactDisabled() TimerDriverOption {
	return func(d *TimerDriver) {
		d.exactOK = false
	}
}

// NewTimerDriver creates a TimerDriver that calls onFire for every
// delivered wake-up. A nil logger defaults to slog.Default().
func NewTimerDriver(onFire FireFunc, clock types.Clock, logger *slog.Logger, opts ...TimerDriverOption) *TimerDriver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &TimerDriver{
		slots:   make(map[Slot]*armedTimer),
		onFire:  onFire,
		clock:   clock,
		logger:  logger,
		exactOK: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CanScheduleExact reports the driver's exact-wake switch.
func (d *TimerDriver) CanScheduleExact(context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exactOK
}

// ArmExact arms the slot with a plain timer. Fails with
// ErrExactNotPermitted when the exact-wake switch is off.
func (d *TimerDriver) ArmExact(ctx context.Context, slot Slot, at time.Time, payload Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.exactOK {
		return ErrExactNotPermitted
	}
	d.armLocked(ctx, slot, at, payload)
	return nil
}

// ArmInexact arms the slot. In-process timers have no batching window, so
// inexact arming differs from exact only in what the platform would be
// permitted to do with it.
func (d *TimerDriver) ArmInexact(ctx context.Context, slot Slot, at time.Time, payload Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armLocked(ctx, slot, at, payload)
	return nil
}

// Cancel disarms the slot. Cancelling an empty slot is a no-op.
func (d *TimerDriver) Cancel(_ context.Context, slot Slot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if armed, ok := d.slots[slot]; ok {
		armed.timer.Stop()
		delete(d.slots, slot)
	}
	return nil
}

func (d *TimerDriver) armLocked(ctx context.Context, slot Slot, at time.Time, payload Payload) {
	if armed, ok := d.slots[slot]; ok {
		armed.timer.Stop()
	}

	token := uuid.NewString()
	wait := at.Sub(d.clock.Now())
	if wait < 0 {
		wait = 0
	}

	d.logger.InfoContext(ctx, "wake-up armed",
		"slot", string(slot),
		"at", at,
		"token", token,
	)

	d.slots[slot] = &armedTimer{
		token: token,
		timer: time.AfterFunc(wait, func() {
			d.fire(slot, token, payload)
		}),
	}
}

func (d *TimerDriver) fire(slot Slot, token string, payload Payload) {
	d.mu.Lock()
	armed, ok := d.slots[slot]
	if !ok || armed.token != token {
		// Re-armed or cancelled while the timer was firing.
		d.mu.Unlock()
		return
	}
	delete(d.slots, slot)
	d.mu.Unlock()

	ctx := types.WithRequestID(context.Background(), token)
	d.logger.InfoContext(ctx, "wake-up fired", "slot", string(slot), "token", token)
	d.onFire(ctx, slot, payload)
}
