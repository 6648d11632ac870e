package types

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleInfo is the single outstanding alarm record. It is built from the
// values actually armed with the wake-up driver, never from the originally
// requested ones; TargetTime alone always reflects the user's intent.
type ScheduleInfo struct {
	// TargetTime is the instant the user wants to be notified.
	TargetTime time.Time `json:"target_time"`
	// TriggerTime is the instant actually armed with the driver. It may be
	// earlier than TargetTime when a buffer was applied.
	TriggerTime time.Time `json:"trigger_time"`
	// IsExact reports whether the driver honored an exact-wake request.
	IsExact bool `json:"is_exact"`
	// BufferApplied reports whether TriggerTime was moved earlier to
	// compensate for inexact-mode batching delay.
	BufferApplied bool `json:"buffer_applied"`
	// BufferMinutes is the configured buffer, 0 when no buffer was applied.
	BufferMinutes int `json:"buffer_minutes"`
	// PoP is the precipitation probability carried through to the eventual
	// notification.
	PoP int `json:"pop"`
	// PrecipType is the precipitation classification for the payload.
	PrecipType PrecipitationType `json:"precip_type"`
}

// BufferDelta is the time the trigger was moved earlier than the target.
func (s ScheduleInfo) BufferDelta() time.Duration {
	return s.TargetTime.Sub(s.TriggerTime)
}

// DiagnosticString renders a multi-line human-readable summary for the
// schedule endpoint and logs.
func (s ScheduleInfo) DiagnosticString(loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "target:  %s\n", s.TargetTime.In(loc).Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "trigger: %s\n", s.TriggerTime.In(loc).Format("2006-01-02 15:04"))
	if s.IsExact {
		b.WriteString("mode:    exact\n")
	} else {
		b.WriteString("mode:    inexact\n")
	}
	if s.BufferApplied {
		fmt.Fprintf(&b, "buffer:  %dm earlier\n", s.BufferMinutes)
	}
	fmt.Fprintf(&b, "pop:     %d%%", s.PoP)
	return b.String()
}
