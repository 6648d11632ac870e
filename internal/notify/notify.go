// Package notify delivers the user-facing notifications of the umbrella
// daemon: the precipitation alert armed by the scheduler and the persistent
// warning raised after repeated scheduling failures. Two backends exist, a
// structured-log notifier for local and headless deployments and a webhook
// notifier that posts to an external push gateway.
package notify

import (
	"context"
	"time"

	"umbrella/internal/types"
)

// PrecipitationNotice is the payload of a precipitation alert.
type PrecipitationNotice struct {
	PoP          int                     `json:"pop"`
	PrecipType   types.PrecipitationType `json:"precip_type"`
	TargetTime   time.Time               `json:"target_time"`
	LocationName string                  `json:"location_name,omitempty"`
}

// FailureNotice is the payload of the persistent scheduling-failure warning.
type FailureNotice struct {
	ConsecutiveFailures int             `json:"consecutive_failures"`
	Status              types.AppStatus `json:"status"`
	Message             string          `json:"message"`
}

// Notifier delivers notifications to the user.
type Notifier interface {
	// ShowPrecipitation delivers the precipitation alert.
	ShowPrecipitation(ctx context.Context, notice PrecipitationNotice) error

	// ShowFailure raises or refreshes the persistent failure warning.
	ShowFailure(ctx context.Context, notice FailureNotice) error

	// ClearFailure withdraws the persistent failure warning after a
	// successful pass. Clearing when none is shown is a no-op.
	ClearFailure(ctx context.Context) error
}
