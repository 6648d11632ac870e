package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications as structured log entries. It is the
// default backend and the fallback for deployments without a push gateway.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger defaults to
// slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ShowPrecipitation(ctx context.Context, notice PrecipitationNotice) error {
	n.logger.InfoContext(ctx, "precipitation notification",
		"pop", notice.PoP,
		"precip_type", string(notice.PrecipType),
		"target_time", notice.TargetTime,
		"location", notice.LocationName,
	)
	return nil
}

func (n *LogNotifier) ShowFailure(ctx context.Context, notice FailureNotice) error {
	n.logger.WarnContext(ctx, "scheduling failure notification",
		"consecutive_failures", notice.ConsecutiveFailures,
		"status", string(notice.Status),
		"message", notice.Message,
	)
	return nil
}

func (n *LogNotifier) ClearFailure(ctx context.Context) error {
	n.logger.InfoContext(ctx, "scheduling failure notification cleared")
	return nil
}
