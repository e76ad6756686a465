package media

import (
	"context"

	"github.com/rs/zerolog"
)

// Compensate runs an undo step after a failed multi-step write. Its error is
// logged and dropped so the caller can return the original failure. The
// step runs even when ctx is already cancelled.
func Compensate(ctx context.Context, logger zerolog.Logger, step string, undo func(context.Context) error) {
	if err := undo(context.WithoutCancel(ctx)); err != nil {
		logger.Warn().
			Err(err).
			Str("event", "rollback_failed").
			Str("step", step).
			Msg("compensating action failed")
	}
}
