package workflow

import (
	"context"

	"orbix/internal/logging"
)

// recover runs every registered Recoverer once. Failures are logged; the
// affected rows stay as they are and the jobs still start.
func (m *Manager) recover(ctx context.Context) {
	for _, r := range m.recoverers {
		if r == nil {
			continue
		}
		n, err := r.Recover(ctx)
		if err != nil {
			logging.WarnWithContext(m.logger, "startup recovery failed", "recovery_failed",
				logging.String(logging.FieldErrorHint, "check database access"),
				logging.String(logging.FieldImpact, "interrupted renders stay PROCESSING"),
				logging.Error(err),
			)
			continue
		}
		if n > 0 {
			m.logger.Info("recovered interrupted work",
				logging.Int64("count", n),
				logging.String(logging.FieldEventType, "recovery_complete"),
			)
		}
	}
}
