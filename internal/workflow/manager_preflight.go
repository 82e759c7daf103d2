package workflow

import (
	"context"

	"orbix/internal/logging"
	"orbix/internal/preflight"
)

// runPreflightChecks logs readiness of the install. Failures do not stop the
// scheduler: unconfigured stages already idle with a warning.
func (m *Manager) runPreflightChecks(ctx context.Context) {
	for _, r := range preflight.RunAll(ctx, m.cfg, false) {
		switch {
		case r.Passed:
			m.logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case r.Optional:
			m.logger.Info("optional preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_optional"),
			)
		default:
			logging.WarnWithContext(m.logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			)
		}
	}
}
