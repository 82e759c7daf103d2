package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/settings"
)

// Manager runs the scheduled stage jobs.
type Manager struct {
	cfg      *config.Config
	settings settings.Reader
	logger   *slog.Logger
	notifier notifications.Service
	lockDir  string
	clock    func() time.Time

	recoverers []Recoverer
	preflight  bool

	mu      sync.RWMutex
	jobs    []*job
	byName  map[string]*job
	running bool
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for daily schedules.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLockDir overrides the stage lock directory. Empty disables file locks.
func WithLockDir(dir string) ManagerOption {
	return func(m *Manager) { m.lockDir = dir }
}

// WithRecoverers registers startup recovery hooks.
func WithRecoverers(r ...Recoverer) ManagerOption {
	return func(m *Manager) { m.recoverers = append(m.recoverers, r...) }
}

// WithPreflight logs the preflight report when the manager starts.
func WithPreflight(enabled bool) ManagerOption {
	return func(m *Manager) { m.preflight = enabled }
}

// NewManager constructs a workflow manager. Settings are re-read from
// reader on every job invocation.
func NewManager(cfg *config.Config, reader settings.Reader, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	m := &Manager{
		cfg:      cfg,
		settings: reader,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifier,
		lockDir:  cfg.LockDir(),
		clock:    time.Now,
		byName:   make(map[string]*job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
