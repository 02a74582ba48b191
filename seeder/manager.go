package seeder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/s0up4200/ptseed/config"
	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/metrics"
	"github.com/s0up4200/ptseed/policy"
	"github.com/s0up4200/ptseed/registry"
	"github.com/s0up4200/ptseed/site"
)

// maxApplyConcurrency bounds the per-tick fan-out of adapter commands.
const maxApplyConcurrency = 5

// SiteSession is the slice of the site client the manager needs for
// admission.
type SiteSession interface {
	Classify(ctx context.Context, torrentID string) (site.Classification, error)
	Submit(ctx context.Context, torrentFile []byte, meta site.SubmitMeta) (string, error)
}

// Manager is the seeding lifecycle manager: a control loop reconciling the
// active torrent pool against policy and resource bounds.
type Manager struct {
	adapter   downloader.Adapter
	registry  *registry.Registry
	session   SiteSession
	evaluator *policy.Evaluator
	cfg       config.Config
	logger    zerolog.Logger

	lock *flock.Flock

	// tickMu is the run-lock: a tick must finish before the next starts.
	tickMu sync.Mutex
}

// New constructs a manager from initialized dependencies.
func New(adapter downloader.Adapter, reg *registry.Registry, session SiteSession, cfg config.Config, logger zerolog.Logger) (*Manager, error) {
	if adapter == nil || reg == nil {
		return nil, errors.New("manager requires adapter and registry")
	}

	evaluator, err := policy.NewEvaluator(cfg.Seeding)
	if err != nil {
		return nil, fmt.Errorf("build policy evaluator: %w", err)
	}

	return &Manager{
		adapter:   adapter,
		registry:  reg,
		session:   session,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Run executes the control loop until ctx is cancelled. A lock file at
// lockPath enforces single-instance execution; pass "" to skip it. The
// first tick doubles as the restart reconcile: registry state is refreshed
// from a live snapshot before normal ticking resumes.
func (m *Manager) Run(ctx context.Context, lockPath string) error {
	if lockPath != "" {
		m.lock = flock.New(lockPath)
		ok, err := m.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return errors.New("another ptseed instance is already running")
		}
		defer func() { _ = m.lock.Unlock() }()
	}

	m.logger.Info().
		Dur("interval", m.cfg.Seeding.Interval).
		Bool("auto_delete", m.cfg.Seeding.AutoDelete).
		Msg("Seeding lifecycle manager started")

	if err := m.RunOnce(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Reconcile tick failed, continuing")
	}

	ticker := time.NewTicker(m.cfg.Seeding.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Seeding lifecycle manager stopped")
			return nil
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Tick failed, retrying next interval")
			}
		}
	}
}

// RunOnce executes a single tick under the run-lock. A tick already in
// flight makes this call a no-op.
func (m *Manager) RunOnce(ctx context.Context) error {
	if !m.tickMu.TryLock() {
		m.logger.Warn().Msg("Previous tick still running, skipping")
		return nil
	}
	defer m.tickMu.Unlock()

	err := m.tick(ctx)
	if err != nil {
		metrics.TickFailuresTotal.Inc()
		return err
	}

	metrics.TicksTotal.Inc()
	return nil
}
