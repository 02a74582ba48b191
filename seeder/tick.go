package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/metrics"
	"github.com/s0up4200/ptseed/policy"
	"github.com/s0up4200/ptseed/registry"
)

// tick is one pass of the control loop: snapshot, ingest, evaluate,
// resolve, apply. Adapter failures abort the tick with zero transitions;
// everything is re-evaluated from fresh state next interval.
func (m *Manager) tick(ctx context.Context) error {
	snapshot, err := m.adapter.List(ctx)
	if err != nil {
		return fmt.Errorf("list torrents: %w", err)
	}

	byHash := make(map[string]downloader.LiveMetric, len(snapshot))
	for _, metric := range snapshot {
		byHash[metric.Hash] = metric
	}

	if err := m.confirmPending(ctx, byHash); err != nil {
		return err
	}
	if err := m.ingestMetrics(ctx, byHash); err != nil {
		return err
	}

	// Free space is advisory: backends that cannot report it simply skip
	// the reserved-floor check.
	var freeDisk int64
	if free, err := m.adapter.FreeSpace(ctx); err == nil {
		freeDisk = free
	} else if !errors.Is(err, downloader.ErrUnsupported) {
		m.logger.Debug().Err(err).Msg("Free space unavailable this tick")
	}

	pool, err := m.registry.Aggregate(ctx, freeDisk)
	if err != nil {
		return fmt.Errorf("aggregate pool: %w", err)
	}
	metrics.ActiveTorrents.Set(float64(pool.ActiveCount))
	metrics.PoolDiskBytes.Set(float64(pool.DiskUsed))

	eligible, rest, reprioritize, err := m.evaluate(ctx, byHash, pool)
	if err != nil {
		return err
	}

	m.apply(ctx, eligible, rest, reprioritize, pool)
	return nil
}

// confirmPending promotes pending records seen in the snapshot and fails
// those the downloader never confirmed within the admission timeout.
func (m *Manager) confirmPending(ctx context.Context, byHash map[string]downloader.LiveMetric) error {
	pending, err := m.registry.ByState(ctx, registry.StatePending)
	if err != nil {
		return fmt.Errorf("load pending records: %w", err)
	}

	for _, rec := range pending {
		if _, seen := byHash[rec.Hash]; seen {
			if _, err := m.registry.Transition(ctx, rec.Hash, registry.StatePending, registry.StateSeeding); err != nil {
				return err
			}
			m.logger.Info().Str("hash", rec.Hash).Str("name", rec.Name).Msg("Torrent confirmed by downloader")
			continue
		}

		if time.Since(rec.AddedAt) > m.cfg.Seeding.PendingTimeout {
			ok, err := m.registry.Transition(ctx, rec.Hash, registry.StatePending, registry.StateFailed)
			if err != nil {
				return err
			}
			if ok {
				_ = m.registry.SetLastError(ctx, rec.Hash, "admission timeout: never confirmed by downloader")
				metrics.FailedTorrentsTotal.Inc()
				m.logger.Warn().Str("hash", rec.Hash).Str("name", rec.Name).Msg("Admission timed out, marking failed")
			}
		}
	}

	return nil
}

// ingestMetrics upserts the snapshot into the registry for records the
// registry is tracking as seeding or removal-eligible.
func (m *Manager) ingestMetrics(ctx context.Context, byHash map[string]downloader.LiveMetric) error {
	records, err := m.registry.ByState(ctx, registry.StateSeeding, registry.StateEligible)
	if err != nil {
		return fmt.Errorf("load active records: %w", err)
	}

	for _, rec := range records {
		metric, seen := byHash[rec.Hash]
		if !seen {
			m.logger.Warn().Str("hash", rec.Hash).Str("name", rec.Name).
				Msg("Tracked torrent missing from downloader snapshot")
			continue
		}
		if err := m.registry.UpdateMetrics(ctx, rec.Hash, metric.Ratio, metric.SeedTime, metric.Size); err != nil {
			return err
		}
	}

	return nil
}

// reprioritizeAction is a pending priority correction.
type reprioritizeAction struct {
	hash     string
	priority int
}

// evaluate runs the policy evaluator over every seeding record with a live
// metric, splitting the pool into eviction candidates and the rest.
func (m *Manager) evaluate(ctx context.Context, byHash map[string]downloader.LiveMetric, pool registry.PoolAggregate) (eligible, rest []policy.Candidate, reprioritize []reprioritizeAction, err error) {
	seeding, err := m.registry.ByState(ctx, registry.StateSeeding)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load seeding records: %w", err)
	}

	for _, rec := range seeding {
		metric, seen := byHash[rec.Hash]
		if !seen {
			continue
		}

		decision := m.evaluator.Evaluate(rec, metric, pool)
		candidate := policy.Candidate{
			Record:   rec,
			Metric:   metric,
			Priority: m.evaluator.EffectivePriority(rec),
			Reason:   decision.Reason,
		}

		if decision.EvictionCandidate {
			eligible = append(eligible, candidate)
		} else {
			rest = append(rest, candidate)
		}

		if decision.Reprioritize {
			reprioritize = append(reprioritize, reprioritizeAction{hash: rec.Hash, priority: decision.Priority})
		}
	}

	return eligible, rest, reprioritize, nil
}

// apply issues the tick's adapter commands with bounded fan-out. Every
// command is independently idempotent, so an unreachable backend simply
// leaves state to be retried next tick.
func (m *Manager) apply(ctx context.Context, eligible, rest []policy.Candidate, reprioritize []reprioritizeAction, pool registry.PoolAggregate) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxApplyConcurrency)

	for _, action := range reprioritize {
		g.Go(func() error {
			if err := m.adapter.SetPriority(gctx, action.hash, action.priority); err != nil {
				m.logger.Warn().Err(err).Str("hash", action.hash).Int("priority", action.priority).
					Msg("Reprioritize failed, retrying next tick")
			}
			return nil
		})
	}

	if !m.cfg.Seeding.AutoDelete {
		// Surfacing mode: mark every candidate and tell the operator.
		for _, c := range eligible {
			ok, err := m.registry.Transition(ctx, c.Record.Hash, registry.StateSeeding, registry.StateEligible)
			if err != nil {
				m.logger.Error().Err(err).Str("hash", c.Record.Hash).Msg("Mark eligible failed")
				continue
			}
			if ok {
				metrics.EvictionsTotal.WithLabelValues("marked").Inc()
				m.logger.Warn().
					Str("hash", c.Record.Hash).
					Str("name", c.Record.Name).
					Str("reason", c.Reason).
					Msg("Torrent eligible for removal; auto_delete disabled, operator action required")
			}
		}
		_ = g.Wait()
		return
	}

	// Deletion mode: finish any eviction already marked, then evict the
	// minimum set needed to satisfy the bounds.
	marked, err := m.registry.ByState(ctx, registry.StateEligible)
	if err != nil {
		m.logger.Error().Err(err).Msg("Load marked records failed")
		marked = nil
	}
	for _, rec := range marked {
		g.Go(func() error {
			m.remove(gctx, rec.Hash, rec.Name)
			return nil
		})
	}

	for _, c := range m.evaluator.SelectEvictions(eligible, rest, pool) {
		g.Go(func() error {
			ok, err := m.registry.Transition(gctx, c.Record.Hash, registry.StateSeeding, registry.StateEligible)
			if err != nil {
				m.logger.Error().Err(err).Str("hash", c.Record.Hash).Msg("Mark eligible failed")
				return nil
			}
			if !ok {
				return nil
			}
			m.remove(gctx, c.Record.Hash, c.Record.Name)
			return nil
		})
	}

	_ = g.Wait()
}

// remove deletes a torrent and its data from the downloader and finishes
// the lifecycle transition. An unreachable backend leaves the record in
// eligible_for_removal for the next tick.
func (m *Manager) remove(ctx context.Context, hash, name string) {
	if err := m.adapter.Remove(ctx, hash, true); err != nil {
		m.logger.Warn().Err(err).Str("hash", hash).Str("name", name).
			Msg("Remove failed, deferring to next tick")
		_ = m.registry.SetLastError(ctx, hash, err.Error())
		return
	}

	ok, err := m.registry.Transition(ctx, hash, registry.StateEligible, registry.StateRemoved)
	if err != nil {
		m.logger.Error().Err(err).Str("hash", hash).Msg("Finish removal failed")
		return
	}
	if ok {
		metrics.EvictionsTotal.WithLabelValues("removed").Inc()
		m.logger.Info().Str("hash", hash).Str("name", name).Msg("Torrent evicted")
	}
}
