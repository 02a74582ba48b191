package policy

import (
	"sort"
	"time"

	"github.com/s0up4200/ptseed/config"
	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/registry"
)

// Decision is the evaluator's verdict for one torrent. Eviction candidacy
// and reprioritization are independent: a torrent can be both.
type Decision struct {
	// EvictionCandidate marks the torrent as removable. Candidacy feeds
	// conflict resolution; it never means immediate eviction by itself.
	EvictionCandidate bool
	// Reason explains candidacy for the operator notice.
	Reason string
	// Reprioritize is set when the downloader-side priority drifted from
	// the effective priority.
	Reprioritize bool
	// Priority is the target priority when Reprioritize is set.
	Priority int
}

// Candidate pairs a record with its live metric for conflict resolution.
type Candidate struct {
	Record   *registry.Record
	Metric   downloader.LiveMetric
	Priority int // effective priority at evaluation time
	Reason   string
}

// Evaluator is the pure, side-effect-free policy function. It holds only
// immutable per-run configuration.
type Evaluator struct {
	cfg          config.SeedingConfig
	removeFilter *removeFilter
}

// NewEvaluator builds an evaluator, compiling the optional remove filter
// expression once up front.
func NewEvaluator(cfg config.SeedingConfig) (*Evaluator, error) {
	e := &Evaluator{cfg: cfg}

	if cfg.RemoveFilter != "" {
		f, err := compileRemoveFilter(cfg.RemoveFilter)
		if err != nil {
			return nil, err
		}
		e.removeFilter = f
	}

	return e, nil
}

// EffectivePriority derives the torrent's priority: the configured weight
// for its classification plus the manual override stored on the record.
func (e *Evaluator) EffectivePriority(rec *registry.Record) int {
	return e.cfg.Priority[string(rec.Classification)] + rec.Priority
}

// Eligible reports whether the torrent has met its seeding obligation.
func (e *Evaluator) Eligible(m downloader.LiveMetric) bool {
	return m.Ratio >= e.cfg.MinRatio && m.SeedTime >= e.cfg.MinTime
}

// Evaluate maps one record plus its live metric to a decision. The pool
// aggregate is accepted for signature completeness of the policy contract;
// pool-level bounds are resolved across candidates in SelectEvictions.
func (e *Evaluator) Evaluate(rec *registry.Record, m downloader.LiveMetric, pool registry.PoolAggregate) Decision {
	var d Decision

	if e.Eligible(m) {
		d.EvictionCandidate = true
		d.Reason = "ratio and seed time thresholds met"
	} else if e.removeFilter != nil {
		if matched, err := e.removeFilter.matches(rec, m); err == nil && matched {
			d.EvictionCandidate = true
			d.Reason = "remove filter matched"
		}
	}

	if effective := e.EffectivePriority(rec); effective != m.Priority {
		d.Reprioritize = true
		d.Priority = effective
	}

	return d
}

// Rank orders eviction candidates: lowest effective priority first, then
// highest ratio (already-well-seeded torrents go first), then newest
// admission (older torrents are retained preferentially).
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Metric.Ratio != b.Metric.Ratio {
			return a.Metric.Ratio > b.Metric.Ratio
		}
		return a.Record.AddedAt.After(b.Record.AddedAt)
	})
}

// SelectEvictions resolves pool bounds into the minimum set of torrents to
// evict. Candidates that met policy thresholds are consumed first; when the
// bound is still violated, forced picks from the remaining seeding pool
// follow, regardless of ratio or seed time. Returns nil when no bound is
// active or violated.
func (e *Evaluator) SelectEvictions(eligible, rest []Candidate, pool registry.PoolAggregate) []Candidate {
	countExcess := 0
	if e.cfg.MaxTorrents > 0 && pool.SeedingCount > e.cfg.MaxTorrents {
		countExcess = pool.SeedingCount - e.cfg.MaxTorrents
	}

	var bytesExcess int64
	if maxDisk := e.cfg.MaxDiskUsageBytes(); maxDisk > 0 {
		if headroom := maxDisk - e.cfg.ReservedBytes(); pool.DiskUsed > headroom {
			bytesExcess = pool.DiskUsed - headroom
		}
	}
	// Reserved-space floor against the device itself, when the downloader
	// reports free space.
	if pool.FreeDisk > 0 {
		if shortfall := e.cfg.ReservedBytes() - pool.FreeDisk; shortfall > bytesExcess {
			bytesExcess = shortfall
		}
	}

	if countExcess == 0 && bytesExcess == 0 {
		return nil
	}

	Rank(eligible)
	Rank(rest)

	var (
		selected   []Candidate
		countTaken int
		bytesFreed int64
	)

	take := func(pool []Candidate) {
		for _, c := range pool {
			if countTaken >= countExcess && bytesFreed >= bytesExcess {
				return
			}
			selected = append(selected, c)
			countTaken++
			bytesFreed += c.Record.Size
		}
	}

	take(eligible)
	take(rest)

	return selected
}

// SeedingDays converts a seed time to fractional days for filter use.
func SeedingDays(seedTime time.Duration) float64 {
	return seedTime.Hours() / 24
}
