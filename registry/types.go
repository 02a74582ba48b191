package registry

import "time"

// State is the lifecycle state of a registry record. The registry is the
// single writer of state; downloader metrics are ingested but never drive
// transitions directly.
type State string

const (
	// StatePending: submitted to the site, not yet confirmed by the downloader.
	StatePending State = "pending"
	// StateSeeding: present in the downloader, accruing ratio and seed time.
	StateSeeding State = "seeding"
	// StateEligible: meets removal policy thresholds, awaiting deletion or
	// operator action.
	StateEligible State = "eligible_for_removal"
	// StateRemoved: deleted from downloader and disk. Terminal, kept for audit.
	StateRemoved State = "removed"
	// StateFailed: admission or downloader error. Terminal, retryable by
	// operator action only.
	StateFailed State = "failed"
)

// Classification is the site promotion class recorded at admission.
// Immutable afterwards.
type Classification string

const (
	ClassDefault  Classification = "default"
	ClassFree     Classification = "free"
	ClassHalfFree Classification = "half_free"
	ClassDoubleUp Classification = "double_up"
)

// Record is one torrent's durable registry entry, keyed by content hash.
type Record struct {
	Hash           string
	Name           string
	Classification Classification
	Size           int64
	AddedAt        time.Time
	Ratio          float64
	SeedTime       time.Duration
	State          State
	Priority       int // manual priority override, defaults to 0
	LastError      string
	UpdatedAt      time.Time
}

// Active reports whether the record counts toward the managed pool.
func (r *Record) Active() bool {
	return r.State == StatePending || r.State == StateSeeding || r.State == StateEligible
}

// AdmitParams carries everything known about a torrent at admission time.
type AdmitParams struct {
	Hash           string
	Name           string
	Classification Classification
	Size           int64
	Priority       int
}

// PoolAggregate is derived fresh each tick from the registry, never cached.
type PoolAggregate struct {
	// DiskUsed is the total size of seeding and eligible_for_removal records.
	DiskUsed int64
	// SeedingCount counts records in the seeding state.
	SeedingCount int
	// ActiveCount counts pending, seeding and eligible_for_removal records.
	ActiveCount int
	// FreeDisk is the downloader-reported free space, 0 when unknown.
	FreeDisk int64
}
