/*
store.go - Persistence interfaces for member records, events and job runs

PURPOSE:
  Defines the boundary between the engine and storage. The engine treats
  members as a simple keyed store: one record saved at a time, no
  transactions across records.

KEY INTERFACES:
  MemberStore: Keyed member records (find, save, scan, count, delete)
  EventLog:    Append-only audit trail of every point or rank change
  RunStore:    Journal of bulk jobs (weekly reset, daily reset, ...)

CONTRACT:
  - Find returns (nil, nil) when the member does not exist
  - Save is an upsert of the whole record
  - Event entries are immutable once appended; DeleteBySubject exists only
    for the purge deletion policy

IMPLEMENTATIONS:
  - progression/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite (database/sql + go-sqlite3)
  - store/postgres/postgres.go: PostgreSQL through gorm

SEE ALSO:
  - service.go: The only writer
*/
package progression

import (
	"context"
	"time"
)

// =============================================================================
// MEMBER STORE
// =============================================================================

// Predicate selects members in bulk reads.
type Predicate func(Member) bool

// All matches every member.
func All(Member) bool { return true }

// NotAtMaxRank matches members with a next rank.
func NotAtMaxRank(m Member) bool { return m.RankLevel < LadderSize }

// MemberStore persists member records.
type MemberStore interface {
	Find(ctx context.Context, id MemberID) (*Member, error)
	Save(ctx context.Context, m Member) error
	FindAllMatching(ctx context.Context, pred Predicate) ([]Member, error)
	Count(ctx context.Context, pred Predicate) (int, error)
	Delete(ctx context.Context, id MemberID) error
}

// =============================================================================
// EVENT LOG
// =============================================================================

// EventCategory classifies an audit entry.
type EventCategory string

const (
	EventSubmission      EventCategory = "submission"
	EventAdminAdjustment EventCategory = "admin_adjustment"
	EventPromotion       EventCategory = "promotion"
	EventLockBypass      EventCategory = "lock_bypass"
	EventDeletion        EventCategory = "deletion"
	EventSync            EventCategory = "sync"
	EventReset           EventCategory = "reset"
	EventLockExpiry      EventCategory = "lock_expiry"
)

// Event is one immutable audit entry.
type Event struct {
	ID             string
	ActorID        string
	SubjectID      MemberID
	Category       EventCategory
	PointDelta     int
	Description    string
	ProofReference string
	Payload        map[string]any
	CreatedAt      time.Time
}

// EventFilter narrows Query. Zero values match everything.
type EventFilter struct {
	SubjectID  *MemberID
	ActorID    *string
	Categories []EventCategory
	From       *time.Time
	To         *time.Time
	Limit      int // newest first; 0 = no limit
}

// Matches reports whether ev passes every set field of f.
func (f EventFilter) Matches(ev Event) bool {
	if f.SubjectID != nil && ev.SubjectID != *f.SubjectID {
		return false
	}
	if f.ActorID != nil && ev.ActorID != *f.ActorID {
		return false
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == ev.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && ev.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && ev.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// EventLog is the append-only audit sink.
type EventLog interface {
	Append(ctx context.Context, ev Event) error
	Query(ctx context.Context, f EventFilter) ([]Event, error)
	DeleteBySubject(ctx context.Context, id MemberID) (int, error)
}

// =============================================================================
// RUN JOURNAL
// =============================================================================

// RunKind names a bulk job.
type RunKind string

const (
	RunWeeklyReset     RunKind = "weekly_reset"
	RunDailyReset      RunKind = "daily_reset"
	RunRecomputeQuotas RunKind = "recompute_quotas"
	RunLockSweep       RunKind = "lock_sweep"
	RunMigrate         RunKind = "migrate"
)

// RunStatus is the lifecycle of a Run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run records one execution of a bulk job.
type Run struct {
	ID          string
	Kind        RunKind
	Status      RunStatus
	ActorID     string
	Scanned     int
	Updated     int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// RunStore persists the job journal.
type RunStore interface {
	SaveRun(ctx context.Context, r Run) error
	ListRuns(ctx context.Context, kind RunKind, limit int) ([]Run, error)
}

// Store is the full persistence surface a backend provides.
type Store interface {
	MemberStore
	EventLog
	RunStore
}
