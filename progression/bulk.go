package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// BULK OPERATIONS
// =============================================================================
//
// Every bulk job walks the member set one record at a time. The initial scan
// only fixes the id list; each record is re-read right before its step, then
// mutated, validated, saved and logged on its own, so writes that land while
// the job runs are not overwritten. A failure is recorded in the BatchError
// and the loop moves on. Cancellation is only observed between records.

// BatchSummary is the aggregate result of a bulk job.
type BatchSummary struct {
	RunID           string
	Kind            RunKind
	Scanned         int
	Updated         int
	CompletionFlips int
	Failures        []RecordFailure
	Members         []Member // populated by LockExpirySweep only
}

// batchStep mutates one member clone. save=false skips the write; a nil
// event saves without logging.
type batchStep func(m *Member, now time.Time) (save bool, ev *Event, err error)

func (s *Service) runBatch(ctx context.Context, kind RunKind, actor string, step batchStep) (BatchSummary, error) {
	now := s.now()
	sum := BatchSummary{RunID: uuid.NewString(), Kind: kind}
	run := Run{ID: sum.RunID, Kind: kind, Status: RunRunning, ActorID: actorOr(actor, SystemActor), StartedAt: now}
	if err := s.saveRun(ctx, run); err != nil {
		return sum, err
	}

	scanned, err := s.members.FindAllMatching(ctx, All)
	if err != nil {
		perr := &PersistenceError{Op: string(kind), Err: err}
		return sum, errors.Join(perr, s.finishRun(ctx, run, sum, perr))
	}

	ids := make([]MemberID, len(scanned))
	for i, m := range scanned {
		ids[i] = m.ID
	}

	var loopErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			loopErr = fmt.Errorf("%s interrupted after %d of %d members: %w", kind, sum.Scanned, len(ids), err)
			break
		}
		current, err := s.members.Find(ctx, id)
		if err != nil {
			sum.Scanned++
			sum.Failures = append(sum.Failures, RecordFailure{MemberID: id, Err: &PersistenceError{MemberID: id, Op: string(kind), Err: err}})
			continue
		}
		if current == nil {
			// deleted since the scan
			continue
		}
		sum.Scanned++
		found := *current
		m := found.Clone()
		save, ev, err := step(&m, now)
		if err == nil && save {
			if ev != nil && ev.ActorID == "" {
				ev.ActorID = run.ActorID
			}
			err = s.commit(ctx, string(kind), m, ev)
		}
		if err != nil {
			sum.Failures = append(sum.Failures, RecordFailure{MemberID: found.ID, Err: err})
			continue
		}
		if save {
			sum.Updated++
			if found.QuotaCompleted != m.QuotaCompleted {
				sum.CompletionFlips++
			}
		}
		if kind == RunLockSweep && save {
			sum.Members = append(sum.Members, m)
		}
	}

	var batchErr error
	if len(sum.Failures) > 0 {
		batchErr = &BatchError{Op: string(kind), Total: len(ids), Failures: sum.Failures}
	}
	result := errors.Join(loopErr, batchErr)
	return sum, errors.Join(result, s.finishRun(ctx, run, sum, result))
}

func (s *Service) saveRun(ctx context.Context, r Run) error {
	if s.runs == nil {
		return nil
	}
	if err := s.runs.SaveRun(ctx, r); err != nil {
		return &PersistenceError{Op: "save run " + r.ID, Err: err}
	}
	return nil
}

func (s *Service) finishRun(ctx context.Context, run Run, sum BatchSummary, result error) error {
	done := s.now()
	run.CompletedAt = &done
	run.Scanned = sum.Scanned
	run.Updated = sum.Updated
	run.Failed = len(sum.Failures)
	run.Status = RunCompleted
	if result != nil {
		run.Status = RunFailed
		run.Error = result.Error()
	}
	return s.saveRun(context.WithoutCancel(ctx), run)
}

// Runs lists the job journal, newest first.
func (s *Service) Runs(ctx context.Context, kind RunKind, limit int) ([]Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	runs, err := s.runs.ListRuns(ctx, kind, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list runs", Err: err}
	}
	return runs, nil
}

// =============================================================================
// JOBS
// =============================================================================

// WeeklyReset starts a new quota week for every member. Rank points,
// all-time points, rank level and promotion history are not touched. A
// non-nil error means the reset did not fully complete, even when the
// summary reports updated members.
func (s *Service) WeeklyReset(ctx context.Context, actor string) (BatchSummary, error) {
	return s.runBatch(ctx, RunWeeklyReset, actor, func(m *Member, now time.Time) (bool, *Event, error) {
		weekly, daily, events := m.WeeklyPoints, m.DailyPointsToday, m.WeeklyEvents
		streak, lastWeek := m.QuotaStreak, m.LastWeekPoints
		s.quota.ResetWeek(m, now)
		m.sync(s.ladders, now)
		if weekly == 0 && daily == 0 && events == 0 && streak == m.QuotaStreak && lastWeek == m.LastWeekPoints {
			return true, nil, nil
		}
		return true, &Event{
			Category:    EventReset,
			PointDelta:  -weekly,
			Description: fmt.Sprintf("weekly reset: %d points, %d events, streak %d -> %d", weekly, events, streak, m.QuotaStreak),
			Payload:     map[string]any{"last_week_points": weekly, "quota_streak": m.QuotaStreak, "previous_streak": streak},
		}, nil
	})
}

// DailyReset zeroes daily counters that belong to a previous local day.
func (s *Service) DailyReset(ctx context.Context, actor string) (BatchSummary, error) {
	day := DayKey(s.now(), s.loc)
	return s.runBatch(ctx, RunDailyReset, actor, func(m *Member, now time.Time) (bool, *Event, error) {
		daily, prev := m.DailyPointsToday, m.DailyPointsDate
		if m.DailyPointsDate == day {
			return false, nil, nil
		}
		if !s.quota.ResetDay(m, day, now) {
			return true, nil, nil
		}
		return true, &Event{
			Category:    EventReset,
			Description: fmt.Sprintf("daily reset: %d points on %s", daily, prev),
			Payload:     map[string]any{"daily_points": daily, "day": prev},
		}, nil
	})
}

// RecomputeAll re-derives quota, completion and eligibility for every
// member and saves only the records that changed.
func (s *Service) RecomputeAll(ctx context.Context, actor string) (BatchSummary, error) {
	return s.runBatch(ctx, RunRecomputeQuotas, actor, func(m *Member, now time.Time) (bool, *Event, error) {
		before := m.WeeklyQuota
		changed, flipped := s.quota.RecomputeOne(m, now)
		if !changed {
			return false, nil, nil
		}
		m.UpdatedAt = now
		return true, &Event{
			Category:    EventSync,
			Description: fmt.Sprintf("quota recomputed: %d -> %d (completion flipped: %t)", before, m.WeeklyQuota, flipped),
		}, nil
	})
}

// LockExpirySweep marks lapsed locks as notified and returns the members
// whose expiry should be announced. Each member is returned once.
func (s *Service) LockExpirySweep(ctx context.Context, actor string) (BatchSummary, error) {
	return s.runBatch(ctx, RunLockSweep, actor, func(m *Member, now time.Time) (bool, *Event, error) {
		until := m.RankLockUntil
		if !s.promo.ExpireLock(m, now) {
			return false, nil, nil
		}
		return true, &Event{
			Category:    EventLockExpiry,
			Description: fmt.Sprintf("rank lock expired at %s", until.UTC().Format(time.RFC3339)),
		}, nil
	})
}

// MigrateAll runs Backfill over every stored record.
func (s *Service) MigrateAll(ctx context.Context, actor string) (BatchSummary, error) {
	return s.runBatch(ctx, RunMigrate, actor, func(m *Member, now time.Time) (bool, *Event, error) {
		if !Backfill(m, s.ladders, now) {
			return false, nil, nil
		}
		return true, &Event{Category: EventSync, Description: "record back-filled"}, nil
	})
}
