/*
Package sqlite provides a SQLite-backed implementation of progression.Store.

PURPOSE:
  Persists member records, the event log and the job journal with
  database/sql and go-sqlite3. The same schema ports to PostgreSQL with
  minor dialect changes; store/postgres uses gorm instead.

INTERFACES IMPLEMENTED:
  progression.MemberStore: Member records (upsert per record)
  progression.EventLog:    Append-only audit trail
  progression.RunStore:    Bulk job journal

KEY TABLES:
  members:  One row per member, promotion history as a JSON column
  events:   Immutable audit entries, payload as JSON
  job_runs: Weekly/daily reset, recompute and sweep runs

APPEND-ONLY ENFORCEMENT:
  events has no UPDATE path. The only DELETE is DeleteBySubject, used by
  the purge deletion policy.

PREDICATES:
  FindAllMatching and Count take Go predicates, so they load every member
  row and filter in process. Member sets for one community are small.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, as SQLite allows a single writer.

USAGE:
  store, err := sqlite.New("./data/ranks.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - progression/store.go: Interface definitions
  - progression/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/rank-engine/progression"
)

// Store implements progression.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		unit TEXT NOT NULL,
		rank_level INTEGER NOT NULL,
		rank_name TEXT NOT NULL,
		rank_points INTEGER NOT NULL DEFAULT 0,
		rank_lock_until TEXT,
		rank_lock_notified INTEGER NOT NULL DEFAULT 0,
		promotion_eligible INTEGER NOT NULL DEFAULT 0,
		promotion_history_json TEXT NOT NULL DEFAULT '[]',
		weekly_points INTEGER NOT NULL DEFAULT 0,
		all_time_points INTEGER NOT NULL DEFAULT 0,
		weekly_quota INTEGER NOT NULL DEFAULT 0,
		quota_completed INTEGER NOT NULL DEFAULT 0,
		daily_points_today INTEGER NOT NULL DEFAULT 0,
		daily_points_date TEXT,
		quota_streak INTEGER NOT NULL DEFAULT 0,
		weekly_events INTEGER NOT NULL DEFAULT 0,
		total_events INTEGER NOT NULL DEFAULT 0,
		last_week_points INTEGER NOT NULL DEFAULT 0,
		booster INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_unit_level
		ON members(unit, rank_level);

	-- Events (append-only audit trail)
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		actor_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		category TEXT NOT NULL,
		point_delta INTEGER NOT NULL DEFAULT 0,
		description TEXT,
		proof_reference TEXT,
		payload_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_subject_created
		ON events(subject_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_events_category
		ON events(category);

	-- Bulk job journal
	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		scanned INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_kind_started
		ON job_runs(kind, started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MEMBER STORE (progression.MemberStore interface)
// =============================================================================

const memberColumns = `id, display_name, unit, rank_level, rank_name, rank_points,
	rank_lock_until, rank_lock_notified, promotion_eligible, promotion_history_json,
	weekly_points, all_time_points, weekly_quota, quota_completed,
	daily_points_today, daily_points_date, quota_streak, weekly_events,
	total_events, last_week_points, booster, created_at, updated_at`

// Save upserts the whole member record.
func (s *Store) Save(ctx context.Context, m progression.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := json.Marshal(historyRows(m.PromotionHistory))
	if err != nil {
		return fmt.Errorf("failed to encode promotion history: %w", err)
	}

	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			unit = excluded.unit,
			rank_level = excluded.rank_level,
			rank_name = excluded.rank_name,
			rank_points = excluded.rank_points,
			rank_lock_until = excluded.rank_lock_until,
			rank_lock_notified = excluded.rank_lock_notified,
			promotion_eligible = excluded.promotion_eligible,
			promotion_history_json = excluded.promotion_history_json,
			weekly_points = excluded.weekly_points,
			all_time_points = excluded.all_time_points,
			weekly_quota = excluded.weekly_quota,
			quota_completed = excluded.quota_completed,
			daily_points_today = excluded.daily_points_today,
			daily_points_date = excluded.daily_points_date,
			quota_streak = excluded.quota_streak,
			weekly_events = excluded.weekly_events,
			total_events = excluded.total_events,
			last_week_points = excluded.last_week_points,
			booster = excluded.booster,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(m.ID), m.DisplayName, string(m.Unit), m.RankLevel, m.RankName, m.RankPoints,
		nullTime(m.RankLockUntil), m.RankLockNotified, m.PromotionEligible, string(history),
		m.WeeklyPoints, m.AllTimePoints, m.WeeklyQuota, m.QuotaCompleted,
		m.DailyPointsToday, nullString(m.DailyPointsDate), m.QuotaStreak, m.WeeklyEvents,
		m.TotalEvents, m.LastWeekPoints, m.Booster,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save member %s: %w", m.ID, err)
	}
	return nil
}

// Find returns (nil, nil) when the member does not exist.
func (s *Store) Find(ctx context.Context, id progression.MemberID) (*progression.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM members WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	m, err := scanMember(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAllMatching loads every member and filters with pred.
func (s *Store) FindAllMatching(ctx context.Context, pred progression.Predicate) ([]progression.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM members ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []progression.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(m) {
			members = append(members, m)
		}
	}
	return members, rows.Err()
}

// Count returns the number of members matching pred.
func (s *Store) Count(ctx context.Context, pred progression.Predicate) (int, error) {
	if pred == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var n int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&n)
		return n, err
	}
	members, err := s.FindAllMatching(ctx, pred)
	return len(members), err
}

// Delete removes a member row. Events are handled separately.
func (s *Store) Delete(ctx context.Context, id progression.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", string(id))
	return err
}

func scanMember(rows *sql.Rows) (progression.Member, error) {
	var m progression.Member
	var id, unit, history, createdAt, updatedAt string
	var lockUntil, dailyDate sql.NullString

	err := rows.Scan(
		&id, &m.DisplayName, &unit, &m.RankLevel, &m.RankName, &m.RankPoints,
		&lockUntil, &m.RankLockNotified, &m.PromotionEligible, &history,
		&m.WeeklyPoints, &m.AllTimePoints, &m.WeeklyQuota, &m.QuotaCompleted,
		&m.DailyPointsToday, &dailyDate, &m.QuotaStreak, &m.WeeklyEvents,
		&m.TotalEvents, &m.LastWeekPoints, &m.Booster, &createdAt, &updatedAt,
	)
	if err != nil {
		return m, err
	}

	m.ID = progression.MemberID(id)
	m.Unit = progression.Unit(unit)
	m.RankLockUntil = parseNullTime(lockUntil)
	m.DailyPointsDate = dailyDate.String
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

	var hr []historyRow
	if err := json.Unmarshal([]byte(history), &hr); err != nil {
		return m, fmt.Errorf("failed to decode promotion history of %s: %w", id, err)
	}
	m.PromotionHistory = fromHistoryRows(hr)
	return m, nil
}

// =============================================================================
// PROMOTION HISTORY JSON
// =============================================================================

// historyRow is the stored JSON shape of a progression.PromotionRecord.
type historyRow struct {
	ID                       string     `json:"id"`
	FromLevel                int        `json:"from_level"`
	FromRank                 string     `json:"from_rank"`
	FromUnit                 string     `json:"from_unit"`
	ToLevel                  int        `json:"to_level"`
	ToRank                   string     `json:"to_rank"`
	ToUnit                   string     `json:"to_unit"`
	At                       time.Time  `json:"at"`
	ActorID                  string     `json:"actor_id"`
	Type                     string     `json:"type"`
	Reason                   string     `json:"reason,omitempty"`
	RankPointsAtPromotion    int        `json:"rank_points_at_promotion"`
	AllTimePointsAtPromotion int        `json:"all_time_points_at_promotion"`
	LockApplied              *time.Time `json:"lock_applied,omitempty"`
}

func historyRows(recs []progression.PromotionRecord) []historyRow {
	out := make([]historyRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, historyRow{
			ID: r.ID, FromLevel: r.FromLevel, FromRank: r.FromRank, FromUnit: string(r.FromUnit),
			ToLevel: r.ToLevel, ToRank: r.ToRank, ToUnit: string(r.ToUnit),
			At: r.At, ActorID: r.ActorID, Type: string(r.Type), Reason: r.Reason,
			RankPointsAtPromotion:    r.RankPointsAtPromotion,
			AllTimePointsAtPromotion: r.AllTimePointsAtPromotion,
			LockApplied:              r.LockApplied,
		})
	}
	return out
}

func fromHistoryRows(rows []historyRow) []progression.PromotionRecord {
	if len(rows) == 0 {
		return nil
	}
	out := make([]progression.PromotionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, progression.PromotionRecord{
			ID: r.ID, FromLevel: r.FromLevel, FromRank: r.FromRank, FromUnit: progression.Unit(r.FromUnit),
			ToLevel: r.ToLevel, ToRank: r.ToRank, ToUnit: progression.Unit(r.ToUnit),
			At: r.At, ActorID: r.ActorID, Type: progression.PromotionType(r.Type), Reason: r.Reason,
			RankPointsAtPromotion:    r.RankPointsAtPromotion,
			AllTimePointsAtPromotion: r.AllTimePointsAtPromotion,
			LockApplied:              r.LockApplied,
		})
	}
	return out
}

// =============================================================================
// EVENT LOG (progression.EventLog interface)
// =============================================================================

// Append writes one immutable event.
func (s *Store) Append(ctx context.Context, ev progression.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload sql.NullString
	if len(ev.Payload) > 0 {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, actor_id, subject_id, category, point_delta,
			description, proof_reference, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.ActorID, string(ev.SubjectID), string(ev.Category), ev.PointDelta,
		nullString(ev.Description), nullString(ev.ProofReference), payload, formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Query returns matching events newest first.
func (s *Store) Query(ctx context.Context, f progression.EventFilter) ([]progression.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, actor_id, subject_id, category, point_delta, description,
		proof_reference, payload_json, created_at FROM events WHERE 1=1`
	var args []any
	if f.SubjectID != nil {
		query += " AND subject_id = ?"
		args = append(args, string(*f.SubjectID))
	}
	if f.ActorID != nil {
		query += " AND actor_id = ?"
		args = append(args, *f.ActorID)
	}
	if len(f.Categories) > 0 {
		query += " AND category IN (?" + strings.Repeat(",?", len(f.Categories)-1) + ")"
		for _, c := range f.Categories {
			args = append(args, string(c))
		}
	}
	if f.From != nil {
		query += " AND created_at >= ?"
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += " AND created_at <= ?"
		args = append(args, formatTime(*f.To))
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []progression.Event
	for rows.Next() {
		var ev progression.Event
		var subject, category, createdAt string
		var desc, proof, payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ActorID, &subject, &category, &ev.PointDelta,
			&desc, &proof, &payload, &createdAt); err != nil {
			return nil, err
		}
		ev.SubjectID = progression.MemberID(subject)
		ev.Category = progression.EventCategory(category)
		ev.Description = desc.String
		ev.ProofReference = proof.String
		ev.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload of event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteBySubject purges a deleted member's events.
func (s *Store) DeleteBySubject(ctx context.Context, id progression.MemberID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE subject_id = ?", string(id))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// JOB RUNS (progression.RunStore interface)
// =============================================================================

// SaveRun upserts a job run.
func (s *Store) SaveRun(ctx context.Context, r progression.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO job_runs (id, kind, status, actor_id, scanned, updated, failed,
			error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scanned = excluded.scanned,
			updated = excluded.updated,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.Kind), string(r.Status), r.ActorID, r.Scanned, r.Updated, r.Failed,
		nullString(r.Error), formatTime(r.StartedAt), nullTime(r.CompletedAt),
	)
	return err
}

// ListRuns returns runs newest first. An empty kind lists all kinds.
func (s *Store) ListRuns(ctx context.Context, kind progression.RunKind, limit int) ([]progression.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, status, actor_id, scanned, updated, failed, error,
		started_at, completed_at FROM job_runs`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []progression.Run
	for rows.Next() {
		var r progression.Run
		var k, status, startedAt string
		var errText, completedAt sql.NullString
		if err := rows.Scan(&r.ID, &k, &status, &r.ActorID, &r.Scanned, &r.Updated, &r.Failed,
			&errText, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Kind = progression.RunKind(k)
		r.Status = progression.RunStatus(status)
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

var _ progression.Store = (*Store)(nil)
