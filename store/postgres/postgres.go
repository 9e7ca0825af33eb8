/*
Package postgres provides a PostgreSQL implementation of progression.Store
using gorm.

PURPOSE:
  Production deployments that already run Postgres point DATABASE_URL at it
  and select DB_DRIVER=postgres. Tables are created with AutoMigrate on Open.

MODELS:
  memberRow: members table, promotion history serialized as JSON
  eventRow:  events table (append-only), payload serialized as JSON
  runRow:    job_runs table

UPSERTS:
  Save and SaveRun use ON CONFLICT (id) DO UPDATE through clause.OnConflict.

SEE ALSO:
  - progression/store.go: Interface definitions
  - store/sqlite/sqlite.go: SQLite implementation
*/
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/rank-engine/progression"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// =============================================================================
// MODELS
// =============================================================================

type memberRow struct {
	ID                string `gorm:"primaryKey"`
	DisplayName       string `gorm:"not null"`
	Unit              string `gorm:"index:idx_members_unit_level;not null"`
	RankLevel         int    `gorm:"index:idx_members_unit_level;not null;default:1"`
	RankName          string `gorm:"not null"`
	RankPoints        int    `gorm:"not null;default:0"`
	RankLockUntil     *time.Time
	RankLockNotified  bool                          `gorm:"not null;default:false"`
	PromotionEligible bool                          `gorm:"not null;default:false"`
	PromotionHistory  []progression.PromotionRecord `gorm:"serializer:json"`
	WeeklyPoints      int                           `gorm:"not null;default:0"`
	AllTimePoints     int                           `gorm:"not null;default:0"`
	WeeklyQuota       int                           `gorm:"not null;default:0"`
	QuotaCompleted    bool                          `gorm:"not null;default:false"`
	DailyPointsToday  int                           `gorm:"not null;default:0"`
	DailyPointsDate   string
	QuotaStreak       int  `gorm:"not null;default:0"`
	WeeklyEvents      int  `gorm:"not null;default:0"`
	TotalEvents       int  `gorm:"not null;default:0"`
	LastWeekPoints    int  `gorm:"not null;default:0"`
	Booster           bool `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (memberRow) TableName() string { return "members" }

type eventRow struct {
	Seq            int64  `gorm:"primaryKey;autoIncrement"`
	ID             string `gorm:"uniqueIndex;not null"`
	ActorID        string `gorm:"not null"`
	SubjectID      string `gorm:"index:idx_events_subject_created;not null"`
	Category       string `gorm:"index;not null"`
	PointDelta     int    `gorm:"not null;default:0"`
	Description    string
	ProofReference string
	Payload        map[string]any `gorm:"serializer:json"`
	CreatedAt      time.Time      `gorm:"index:idx_events_subject_created"`
}

func (eventRow) TableName() string { return "events" }

type runRow struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"index;not null"`
	Status      string `gorm:"not null"`
	ActorID     string `gorm:"not null"`
	Scanned     int
	Updated     int
	Failed      int
	Error       string
	StartedAt   time.Time `gorm:"index"`
	CompletedAt *time.Time
}

func (runRow) TableName() string { return "job_runs" }

// =============================================================================
// STORE
// =============================================================================

// Store implements progression.Store on gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&memberRow{}, &eventRow{}, &runRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// MEMBER STORE
// =============================================================================

func (s *Store) Save(ctx context.Context, m progression.Member) error {
	row := toMemberRow(m)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save member %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id progression.MemberID) (*progression.Member, error) {
	var rows []memberRow
	if err := s.db.WithContext(ctx).Where("id = ?", string(id)).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	m := rows[0].toMember()
	return &m, nil
}

func (s *Store) FindAllMatching(ctx context.Context, pred progression.Predicate) ([]progression.Member, error) {
	var rows []memberRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	var members []progression.Member
	for _, r := range rows {
		m := r.toMember()
		if pred == nil || pred(m) {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *Store) Count(ctx context.Context, pred progression.Predicate) (int, error) {
	if pred == nil {
		var n int64
		err := s.db.WithContext(ctx).Model(&memberRow{}).Count(&n).Error
		return int(n), err
	}
	members, err := s.FindAllMatching(ctx, pred)
	return len(members), err
}

func (s *Store) Delete(ctx context.Context, id progression.MemberID) error {
	return s.db.WithContext(ctx).Delete(&memberRow{}, "id = ?", string(id)).Error
}

func toMemberRow(m progression.Member) memberRow {
	return memberRow{
		ID:                string(m.ID),
		DisplayName:       m.DisplayName,
		Unit:              string(m.Unit),
		RankLevel:         m.RankLevel,
		RankName:          m.RankName,
		RankPoints:        m.RankPoints,
		RankLockUntil:     m.RankLockUntil,
		RankLockNotified:  m.RankLockNotified,
		PromotionEligible: m.PromotionEligible,
		PromotionHistory:  m.PromotionHistory,
		WeeklyPoints:      m.WeeklyPoints,
		AllTimePoints:     m.AllTimePoints,
		WeeklyQuota:       m.WeeklyQuota,
		QuotaCompleted:    m.QuotaCompleted,
		DailyPointsToday:  m.DailyPointsToday,
		DailyPointsDate:   m.DailyPointsDate,
		QuotaStreak:       m.QuotaStreak,
		WeeklyEvents:      m.WeeklyEvents,
		TotalEvents:       m.TotalEvents,
		LastWeekPoints:    m.LastWeekPoints,
		Booster:           m.Booster,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func (r memberRow) toMember() progression.Member {
	return progression.Member{
		ID:                progression.MemberID(r.ID),
		DisplayName:       r.DisplayName,
		Unit:              progression.Unit(r.Unit),
		RankLevel:         r.RankLevel,
		RankName:          r.RankName,
		RankPoints:        r.RankPoints,
		RankLockUntil:     r.RankLockUntil,
		RankLockNotified:  r.RankLockNotified,
		PromotionEligible: r.PromotionEligible,
		PromotionHistory:  r.PromotionHistory,
		WeeklyPoints:      r.WeeklyPoints,
		AllTimePoints:     r.AllTimePoints,
		WeeklyQuota:       r.WeeklyQuota,
		QuotaCompleted:    r.QuotaCompleted,
		DailyPointsToday:  r.DailyPointsToday,
		DailyPointsDate:   r.DailyPointsDate,
		QuotaStreak:       r.QuotaStreak,
		WeeklyEvents:      r.WeeklyEvents,
		TotalEvents:       r.TotalEvents,
		LastWeekPoints:    r.LastWeekPoints,
		Booster:           r.Booster,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, ev progression.Event) error {
	row := eventRow{
		ID:             ev.ID,
		ActorID:        ev.ActorID,
		SubjectID:      string(ev.SubjectID),
		Category:       string(ev.Category),
		PointDelta:     ev.PointDelta,
		Description:    ev.Description,
		ProofReference: ev.ProofReference,
		Payload:        ev.Payload,
		CreatedAt:      ev.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f progression.EventFilter) ([]progression.Event, error) {
	q := s.db.WithContext(ctx).Model(&eventRow{})
	if f.SubjectID != nil {
		q = q.Where("subject_id = ?", string(*f.SubjectID))
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		q = q.Where("category IN ?", cats)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	q = q.Order("created_at DESC").Order("seq DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]progression.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, progression.Event{
			ID:             r.ID,
			ActorID:        r.ActorID,
			SubjectID:      progression.MemberID(r.SubjectID),
			Category:       progression.EventCategory(r.Category),
			PointDelta:     r.PointDelta,
			Description:    r.Description,
			ProofReference: r.ProofReference,
			Payload:        r.Payload,
			CreatedAt:      r.CreatedAt,
		})
	}
	return events, nil
}

func (s *Store) DeleteBySubject(ctx context.Context, id progression.MemberID) (int, error) {
	res := s.db.WithContext(ctx).Where("subject_id = ?", string(id)).Delete(&eventRow{})
	return int(res.RowsAffected), res.Error
}

// =============================================================================
// JOB RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, r progression.Run) error {
	row := runRow{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Status:      string(r.Status),
		ActorID:     r.ActorID,
		Scanned:     r.Scanned,
		Updated:     r.Updated,
		Failed:      r.Failed,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "scanned", "updated", "failed", "error", "completed_at"}),
	}).Create(&row).Error
}

func (s *Store) ListRuns(ctx context.Context, kind progression.RunKind, limit int) ([]progression.Run, error) {
	q := s.db.WithContext(ctx).Model(&runRow{})
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	q = q.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	runs := make([]progression.Run, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, progression.Run{
			ID:          r.ID,
			Kind:        progression.RunKind(r.Kind),
			Status:      progression.RunStatus(r.Status),
			ActorID:     r.ActorID,
			Scanned:     r.Scanned,
			Updated:     r.Updated,
			Failed:      r.Failed,
			Error:       r.Error,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return runs, nil
}

var _ progression.Store = (*Store)(nil)
