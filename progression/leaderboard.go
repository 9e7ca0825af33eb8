package progression

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEADERBOARDS - Read-only derived views
// =============================================================================

// Board selects the counter a leaderboard ranks by.
type Board string

const (
	BoardWeekly  Board = "weekly"
	BoardAllTime Board = "all_time"
)

// ParseBoard defaults to the weekly board.
func ParseBoard(s string) (Board, error) {
	switch Board(s) {
	case "", BoardWeekly:
		return BoardWeekly, nil
	case BoardAllTime, "alltime", "all-time":
		return BoardAllTime, nil
	}
	return "", invalid("board", "unknown leaderboard %q", s)
}

// Standing is one leaderboard row.
type Standing struct {
	Position int
	Member   Member
	Points   int
	// Trend is the week-over-week change of weekly points in percent.
	// Nil when there is no baseline (last week was zero).
	Trend *decimal.Decimal
}

// Trend computes (current - previous) / previous * 100, rounded to one
// decimal. Returns nil when previous is zero.
func Trend(current, previous int) *decimal.Decimal {
	if previous <= 0 {
		return nil
	}
	d := decimal.NewFromInt(int64(current - previous)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(previous))).
		Round(1)
	return &d
}

// Leaderboard ranks members by the chosen counter. Ties share a position
// and are listed by id. limit <= 0 returns everyone.
func (s *Service) Leaderboard(ctx context.Context, board Board, unit *Unit, limit int) ([]Standing, error) {
	ms, err := s.members.FindAllMatching(ctx, func(m Member) bool {
		return unit == nil || m.Unit == *unit
	})
	if err != nil {
		return nil, &PersistenceError{Op: "leaderboard", Err: err}
	}
	return RankStandings(ms, board, limit), nil
}

// RankStandings orders members for a board.
func RankStandings(ms []Member, board Board, limit int) []Standing {
	score := func(m Member) int {
		if board == BoardAllTime {
			return m.AllTimePoints
		}
		return m.WeeklyPoints
	}
	sort.Slice(ms, func(i, j int) bool {
		a, b := score(ms[i]), score(ms[j])
		if a != b {
			return a > b
		}
		return ms[i].ID < ms[j].ID
	})

	out := make([]Standing, 0, len(ms))
	for i, m := range ms {
		if limit > 0 && i >= limit {
			break
		}
		pos := i + 1
		if i > 0 && score(ms[i-1]) == score(m) {
			pos = out[i-1].Position
		}
		out = append(out, Standing{
			Position: pos,
			Member:   m,
			Points:   score(m),
			Trend:    Trend(m.WeeklyPoints, m.LastWeekPoints),
		})
	}
	return out
}
