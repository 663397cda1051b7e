package daily

import (
	"context"
	"database/sql"
	"time"

	"github.com/coder/quartz"
)

// Result is one player's finished daily round.
type Result struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	GameID    string `json:"gameId"`
	Won       bool   `json:"won"`
	Mistakes  int    `json:"mistakes"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Store persists daily results in the daily_results table.
type Store struct {
	db    *sql.DB
	clock quartz.Clock
}

// NewStore constructs a Store. A nil clock uses wall time.
func NewStore(db *sql.DB, clock quartz.Clock) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Store{db: db, clock: clock}
}

// Today returns the current date key by the store's clock.
func (s *Store) Today() string { return DateKey(s.clock.Now()) }

func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?",
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records r. Only the first result per user and date counts;
// later inserts are ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, game_id, won, mistakes, elapsed_ms, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		r.UserID, r.Date, r.GameID, r.Won, r.Mistakes, r.ElapsedMs,
		s.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LBRow is one leaderboard line. Guests show as "guest" with no user ID;
// their key is the anonymous cookie and must not leave the server.
type LBRow struct {
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username"`
	Won       bool   `json:"won"`
	Mistakes  int    `json:"mistakes"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Leaderboard ranks a date's results: wins first, then fewest mistakes,
// then fastest, then earliest.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(u.id, ''), COALESCE(u.username, 'guest'), d.won, d.mistakes, d.elapsed_ms
		FROM daily_results d LEFT JOIN users u ON u.id = d.user_id
		WHERE d.date=?
		ORDER BY d.won DESC, d.mistakes ASC, d.elapsed_ms ASC, d.created_at ASC
		LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Won, &r.Mistakes, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
