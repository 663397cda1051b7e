package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Owner identifies who played a game: a signed-in user or an anonymous cookie.
type Owner struct {
	UserID string
	AnonID string
}

func (o Owner) clause() (string, any) {
	if o.UserID != "" {
		return "user_id=?", o.UserID
	}
	return "anonymous_id=?", o.AnonID
}

// GameRow is one history entry.
type GameRow struct {
	ID         string `json:"id"`
	Deck       string `json:"deck"`
	Daily      string `json:"daily,omitempty"`
	Status     string `json:"status"`
	Mistakes   int    `json:"mistakes"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// StartGame records (or restarts) a history row for a round.
// Reloading a round on the same session resets its row.
func (r *Repo) StartGame(ctx context.Context, o Owner, gameID, deck, daily string, startedAt time.Time) error {
	var userID, anonID any
	if o.UserID != "" {
		userID = o.UserID
	} else {
		anonID = o.AnonID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO games (id, user_id, anonymous_id, deck, daily, started_at, status, mistakes)
		VALUES (?,?,?,?,?,?,'in_progress',0)
		ON CONFLICT(id) DO UPDATE SET
			deck=excluded.deck, daily=excluded.daily, started_at=excluded.started_at,
			finished_at=NULL, status='in_progress', mistakes=0`,
		gameID, userID, anonID, deck, daily, startedAt.UTC().Format(time.RFC3339))
	return err
}

// FinishGame marks the round finished and, for signed-in owners, updates
// games played, wins and streaks in the same transaction. A row that is
// already finished is left alone so a result is never counted twice.
func (r *Repo) FinishGame(ctx context.Context, o Owner, gameID, status string, mistakes int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	where, arg := o.clause()
	res, err := tx.ExecContext(ctx, `
		UPDATE games SET status=?, mistakes=?, finished_at=?
		WHERE id=? AND status='in_progress' AND `+where,
		status, mistakes, r.clock.Now().UTC().Format(time.RFC3339), gameID, arg)
	if err != nil {
		return fmt.Errorf("finish game: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if o.UserID != "" {
		if err := bumpStats(ctx, tx, o.UserID, status == "won"); err != nil {
			return fmt.Errorf("bump stats: %w", err)
		}
	}
	return tx.Commit()
}

// bumpStats increments games played and updates wins and streaks.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak, best int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak, best_streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak, &best); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	if streak > best {
		best = streak
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=?, best_streak=? WHERE id=?`,
		gp, wins, streak, best, userID)
	return err
}

// RecentGames lists a user's latest games, newest first.
func (r *Repo) RecentGames(ctx context.Context, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deck, daily, status, mistakes, started_at, COALESCE(finished_at,'')
		FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var g GameRow
		if err := rows.Scan(&g.ID, &g.Deck, &g.Daily, &g.Status, &g.Mistakes, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ClaimAnonGames transfers anonymous games to a user account after auth.
func (r *Repo) ClaimAnonGames(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}
