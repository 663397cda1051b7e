package daily

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/connections/internal/db"
	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/game"
)

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	ts := time.Date(2026, 3, 2, 5, 0, 0, 0, loc) // 2026-03-01 19:00 UTC
	assert.Equal(t, "2026-03-01", DateKey(ts))
}

func TestPickDeterministic(t *testing.T) {
	names := []string{"animals", "entertainment", "food", "objects"}
	morning := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

	a, err := Pick(morning, "salt", names)
	require.NoError(t, err)
	b, err := Pick(evening, "salt", names)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "2026-03-01", a.Date)
	assert.Contains(t, names, a.Deck)
	assert.Equal(t, Seed(a.Date, "salt"), a.Seed)

	c, err := Pick(morning, "other", names)
	require.NoError(t, err)
	assert.NotEqual(t, a.Seed, c.Seed)

	_, err = Pick(morning, "salt", nil)
	assert.ErrorIs(t, err, game.ErrInvalidRoundData)
}

func TestPuzzleRoundReplays(t *testing.T) {
	lib, err := decks.Embedded()
	require.NoError(t, err)

	p, err := Pick(time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC), "salt", lib.Names())
	require.NoError(t, err)

	first, err := p.Round(lib)
	require.NoError(t, err)
	second, err := p.Round(lib)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NoError(t, game.ValidateCategories(first))

	_, err = Puzzle{Deck: "nope"}.Round(lib)
	assert.ErrorIs(t, err, decks.ErrUnknownDeck)
}

func TestStoreResultsAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sqlDB := db.OpenTest(t)
	for _, id := range []string{"slow", "fast", "clean"} {
		_, err := sqlDB.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
			id, id+"-name", "x", "2026-01-01T00:00:00Z")
		require.NoError(t, err)
	}
	s := NewStore(sqlDB, clock)
	date := s.Today()
	assert.Equal(t, "2026-03-01", date)

	played, err := s.AlreadyPlayed(ctx, "u1", date)
	require.NoError(t, err)
	assert.False(t, played)

	require.NoError(t, s.InsertResult(ctx, Result{UserID: "slow", Date: date, GameID: "g1", Won: true, Mistakes: 1, ElapsedMs: 90000}))
	clock.Advance(time.Second)
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "fast", Date: date, GameID: "g2", Won: true, Mistakes: 1, ElapsedMs: 30000}))
	clock.Advance(time.Second)
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "clean", Date: date, GameID: "g3", Won: true, Mistakes: 0, ElapsedMs: 120000}))
	clock.Advance(time.Second)
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "anon:secret-cookie", Date: date, GameID: "g4", Won: false, Mistakes: 4, ElapsedMs: 1000}))
	// second attempt for the same day is ignored
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "anon:secret-cookie", Date: date, GameID: "g5", Won: true, Mistakes: 0, ElapsedMs: 1}))
	require.NoError(t, s.InsertResult(ctx, Result{UserID: "other", Date: "2026-02-28", GameID: "g6", Won: true}))

	played, err = s.AlreadyPlayed(ctx, "anon:secret-cookie", date)
	require.NoError(t, err)
	assert.True(t, played)

	lb, err := s.Leaderboard(ctx, date, 0)
	require.NoError(t, err)
	require.Len(t, lb, 4)
	var ids, names []string
	for _, r := range lb {
		ids = append(ids, r.UserID)
		names = append(names, r.Username)
	}
	assert.Equal(t, []string{"clean", "fast", "slow", ""}, ids)
	assert.Equal(t, []string{"clean-name", "fast-name", "slow-name", "guest"}, names)
	assert.False(t, lb[3].Won)
	assert.Equal(t, 4, lb[3].Mistakes)

	top, err := s.Leaderboard(ctx, date, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}
