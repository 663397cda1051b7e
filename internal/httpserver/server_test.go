package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/connections/internal/auth"
	"github.com/robalobadob/connections/internal/config"
	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/db"
	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/store"
	"github.com/robalobadob/connections/internal/users"
)

// tinyDeck holds exactly one round, so every board is the same 16 items.
const tinyDeck = `A,a1,a2,a3,a4
B,b1,b2,b3,b4
C,c1,c2,c3,c4
D,d1,d2,d3,d4
`

type testEnv struct {
	srv   *Server
	clock *quartz.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	d, err := decks.Parse("tiny", strings.NewReader(tinyDeck))
	require.NoError(t, err)

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	cfg := config.Config{
		DefaultDeck:  "tiny",
		DailySalt:    "salt",
		JWTSecret:    "secret",
		JWTExpiry:    time.Hour,
		CookieName:   "connections_token",
		ClientOrigin: "http://localhost:5173",
	}
	sqlDB := db.OpenTest(t)
	repo := users.NewRepo(sqlDB, clock)
	srv := New(Deps{
		Store: store.NewMemoryStore(),
		Decks: decks.NewLibrary(d),
		Users: repo,
		Auth: auth.NewManager(auth.Config{
			Secret:     cfg.JWTSecret,
			Expiry:     cfg.JWTExpiry,
			CookieName: cfg.CookieName,
		}, repo, clock),
		Daily:  daily.NewStore(sqlDB, clock),
		Config: cfg,
		Clock:  clock,
	})
	return &testEnv{srv: srv, clock: clock}
}

// client carries cookies between requests like a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.env.srv.Handler().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (c *client) newGame(t *testing.T, body any) game.Snapshot {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/game/new", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[game.Snapshot](t, rec)
}

// pick toggles the tiles holding items and returns the latest snapshot.
func (c *client) pick(t *testing.T, snap game.Snapshot, items ...string) game.Snapshot {
	t.Helper()
	for _, it := range items {
		id := -1
		for _, tv := range snap.Tiles {
			if tv.Item == it {
				id = tv.ID
			}
		}
		require.NotEqual(t, -1, id, "item %s not on board", it)
		rec := c.do(t, http.MethodPost, "/game/"+snap.ID+"/toggle", map[string]int{"tile": id})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		snap = decode[game.Snapshot](t, rec)
	}
	return snap
}

func (c *client) submit(t *testing.T, id string) submitRes {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/game/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[submitRes](t, rec)
}

func (c *client) solveAll(t *testing.T, snap game.Snapshot) submitRes {
	t.Helper()
	var res submitRes
	for _, p := range []string{"a", "b", "c", "d"} {
		snap = c.pick(t, snap, p+"1", p+"2", p+"3", p+"4")
		res = c.submit(t, snap.ID)
		require.Equal(t, game.ResultMatch, res.Result)
		snap = res.Snapshot
	}
	return res
}

func TestDiagnostics(t *testing.T) {
	c := newTestEnv(t).client()

	rec := c.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = c.do(t, http.MethodGet, "/decks", nil)
	assert.JSONEq(t, `{"default":"tiny","decks":[{"name":"tiny","categories":4}]}`, rec.Body.String())

	rec = c.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(t, http.MethodOptions, "/game/new", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNewGameAndPlay(t *testing.T) {
	c := newTestEnv(t).client()
	snap := c.newGame(t, nil)

	assert.Len(t, snap.Tiles, game.TileCount)
	assert.Equal(t, "tiny", snap.Deck)
	assert.Equal(t, game.StatusInProgress, snap.Status)
	assert.Equal(t, game.MistakeBudget, snap.MistakesRemaining)
	assert.Contains(t, c.cookies, auth.AnonCookieName)

	// wrong selection size is a 400 and changes nothing
	rec := c.do(t, http.MethodPost, "/game/"+snap.ID+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_submission","message":"Please select exactly 4"}`, rec.Body.String())

	snap = c.pick(t, snap, "a1", "a2", "a3", "b1")
	res := c.submit(t, snap.ID)
	assert.Equal(t, game.ResultNearMiss, res.Result)
	assert.Equal(t, "One Away...", res.Message)
	assert.Len(t, res.Snapshot.Selected(), 4)
	assert.Equal(t, game.MistakeBudget, res.Snapshot.MistakesRemaining)

	snap = c.pick(t, res.Snapshot, "b1", "a4")
	res = c.submit(t, snap.ID)
	assert.Equal(t, game.ResultMatch, res.Result)
	assert.Equal(t, "A", res.Category)
	require.Len(t, res.Snapshot.Revealed, 1)
	assert.Equal(t, game.Palette[0], res.Snapshot.Revealed[0].Color)
	for _, tv := range res.Snapshot.Tiles[:4] {
		assert.True(t, tv.Solved)
	}

	rec = c.do(t, http.MethodPost, "/game/"+snap.ID+"/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(t, http.MethodPost, "/game/"+snap.ID+"/shuffle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shuffled := decode[game.Snapshot](t, rec)
	for _, tv := range shuffled.Tiles[:4] {
		assert.True(t, tv.Solved, "solved tiles keep the leading band")
	}

	rec = c.do(t, http.MethodGet, "/game/"+snap.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[game.Snapshot](t, rec).SolvedCount)
}

func TestGameErrors(t *testing.T) {
	c := newTestEnv(t).client()

	rec := c.do(t, http.MethodGet, "/game/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())

	rec = c.do(t, http.MethodPost, "/game/missing/toggle", map[string]int{"tile": 0})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(t, http.MethodPost, "/game/new", map[string]string{"deck": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"unknown_deck"}`, rec.Body.String())

	snap := c.newGame(t, nil)
	rec = c.do(t, http.MethodPost, "/game/"+snap.ID+"/toggle", map[string]string{"tile": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(t, http.MethodPost, "/game/"+snap.ID+"/toggle", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// out-of-range toggle is a no-op
	rec = c.do(t, http.MethodPost, "/game/"+snap.ID+"/toggle", map[string]int{"tile": 99})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[game.Snapshot](t, rec).Selected())
}

func TestSeedReplaysBoard(t *testing.T) {
	c := newTestEnv(t).client()
	seed := int64(42)
	items := func(s game.Snapshot) []string {
		var out []string
		for _, tv := range s.Tiles {
			out = append(out, tv.Item)
		}
		return out
	}
	a := c.newGame(t, map[string]any{"seed": seed})
	b := c.newGame(t, map[string]any{"seed": seed})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, items(a), items(b))
}

func TestLoadReplacesRound(t *testing.T) {
	c := newTestEnv(t).client()
	snap := c.newGame(t, nil)
	snap = c.pick(t, snap, "a1", "a2", "a3", "a4")
	res := c.submit(t, snap.ID)
	require.Equal(t, 1, res.Snapshot.SolvedCount)

	rec := c.do(t, http.MethodPost, "/game/"+snap.ID+"/load", map[string]any{"seed": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[game.Snapshot](t, rec)
	assert.Equal(t, snap.ID, loaded.ID)
	assert.Zero(t, loaded.SolvedCount)
	assert.Empty(t, loaded.Revealed)
	assert.Empty(t, loaded.Message)
	assert.Equal(t, game.MistakeBudget, loaded.MistakesRemaining)
}

func TestLoadWithSeedMatchesNewGame(t *testing.T) {
	c := newTestEnv(t).client()
	fresh := c.newGame(t, map[string]any{"seed": 7})

	other := c.newGame(t, nil)
	rec := c.do(t, http.MethodPost, "/game/"+other.ID+"/load", map[string]any{"seed": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[game.Snapshot](t, rec)
	assert.Equal(t, other.ID, loaded.ID)
	assert.Equal(t, fresh.Tiles, loaded.Tiles)

	// later shuffles follow the seed too
	rec = c.do(t, http.MethodPost, "/game/"+fresh.ID+"/shuffle", nil)
	a := decode[game.Snapshot](t, rec)
	rec = c.do(t, http.MethodPost, "/game/"+other.ID+"/shuffle", nil)
	b := decode[game.Snapshot](t, rec)
	assert.Equal(t, a.Tiles, b.Tiles)
}

func TestLossUpdatesStatsAndHistory(t *testing.T) {
	c := newTestEnv(t).client()

	rec := c.do(t, http.MethodPost, "/auth/signup", credentials{Username: "ada", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, c.cookies, "connections_token")

	snap := c.newGame(t, nil)
	var res submitRes
	for i := 0; i < game.MistakeBudget; i++ {
		snap = c.pick(t, snap, "a1", "a2", "b1", "b2")
		res = c.submit(t, snap.ID)
		assert.Equal(t, game.ResultMismatch, res.Result)
		snap = res.Snapshot
	}
	assert.Equal(t, game.StatusLost, res.Snapshot.Status)
	assert.Equal(t, game.CategoryCount, res.Snapshot.SolvedCount)
	assert.True(t, strings.HasPrefix(res.Message, "Game Over: You lost!\nCategories: "), res.Message)

	// further submissions are ignored and not counted again
	ignored := c.submit(t, snap.ID)
	assert.Equal(t, game.ResultIgnored, ignored.Result)

	rec = c.do(t, http.MethodGet, "/stats/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		GamesPlayed int `json:"gamesPlayed"`
		Wins        int `json:"wins"`
		Streak      int `json:"streak"`
	}](t, rec)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Zero(t, stats.Wins)
	assert.Zero(t, stats.Streak)

	rec = c.do(t, http.MethodGet, "/games/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]users.GameRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, snap.ID, rows[0].ID)
	assert.Equal(t, "lost", rows[0].Status)
	assert.Equal(t, 4, rows[0].Mistakes)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	rec := c.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(t, http.MethodPost, "/auth/signup", credentials{Username: "x", Password: "password1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// guest game before signup is claimed by the new account
	guest := c.newGame(t, nil)
	rec = c.do(t, http.MethodPost, "/auth/signup", credentials{Username: "grace", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grace", decode[auth.User](t, rec).Username)

	rec = c.do(t, http.MethodGet, "/games/mine", nil)
	rows := decode[[]users.GameRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, guest.ID, rows[0].ID)

	other := env.client()
	rec = other.do(t, http.MethodPost, "/auth/signup", credentials{Username: "GRACE", Password: "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = other.do(t, http.MethodPost, "/auth/login", credentials{Username: "grace", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = other.do(t, http.MethodPost, "/auth/login", credentials{Username: "grace", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = other.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, c.cookies, "connections_token")
	rec = c.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// tokens expire with the clock
	env.clock.Advance(2 * time.Hour)
	rec = other.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDailyFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	rec := c.do(t, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-03-01", first.Date)
	assert.False(t, first.Played)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, "2026-03-01", first.Snapshot.Daily)

	// same player, same day: the round is resumed
	rec = c.do(t, http.MethodPost, "/daily/new", nil)
	again := decode[dailyNewRes](t, rec)
	assert.Equal(t, first.GameID, again.GameID)

	// another player gets the same board in a different session
	other := env.client()
	rec = other.do(t, http.MethodPost, "/daily/new", nil)
	theirs := decode[dailyNewRes](t, rec)
	assert.NotEqual(t, first.GameID, theirs.GameID)
	assert.Equal(t, first.Snapshot.Tiles, theirs.Snapshot.Tiles)

	rec = c.do(t, http.MethodPost, "/game/"+first.GameID+"/load", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	env.clock.Advance(30 * time.Second)
	res := c.solveAll(t, *first.Snapshot)
	assert.Equal(t, game.StatusWon, res.Snapshot.Status)

	rec = c.do(t, http.MethodPost, "/daily/new", nil)
	done := decode[dailyNewRes](t, rec)
	assert.True(t, done.Played)
	assert.Empty(t, done.GameID)
	assert.Nil(t, done.Snapshot)

	rec = c.do(t, http.MethodGet, "/daily/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := c.cookies[auth.AnonCookieName]
	require.NotNil(t, anon)
	assert.NotContains(t, rec.Body.String(), anon.Value, "guest cookie must not be published")
	lb := decode[lbRes](t, rec)
	assert.Equal(t, "2026-03-01", lb.Date)
	require.Len(t, lb.Top, 1)
	assert.True(t, lb.Top[0].Won)
	assert.Equal(t, 0, lb.Top[0].Mistakes)
	assert.Equal(t, int64(30000), lb.Top[0].ElapsedMs)
	assert.Equal(t, "guest", lb.Top[0].Username)
	assert.Empty(t, lb.Top[0].UserID)

	rec = c.do(t, http.MethodGet, "/daily/leaderboard?date=2026-02-28", nil)
	assert.Empty(t, decode[lbRes](t, rec).Top)

	// next day brings a new round
	env.clock.Advance(24 * time.Hour)
	rec = c.do(t, http.MethodPost, "/daily/new", nil)
	next := decode[dailyNewRes](t, rec)
	assert.Equal(t, "2026-03-02", next.Date)
	assert.False(t, next.Played)
	assert.NotEqual(t, first.GameID, next.GameID)
}
