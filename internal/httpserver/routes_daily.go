// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
//   - POST /daily/new         → start (or resume) today's round
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=)
//
// Play goes through the regular /game/{id} routes; the session carries its
// date so the finish hook records a daily result. Each player gets one
// result per day (enforced by the daily_results unique key); a round in
// progress is resumed rather than restarted.

package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/randutil"
	"github.com/robalobadob/connections/internal/store"
)

func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.handleDailyNew)
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

// dailyNewRes is returned by /daily/new.
type dailyNewRes struct {
	GameID   string         `json:"gameId"`
	Date     string         `json:"date"`
	Deck     string         `json:"deck,omitempty"`
	Played   bool           `json:"played"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

// handleDailyNew returns today's session for the player.
//   - A stored result for today → Played=true, no session.
//   - A live session from earlier today → resumed.
//   - Otherwise a new session is built from the date's puzzle.
func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	o := s.owner(w, r)
	pid := playerID(o)

	p, err := daily.Pick(s.clock.Now(), s.cfg.DailySalt, s.decks.Names())
	if err != nil {
		roundError(w, err)
		return
	}

	played, err := s.daily.AlreadyPlayed(r.Context(), pid, p.Date)
	if err != nil {
		log.Error().Err(err).Msg("daily lookup")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: p.Date, Deck: p.Deck, Played: true})
		return
	}

	key := pid + "|" + p.Date
	s.dailyMu.Lock()
	defer s.dailyMu.Unlock()

	if id, ok := s.dailySessions[key]; ok {
		snap, err := s.store.Snapshot(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, dailyNewRes{GameID: id, Date: p.Date, Deck: p.Deck, Snapshot: &snap})
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.storeError(w, err)
			return
		}
		delete(s.dailySessions, key)
	}

	cats, err := p.Round(s.decks)
	if err != nil {
		roundError(w, err)
		return
	}
	now := s.clock.Now()
	sess, err := game.New(cats,
		game.WithRand(randutil.New(p.Seed)),
		game.WithDeck(p.Deck),
		game.WithDaily(p.Date),
		game.WithStartedAt(now),
	)
	if err != nil {
		roundError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save daily game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	s.dailySessions[key] = sess.ID
	if err := s.users.StartGame(r.Context(), o, sess.ID, p.Deck, p.Date, now); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert daily game row")
	}

	snap := sess.Snapshot()
	writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.ID, Date: p.Date, Deck: p.Deck, Snapshot: &snap})
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.clock.Now())
	}
	rows, err := s.daily.Leaderboard(r.Context(), date, 20)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
