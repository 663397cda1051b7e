// internal/httpserver/routes_game.go
//
// Game endpoints. Every mutation runs through store.Update so concurrent
// requests against one session apply one at a time; the handler replies
// with the resulting snapshot.
//
//   - POST /game/new           → start a round from a deck (optional seed)
//   - GET  /game/{id}          → current snapshot
//   - POST /game/{id}/toggle   → select / deselect a tile
//   - POST /game/{id}/shuffle  → permute unsolved tiles
//   - POST /game/{id}/clear    → deselect everything
//   - POST /game/{id}/submit   → evaluate the selection
//   - POST /game/{id}/load     → replace the round on the same session

package httpserver

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/randutil"
	"github.com/robalobadob/connections/internal/store"
	"github.com/robalobadob/connections/internal/users"
)

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetGame)
		r.Post("/toggle", s.handleToggle)
		r.Post("/shuffle", s.handleShuffle)
		r.Post("/clear", s.handleClear)
		r.Post("/submit", s.handleSubmit)
		r.Post("/load", s.handleLoad)
	})
}

// roundReq is the payload for /game/new and /game/{id}/load.
type roundReq struct {
	Deck string `json:"deck"`
	Seed *int64 `json:"seed"` // fixed seed replays the same board and shuffles (testing)
}

// draw picks a deck and a round for req. The returned rng also drives the
// session's shuffles when the session is new.
func (s *Server) draw(req roundReq) (deck string, cats []game.Category, rng *rand.Rand, err error) {
	deck = req.Deck
	if deck == "" {
		deck = s.cfg.DefaultDeck
	}
	d, err := s.decks.Get(deck)
	if err != nil {
		return "", nil, nil, err
	}
	if req.Seed != nil {
		rng = randutil.New(*req.Seed)
	} else {
		rng = randutil.Fresh()
	}
	cats, err = d.ChooseRound(rng)
	return deck, cats, rng, err
}

// roundError maps deck/round errors to responses.
func roundError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, decks.ErrUnknownDeck):
		writeError(w, http.StatusNotFound, "unknown_deck")
	case errors.Is(err, game.ErrInvalidRoundData):
		log.Error().Err(err).Msg("choose round")
		writeError(w, http.StatusUnprocessableEntity, "invalid_round")
	default:
		log.Error().Err(err).Msg("choose round")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

// handleNewGame creates a session and records an owner row for history.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req roundReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	deck, cats, rng, err := s.draw(req)
	if err != nil {
		roundError(w, err)
		return
	}
	now := s.clock.Now()
	sess, err := game.New(cats, game.WithRand(rng), game.WithDeck(deck), game.WithStartedAt(now))
	if err != nil {
		roundError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	if err := s.users.StartGame(r.Context(), s.owner(w, r), sess.ID, deck, "", now); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert game row")
	}
	log.Debug().Str("gameId", sess.ID).Str("deck", deck).Msg("new game")
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type toggleReq struct {
	Tile *int `json:"tile"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleReq
	if err := decodeBody(r, &req); err != nil || req.Tile == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.mutate(w, r, func(sess *game.Session) error {
		sess.ToggleSelection(*req.Tile)
		return nil
	})
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *game.Session) error {
		sess.Shuffle()
		return nil
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *game.Session) error {
		sess.ClearSelection()
		return nil
	})
}

// mutate applies fn and replies with the snapshot.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*game.Session) error) {
	snap, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	log.Error().Err(err).Msg("session update")
	writeError(w, http.StatusInternalServerError, "server_error")
}

// submitRes is the response payload for /game/{id}/submit.
type submitRes struct {
	Result   game.Result   `json:"result"`
	Category string        `json:"category,omitempty"`
	Message  string        `json:"message"`
	Snapshot game.Snapshot `json:"snapshot"`
}

// finished describes a round that ended on this request.
type finished struct {
	id        string
	daily     string
	status    game.Status
	mistakes  int
	startedAt time.Time
}

// handleSubmit evaluates the selection. When the submission ends the round,
// the history row is closed and, for daily rounds, the result is recorded.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var (
		out  game.Outcome
		done *finished
	)
	snap, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), func(sess *game.Session) error {
		wasOver := sess.Status().Terminal()
		o, err := sess.Submit()
		if err != nil {
			return err
		}
		out = o
		if !wasOver && sess.Status().Terminal() {
			done = &finished{
				id:        sess.ID,
				daily:     sess.Daily,
				status:    sess.Status(),
				mistakes:  sess.MistakesMade(),
				startedAt: sess.StartedAt,
			}
		}
		return nil
	})
	if errors.Is(err, game.ErrInvalidSubmission) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_submission",
			"message": "Please select exactly 4",
		})
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	if done != nil {
		s.recordFinish(r, s.owner(w, r), done)
	}
	writeJSON(w, http.StatusOK, submitRes{
		Result:   out.Result,
		Category: out.Category,
		Message:  out.Message,
		Snapshot: snap,
	})
}

// recordFinish persists a finished round. Failures are logged only.
func (s *Server) recordFinish(r *http.Request, o users.Owner, f *finished) {
	ctx := r.Context()
	if err := s.users.FinishGame(ctx, o, f.id, string(f.status), f.mistakes); err != nil {
		log.Warn().Err(err).Str("gameId", f.id).Msg("finish game")
	}
	if f.daily == "" {
		return
	}
	res := daily.Result{
		UserID:    playerID(o),
		Date:      f.daily,
		GameID:    f.id,
		Won:       f.status == game.StatusWon,
		Mistakes:  f.mistakes,
		ElapsedMs: s.clock.Since(f.startedAt).Milliseconds(),
	}
	if err := s.daily.InsertResult(ctx, res); err != nil {
		log.Warn().Err(err).Str("gameId", f.id).Msg("insert daily result")
	}
}

// handleLoad replaces the round on an existing session. Daily rounds are
// fixed for the day and cannot be reloaded.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req roundReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	id := chi.URLParam(r, "id")
	cur, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if cur.Daily != "" {
		writeError(w, http.StatusConflict, "daily_locked")
		return
	}
	deck, cats, rng, err := s.draw(req)
	if err != nil {
		roundError(w, err)
		return
	}
	now := s.clock.Now()
	snap, err := s.store.Update(r.Context(), id, func(sess *game.Session) error {
		sess.SetRand(rng)
		if err := sess.LoadRound(cats); err != nil {
			return err
		}
		sess.Deck = deck
		sess.StartedAt = now
		return nil
	})
	if errors.Is(err, game.ErrInvalidRoundData) {
		roundError(w, err)
		return
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.users.StartGame(r.Context(), s.owner(w, r), id, deck, "", now); err != nil {
		log.Warn().Err(err).Str("gameId", id).Msg("reset game row")
	}
	writeJSON(w, http.StatusOK, snap)
}
