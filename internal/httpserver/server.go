// internal/httpserver/server.go
//
// HTTP server wiring for the Connections backend.
// Responsibilities:
//   - Router + middleware (request IDs, panic recovery, timeouts, JSON, CORS,
//     one zerolog line per request).
//   - Public endpoints: "/", "/health", "/decks".
//   - Game endpoints (optional auth): /game/new and /game/{id}/...
//   - Daily puzzle endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The websocket watch route sits outside the request timeout.
//   - History and daily-result writes are best effort: failures are logged
//     and never fail play.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/internal/auth"
	"github.com/robalobadob/connections/internal/config"
	"github.com/robalobadob/connections/internal/daily"
	"github.com/robalobadob/connections/internal/decks"
	"github.com/robalobadob/connections/internal/store"
	"github.com/robalobadob/connections/internal/users"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Store  store.Store
	Decks  *decks.Library
	Users  *users.Repo
	Auth   *auth.Manager
	Daily  *daily.Store
	Config config.Config
	Clock  quartz.Clock // nil uses wall time
}

// Server bundles the router with the game store and persistence layers.
type Server struct {
	r        *chi.Mux
	store    store.Store
	decks    *decks.Library
	users    *users.Repo
	auth     *auth.Manager
	daily    *daily.Store
	cfg      config.Config
	clock    quartz.Clock
	upgrader websocket.Upgrader

	dailyMu       sync.Mutex
	dailySessions map[string]string // "player|date" -> session ID
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:             chi.NewRouter(),
		store:         d.Store,
		decks:         d.Decks,
		users:         d.Users,
		auth:          d.Auth,
		daily:         d.Daily,
		cfg:           d.Config,
		clock:         d.Clock,
		dailySessions: make(map[string]string),
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	// long-lived stream; no request timeout
	s.r.With(s.auth.Optional()).Get("/game/{id}/watch", s.handleWatch)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "connections-go",
				"endpoints": []string{
					"/health", "/decks", "POST /game/new", "GET /game/{id}",
					"POST /game/{id}/{toggle|shuffle|clear|submit|load}",
					"GET /game/{id}/watch", "/daily/*", "/auth/*",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		r.Get("/decks", s.handleDecks)

		// Game endpoints: OPTIONAL AUTH (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Optional())
			s.mountGame(r)
			s.mountDaily(r)
		})

		s.mountAuth(r)
	})

	return s
}

// Handler exposes the router (used by main and tests).
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Str("requestId", chimw.GetReqID(r.Context())).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// checkOrigin accepts non-browser clients, the configured client origin,
// and same-host pages.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// decodeBody decodes an optional JSON body. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// owner identifies the player behind r: the signed-in user or the
// anonymous cookie (set on first use).
func (s *Server) owner(w http.ResponseWriter, r *http.Request) users.Owner {
	if me := auth.FromContext(r.Context()); me != nil {
		return users.Owner{UserID: me.ID}
	}
	return users.Owner{AnonID: s.auth.EnsureAnonID(w, r)}
}

// playerID is the owner's stable key for daily results.
func playerID(o users.Owner) string {
	if o.UserID != "" {
		return o.UserID
	}
	return "anon:" + o.AnonID
}

func (s *Server) handleDecks(w http.ResponseWriter, r *http.Request) {
	stats := s.decks.Stats()
	type deckInfo struct {
		Name       string `json:"name"`
		Categories int    `json:"categories"`
	}
	out := make([]deckInfo, 0, len(stats))
	for _, n := range s.decks.Names() {
		out = append(out, deckInfo{Name: n, Categories: stats[n]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"default": s.cfg.DefaultDeck, "decks": out})
}
