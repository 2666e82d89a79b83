package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"typerace/auth"
	"typerace/game"
	"typerace/ws"
)

type Server struct {
	router        *mux.Router
	handlers      *Handlers
	createLimiter *RateLimiter
	joinLimiter   *RateLimiter
}

func NewServer(sessions *auth.SessionManager, lobby *game.Lobby, engine *game.Engine, tracker *game.Tracker, wsManager *ws.Manager, limits Limits) *Server {
	server := &Server{
		router:        mux.NewRouter(),
		handlers:      NewHandlers(lobby, engine, tracker, wsManager),
		createLimiter: NewRateLimiter("create room", limits.CreatePerMinute),
		joinLimiter:   NewRateLimiter("join room", limits.JoinPerMinute),
	}

	server.setupRoutes(sessions)
	return server
}

func (s *Server) setupRoutes(sessions *auth.SessionManager) {
	s.router.Use(LoggingMiddleware)
	s.router.Use(SecurityHeadersMiddleware)

	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")

	// CSRF note: SameSite=Lax on the session cookie keeps cross-site POSTs
	// from carrying it, and a header identity cannot be forged cross-site.

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(SessionMiddleware(sessions))

	api.HandleFunc("/tiers", s.handlers.Tiers).Methods("GET")

	api.Handle("/rooms", s.createLimiter.Middleware(http.HandlerFunc(s.handlers.CreateRoom))).Methods("POST")
	api.HandleFunc("/rooms/{code}", s.handlers.GetRoom).Methods("GET")
	api.Handle("/rooms/{code}/join", s.joinLimiter.Middleware(http.HandlerFunc(s.handlers.JoinRoom))).Methods("POST")

	api.HandleFunc("/race/{roomId}", s.handlers.Snapshot).Methods("GET")
	api.HandleFunc("/race/{roomId}/players", s.handlers.ListPlayers).Methods("GET")
	api.HandleFunc("/race/{roomId}/progress", s.handlers.GetProgress).Methods("GET")
	api.HandleFunc("/race/{roomId}/standings", s.handlers.Standings).Methods("GET")

	api.HandleFunc("/race/{roomId}/start", s.handlers.StartGame).Methods("POST")
	api.HandleFunc("/race/{roomId}/advance", s.handlers.AdvanceGame).Methods("POST")
	api.HandleFunc("/race/{roomId}/finish", s.handlers.FinishGame).Methods("POST")
	api.HandleFunc("/race/{roomId}/restart", s.handlers.RestartGame).Methods("POST")
	api.HandleFunc("/race/{roomId}/leave", s.handlers.LeaveRoom).Methods("POST")
	api.HandleFunc("/race/{roomId}/progress", s.handlers.UpdateProgress).Methods("POST")
	api.HandleFunc("/race/{roomId}/type", s.handlers.SubmitInput).Methods("POST")

	api.HandleFunc("/players/{playerId}/finish", s.handlers.MarkPlayerFinished).Methods("POST")

	wsRouter := s.router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(SessionMiddleware(sessions))
	wsRouter.HandleFunc("/race/{roomId}", s.handlers.HandleWebSocket)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Close stops the background work of the rate limiters.
func (s *Server) Close() {
	s.createLimiter.Stop()
	s.joinLimiter.Stop()
}

// Handler wraps the router in CORS handling, which must also see preflight
// requests that match no route.
func (s *Server) Handler() http.Handler {
	return CORSMiddleware(s.router)
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
