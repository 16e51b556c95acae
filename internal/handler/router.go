package handler

import (
	"fmt"
	"net/http"

	"notevault-server/internal/metrics"
	"notevault-server/internal/middleware"
	"notevault-server/internal/ratelimit"
	"notevault-server/internal/service"
	"notevault-server/internal/websocket"
	"notevault-server/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Dependencies is everything the HTTP surface needs. Limiter may be nil to
// disable rate limiting; Hub may be nil to disable /ws.
type Dependencies struct {
	Notes *service.NoteService
	Users *service.UserService
	Auth  *service.AuthService

	Hub         *websocket.Manager
	ReadBuffer  int
	WriteBuffer int

	Policy         *ratelimit.Policy
	Limiter        ratelimit.Limiter
	TrustedProxies *middleware.TrustedProxies
	Metrics        *metrics.Metrics

	APIVersion string
	Cookie     CookieOptions
	Health     map[string]HealthCheck
	Logger     *zap.SugaredLogger
}

// NewRouter builds the full route table. Versioned routes only match when the
// X-Version header equals deps.APIVersion.
func NewRouter(deps Dependencies) (http.Handler, error) {
	versionMatcher, err := middleware.VersionMatcher(deps.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid api version: %w", err)
	}

	logger := deps.Logger
	noteHandler := NewNoteHandler(deps.Notes, logger)
	userHandler := NewUserHandler(deps.Users, logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Cookie, logger)
	healthHandler := NewHealthHandler(deps.APIVersion, deps.Health, logger)
	requireSession := middleware.AuthMiddleware(deps.Auth, deps.Cookie.Name, logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/health", healthHandler.Check).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	api := r.MatcherFunc(versionMatcher).Subrouter()
	instrument(api, deps)

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("/create", userHandler.Create).Methods("POST")
	users.HandleFunc("/login", authHandler.Login).Methods("POST")
	users.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	users.HandleFunc("/{id}", userHandler.Update).Methods("PUT")
	users.HandleFunc("/{id}", userHandler.Delete).Methods("DELETE")

	notes := api.PathPrefix("/notes").Subrouter()
	notes.Use(requireSession)
	notes.HandleFunc("", noteHandler.List).Methods("GET")
	notes.HandleFunc("/search", noteHandler.Search).Methods("GET")
	notes.HandleFunc("/{id}", noteHandler.Get).Methods("GET")
	notes.HandleFunc("/{id}/history", noteHandler.History).Methods("GET")
	notes.HandleFunc("", noteHandler.Create).Methods("POST")
	notes.HandleFunc("/{id}/history", noteHandler.AppendHistory).Methods("POST")
	notes.HandleFunc("/{id}", noteHandler.Update).Methods("PUT")
	notes.HandleFunc("/{id}", noteHandler.Delete).Methods("DELETE")

	// Browsers cannot set headers on a websocket handshake, so /ws is not versioned.
	if deps.Hub != nil {
		wsHandler := NewWebSocketHandler(deps.Hub, deps.ReadBuffer, deps.WriteBuffer, logger)
		live := r.PathPrefix("/ws").Subrouter()
		instrument(live, deps)
		live.Use(requireSession)
		live.HandleFunc("", wsHandler.HandleConnection).Methods("GET")
	}

	return middleware.RecoveryMiddleware(logger)(middleware.LoggerMiddleware(logger)(r)), nil
}

func instrument(r *mux.Router, deps Dependencies) {
	if deps.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(deps.Metrics))
	}
	if deps.Policy != nil && deps.Limiter != nil {
		r.Use(middleware.RateLimitMiddleware(deps.Policy, deps.Limiter, deps.TrustedProxies, deps.Metrics, deps.Logger))
	}
}
