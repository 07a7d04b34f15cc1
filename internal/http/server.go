// Package http serves the JSON API: auth, incomes, categories and reports.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/services"
	"github.com/ruktech/income-tracker/internal/storage"
)

// UserStore is the account surface the server needs from storage.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, string, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	SetWhatsAppNumber(ctx context.Context, userID int64, number string) error
}

// Deps bundles the collaborators the server routes to.
type Deps struct {
	Users     UserStore
	Incomes   *services.IncomeService
	Reports   *services.ReportService
	JWTSecret string
	JWTTTL    time.Duration
	Logger    *log.Logger
}

type Server struct {
	http.Server

	users     UserStore
	incomes   *services.IncomeService
	reports   *services.ReportService
	jwtSecret string
	jwtTTL    time.Duration
	logger    *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		users:     deps.Users,
		incomes:   deps.Incomes,
		reports:   deps.Reports,
		jwtSecret: deps.JWTSecret,
		jwtTTL:    deps.JWTTTL,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/auth/register", s.withLogging(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withLogging(s.handleLogin))

	mux.HandleFunc("GET /api/users/me", s.withLogging(s.withAuth(s.handleMe)))
	mux.HandleFunc("PUT /api/users/me/whatsapp", s.withLogging(s.withAuth(s.handleSetWhatsApp)))

	mux.HandleFunc("POST /api/incomes", s.withLogging(s.withAuth(s.handleCreateIncome)))
	mux.HandleFunc("GET /api/incomes", s.withLogging(s.withAuth(s.handleListIncomes)))
	mux.HandleFunc("GET /api/incomes/{id}", s.withLogging(s.withAuth(s.handleGetIncome)))
	mux.HandleFunc("PUT /api/incomes/{id}", s.withLogging(s.withAuth(s.handleUpdateIncome)))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.withLogging(s.withAuth(s.handleDeleteIncome)))

	mux.HandleFunc("POST /api/categories", s.withLogging(s.withAuth(s.handleCreateCategory)))
	mux.HandleFunc("GET /api/categories", s.withLogging(s.withAuth(s.handleListCategories)))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withLogging(s.withAuth(s.handleDeleteCategory)))

	mux.HandleFunc("GET /api/reports/summary", s.withLogging(s.withAuth(s.handleReportSummary)))

	return s
}

type ctxKey string

const actorKey ctxKey = "actor"

func actorFrom(ctx context.Context) (storage.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(storage.Actor)
	return actor, ok
}

// withLogging tags each request with an id and logs start and completion.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		ctx := log.IntoContext(r.Context(), s.logger.With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// withAuth requires a valid bearer token and puts the actor in the context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := ParseToken(s.jwtSecret, tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		actor := storage.Actor{
			UserID: claims.UserID,
			Role:   core.Role(claims.Role),
		}
		next(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
