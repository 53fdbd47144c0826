// Package httpserver is the transport glue over the archive core: routing,
// authentication and response mapping live here, never storage logic.
package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gologme/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/JB-SelfCompany/mailvault/internal/archive"
	"github.com/JB-SelfCompany/mailvault/internal/config"
	"github.com/JB-SelfCompany/mailvault/internal/storage/sqlite3"
	"github.com/JB-SelfCompany/mailvault/internal/storage/types"
)

const Version = "0.1.0"

type Server struct {
	log     *log.Logger
	cfg     *config.Config
	archive *archive.Archive
	storage *sqlite3.SQLite3Storage
}

func NewServer(logger *log.Logger, cfg *config.Config, a *archive.Archive, storage *sqlite3.SQLite3Storage) *Server {
	return &Server{
		log:     logger,
		cfg:     cfg,
		archive: a,
		storage: storage,
	}
}

func (s *Server) ListenAndServe() error {
	s.log.Infof("listening on %s", s.cfg.ListenAddr)
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.basicAuth)
			r.Post("/messages/add", s.handleAddMessages)
			r.Get("/messages/{hash}/raw", s.handleMessageRaw)
			r.Get("/messages/{hash}/text", s.handleMessageText)
			r.Get("/messages/{hash}/html", s.handleMessageHTML)
			r.Get("/messages/{hash}/info", s.handleMessageInfo)
			r.Get("/search", s.handleSearch)
			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	})
}

type contextKey string

const userContextKey contextKey = "user"

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="mailvault"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, err := s.storage.Users.UserByUsername(username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusUnauthorized, "incorrect username or password")
				return
			}
			writeError(w, http.StatusInternalServerError, "relational database error")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			writeError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func requestUser(r *http.Request) *types.User {
	user, _ := r.Context().Value(userContextKey).(*types.User)
	return user
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeArchiveError maps the core error taxonomy onto HTTP statuses.
func writeArchiveError(w http.ResponseWriter, err error) {
	var notFound *archive.NotFoundError
	var parseErr *archive.ParseError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
