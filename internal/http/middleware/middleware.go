// Package middleware wraps handlers with the per-request session, role
// guards and request logging.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/school-records/internal/http/web"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/types"
)

// Guard failure notices, one per protected role.
const (
	unauthorizedTeacher = "Unauthorized access!"
	unauthorizedParent  = "Please log in with your student's details."
)

// Sessions loads the request's session from store and places it in the
// request context. Handlers save it through web.Responder.
func Sessions(store session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := store.Load(r)
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}

// RequireRole lets the request through only when the session is fully
// authenticated in role. Anyone else is sent to "/" with a danger notice and
// next never runs.
func RequireRole(rs *web.Responder, role types.Role, next http.HandlerFunc) http.HandlerFunc {
	msg := unauthorizedTeacher
	if role == types.RoleParent {
		msg = unauthorizedParent
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).HasRole(role) {
			slog.Warn("unauthorized request",
				slog.String("path", r.URL.Path),
				slog.String("required_role", string(role)))
			rs.Fail(w, r, &records.Error{Err: records.ErrUnauthorized, Message: msg}, "/")
			return
		}
		next(w, r)
	}
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Logging logs method, path, status and duration of every request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}
