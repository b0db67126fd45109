// Package web holds what every page handler needs to finish a request:
// render a view, redirect with a notice, or turn a service error into one.
//
// Each of these saves the request's session before anything is written, so
// claims and notices set by the handler always reach the client.
package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/utils/response"
)

// genericFailure is shown for errors that carry no user-facing message.
const genericFailure = "Something went wrong. Please try again."

// Responder finishes requests and persists their sessions in store.
type Responder struct {
	store session.Store
}

// NewResponder returns a Responder saving sessions to store.
func NewResponder(store session.Store) *Responder {
	return &Responder{store: store}
}

// Render writes view as a JSON page carrying the pending notices, which are
// consumed by this call.
func (rs *Responder) Render(w http.ResponseWriter, r *http.Request, view string, data any) {
	s := session.FromContext(r.Context())

	notices := s.PopNotices()
	if notices == nil {
		notices = []session.Notice{}
	}

	if !rs.save(w, r, s) {
		return
	}

	response.WriteJSON(w, http.StatusOK, response.Page{
		View:    view,
		Notices: notices,
		Data:    data,
	})
}

// Redirect sends a 302 to the given path.
func (rs *Responder) Redirect(w http.ResponseWriter, r *http.Request, to string) {
	if !rs.save(w, r, session.FromContext(r.Context())) {
		return
	}
	http.Redirect(w, r, to, http.StatusFound)
}

// Notify queues a notice and redirects.
func (rs *Responder) Notify(w http.ResponseWriter, r *http.Request, category, msg, to string) {
	session.FromContext(r.Context()).AddNotice(category, msg)
	rs.Redirect(w, r, to)
}

// Fail redirects to the given path with a danger notice describing err.
// Errors without a user-facing message are logged and reported generically.
func (rs *Responder) Fail(w http.ResponseWriter, r *http.Request, err error, to string) {
	msg, ok := records.UserMessage(err)
	if !ok {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		msg = genericFailure
	}
	rs.Notify(w, r, session.CategoryDanger, msg, to)
}

func (rs *Responder) save(w http.ResponseWriter, r *http.Request, s *session.Session) bool {
	if err := rs.store.Save(w, s); err != nil {
		slog.Error("failed to save session",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		response.WriteJSON(w, http.StatusInternalServerError,
			response.GeneralError("internal server error"))
		return false
	}
	return true
}

// StudentID parses the {id} path segment. An id that is not a number cannot
// name a student, so it is reported as not found.
func StudentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, &records.Error{Err: records.ErrNotFound, Message: "Student not found!"}
	}
	return id, nil
}
