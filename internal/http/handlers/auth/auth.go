// Package auth contains the HTTP handlers that establish and end sessions:
// the landing page, staff registration, teacher login, parent lookup and
// logout.
//
// Every handler here is reachable without a session. They only ever change
// the session's claims through session.Session, and the web.Responder saves
// the result before redirecting.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/school-records/internal/http/web"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/types"
)

// Home handles GET /
// Logged-in users go straight to their dashboard; everyone else gets the
// login page.
func Home(rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())

		switch {
		case s.IsTeacher():
			rs.Redirect(w, r, "/teacher-dashboard")
		case s.IsParent():
			rs.Redirect(w, r, "/parent-dashboard")
		default:
			rs.Render(w, r, "login", nil)
		}
	}
}

// RegisterPage handles GET /register
func RegisterPage(rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs.Render(w, r, "register", nil)
	}
}

// Register handles POST /register
//
// Form fields: username, email (optional), password, role (optional, only
// "teacher" is accepted).
func Register(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := types.RegisterInput{
			Username: r.PostFormValue("username"),
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Role:     types.Role(r.PostFormValue("role")),
		}

		if _, err := svc.Register(r.Context(), in); err != nil {
			rs.Fail(w, r, err, "/register")
			return
		}

		rs.Notify(w, r, session.CategorySuccess, "Registration successful! Please log in.", "/")
	}
}

// Login handles POST /login
//
// When the teacher credentials are rejected but the form also carries a roll
// number and parent email, the request is handled as a parent lookup.
func Login(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	lookup := ParentLookup(svc, rs)

	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
		if err != nil {
			if errors.Is(err, records.ErrInvalidCredentials) &&
				r.PostFormValue("roll_no") != "" && r.PostFormValue("parent_email") != "" {
				lookup(w, r)
				return
			}
			rs.Fail(w, r, err, "/")
			return
		}

		s := session.FromContext(r.Context())
		s.LoginTeacher(user)
		slog.Info("teacher logged in", slog.Int64("user_id", user.ID))

		rs.Notify(w, r, session.CategorySuccess, "Teacher Login successful!", "/teacher-dashboard")
	}
}

// ParentLookup handles POST /parent-lookup
//
// Form fields: roll_no, parent_email. Both must match the same student.
func ParentLookup(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, err := svc.ParentLookup(r.Context(), r.PostFormValue("roll_no"), r.PostFormValue("parent_email"))
		if err != nil {
			rs.Fail(w, r, err, "/")
			return
		}

		s := session.FromContext(r.Context())
		s.LoginParent(student)
		slog.Info("parent lookup succeeded", slog.Int64("student_id", student.ID))

		rs.Notify(w, r, session.CategorySuccess,
			fmt.Sprintf("Welcome to the dashboard for %s!", student.Name), "/parent-dashboard")
	}
}

// Logout handles GET /logout
// Clearing is unconditional; notices queued before the redirect here
// survive it.
func Logout(rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())

		pending := s.PopNotices()
		s.Clear()
		s.Notices = pending

		rs.Notify(w, r, session.CategoryInfo, "Logged out successfully!", "/")
	}
}
