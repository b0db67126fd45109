// Package routes builds the application's HTTP handler: every route, its
// role guard, and the session and logging middleware around them.
package routes

import (
	"net/http"

	"github.com/aanand-mishra/school-records/internal/http/handlers/auth"
	"github.com/aanand-mishra/school-records/internal/http/handlers/complaint"
	"github.com/aanand-mishra/school-records/internal/http/handlers/parent"
	"github.com/aanand-mishra/school-records/internal/http/handlers/student"
	"github.com/aanand-mishra/school-records/internal/http/middleware"
	"github.com/aanand-mishra/school-records/internal/http/web"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/types"
)

// New returns the router for svc with sessions kept in store.
//
// Route table:
//
//	GET  /                     → login page, or the caller's dashboard
//	GET  /register             → registration page
//	POST /register             → create a staff account
//	POST /login                → teacher login (parent lookup fallback)
//	POST /parent-lookup        → parent login by roll number + email
//	GET  /logout               → clear the session
//	GET  /teacher-dashboard    → all students                [teacher]
//	GET  /add-student          → add form                    [teacher]
//	POST /add-student          → create a student            [teacher]
//	GET  /update-student/{id}  → update form                 [teacher]
//	POST /update-student/{id}  → update a student            [teacher]
//	GET  /delete-student/{id}  → delete a student            [teacher]
//	GET  /send-email/{id}      → re-send a notification      [teacher]
//	GET  /add-complaint        → complaint form              [teacher]
//	POST /add-complaint        → file a complaint            [teacher]
//	GET  /view-complaints      → all complaints              [teacher]
//	GET  /parent-dashboard     → the parent's student        [parent]
//	GET  /parent-complaints    → that student's complaints   [parent]
func New(svc *records.Service, store session.Store) http.Handler {
	rs := web.NewResponder(store)

	teacher := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireRole(rs, types.RoleTeacher, h)
	}
	parentOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireRole(rs, types.RoleParent, h)
	}

	router := http.NewServeMux()

	router.HandleFunc("GET /{$}", auth.Home(rs))
	router.HandleFunc("GET /register", auth.RegisterPage(rs))
	router.HandleFunc("POST /register", auth.Register(svc, rs))
	router.HandleFunc("POST /login", auth.Login(svc, rs))
	router.HandleFunc("POST /parent-lookup", auth.ParentLookup(svc, rs))
	router.HandleFunc("GET /logout", auth.Logout(rs))

	router.HandleFunc("GET /teacher-dashboard", teacher(student.Dashboard(svc, rs)))
	router.HandleFunc("GET /add-student", teacher(student.AddPage(rs)))
	router.HandleFunc("POST /add-student", teacher(student.New(svc, rs)))
	router.HandleFunc("GET /update-student/{id}", teacher(student.Edit(svc, rs)))
	router.HandleFunc("POST /update-student/{id}", teacher(student.Update(svc, rs)))
	router.HandleFunc("GET /delete-student/{id}", teacher(student.Delete(svc, rs)))
	router.HandleFunc("GET /send-email/{id}", teacher(student.SendEmail(svc, rs)))

	router.HandleFunc("GET /add-complaint", teacher(complaint.AddPage(svc, rs)))
	router.HandleFunc("POST /add-complaint", teacher(complaint.New(svc, rs)))
	router.HandleFunc("GET /view-complaints", teacher(complaint.List(svc, rs)))

	router.HandleFunc("GET /parent-dashboard", parentOnly(parent.Dashboard(svc, rs)))
	router.HandleFunc("GET /parent-complaints", parentOnly(parent.Complaints(svc, rs)))

	return middleware.Logging(middleware.Sessions(store)(router))
}
