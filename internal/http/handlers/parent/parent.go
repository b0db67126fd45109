// Package parent contains the handlers a parent reaches after a successful
// lookup. Both show only the student bound to the session.
package parent

import (
	"errors"
	"net/http"

	"github.com/aanand-mishra/school-records/internal/http/web"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/types"
)

const recordGone = "Student record not found."

// sessionStudent loads the student bound to the parent session. When the
// record no longer exists the parent is logged out.
func sessionStudent(svc *records.Service, rs *web.Responder, w http.ResponseWriter, r *http.Request) (types.Student, bool) {
	s := session.FromContext(r.Context())

	student, err := svc.GetStudent(r.Context(), s.StudentID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			rs.Notify(w, r, session.CategoryDanger, recordGone, "/logout")
		} else {
			rs.Fail(w, r, err, "/")
		}
		return types.Student{}, false
	}
	return student, true
}

// Dashboard handles GET /parent-dashboard
func Dashboard(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, ok := sessionStudent(svc, rs, w, r)
		if !ok {
			return
		}

		rs.Render(w, r, "parent_dashboard", map[string]any{"students": []types.Student{student}})
	}
}

// Complaints handles GET /parent-complaints
// Complaints are looked up by the student's current roll number, so a
// renumbered student keeps its history.
func Complaints(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student, ok := sessionStudent(svc, rs, w, r)
		if !ok {
			return
		}

		student, complaints, err := svc.ListComplaintsForStudent(r.Context(), student.RollNo)
		if err != nil {
			if errors.Is(err, records.ErrNotFound) {
				rs.Notify(w, r, session.CategoryDanger, recordGone, "/logout")
				return
			}
			rs.Fail(w, r, err, "/")
			return
		}

		rs.Render(w, r, "parent_complaints", map[string]any{
			"student":    student,
			"complaints": complaints,
		})
	}
}
