// Package student contains the teacher-only HTTP handlers for the Student
// resource.
//
// HANDLER PATTERN: closure factories.
// Each exported function receives its dependencies once, at route
// registration, and returns the http.HandlerFunc the router calls on every
// request:
//
//	router.HandleFunc("GET /teacher-dashboard", student.Dashboard(svc, rs))
//
// All routes here sit behind middleware.RequireRole(teacher).
package student

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

const dashboard = "/teacher-dashboard"

// formInput reads the student form. The roll number stays raw so the
// service can reject a non-numeric value.
func formInput(r *http.Request) types.StudentInput {
	return types.StudentInput{
		RollNo: r.PostFormValue("roll_no"),
		Student: types.Student{
			Name:                 r.PostFormValue("name"),
			Standard:             r.PostFormValue("standard"),
			Attendance:           r.PostFormValue("attendance"),
			HealthIssues:         r.PostFormValue("health_issues"),
			AssignmentsPending:   r.PostFormValue("assignments_pending"),
			AssignmentsSubmitted: r.PostFormValue("assignments_submitted"),
			Remarks:              r.PostFormValue("remarks"),
			ParentEmail:          r.PostFormValue("parent_email"),
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard handles GET /teacher-dashboard
// Renders every student, ordered by id.
// ─────────────────────────────────────────────────────────────────────────────
func Dashboard(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := svc.ListStudents(r.Context())
		if err != nil {
			rs.Fail(w, r, err, "/")
			return
		}

		rs.Render(w, r, "teacher_dashboard", map[string]any{"students": students})
	}
}

// AddPage handles GET /add-student
func AddPage(rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs.Render(w, r, "add_student", nil)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /add-student
//
// Form fields: roll_no, name, standard, attendance, health_issues,
// assignments_pending, assignments_submitted, remarks, parent_email.
//
// Invalid input or a taken roll number sends the teacher back to the form.
// ─────────────────────────────────────────────────────────────────────────────
func New(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.CreateStudent(r.Context(), formInput(r)); err != nil {
			rs.Fail(w, r, err, "/add-student")
			return
		}

		rs.Notify(w, r, session.CategorySuccess, "Student added successfully!", dashboard)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit handles GET /update-student/{id}
// Renders the update form filled with the current record.
// ─────────────────────────────────────────────────────────────────────────────
func Edit(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := web.StudentID(r)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		student, err := svc.GetStudent(r.Context(), id)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		rs.Render(w, r, "update_student", map[string]any{"student": student})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles POST /update-student/{id}
// Replaces every field of the student. A missing student goes back to the
// dashboard; a rejected form goes back to the form.
// ─────────────────────────────────────────────────────────────────────────────
func Update(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := web.StudentID(r)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		if _, err := svc.UpdateStudent(r.Context(), id, formInput(r)); err != nil {
			to := fmt.Sprintf("/update-student/%d", id)
			if errors.Is(err, records.ErrNotFound) {
				to = dashboard
			}
			rs.Fail(w, r, err, to)
			return
		}

		rs.Notify(w, r, session.CategorySuccess, "Student details updated!", dashboard)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles GET /delete-student/{id}
// Complaints filed against the student are kept.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := web.StudentID(r)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		deleted, err := svc.DeleteStudent(r.Context(), id)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		rs.Notify(w, r, session.CategorySuccess,
			fmt.Sprintf("Student %s deleted successfully!", deleted.Name), dashboard)
	}
}

// SendEmail handles GET /send-email/{id}
func SendEmail(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := web.StudentID(r)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		student, err := svc.SendManualNotification(r.Context(), id)
		if err != nil {
			rs.Fail(w, r, err, dashboard)
			return
		}

		slog.Info("manual notification sent", slog.Int64("id", student.ID))
		rs.Notify(w, r, session.CategoryInfo,
			fmt.Sprintf("Notification for %s sent.", student.Name), dashboard)
	}
}
