// Package complaint contains the teacher-only handlers for filing and
// listing complaints.
package complaint

import (
	"net/http"

	"github.com/aanand-mishra/school-records/internal/http/web"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/types"
)

// AddPage handles GET /add-complaint
// The form offers every student by roll number and name.
func AddPage(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refs, err := svc.ListStudentRefs(r.Context())
		if err != nil {
			rs.Fail(w, r, err, "/teacher-dashboard")
			return
		}

		rs.Render(w, r, "add_complaint", map[string]any{"students": refs})
	}
}

// New handles POST /add-complaint
//
// Form fields: roll_no, title, description. The complaint is filed in the
// name of the logged-in teacher.
func New(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := types.ComplaintInput{
			RollNo:      r.PostFormValue("roll_no"),
			Title:       r.PostFormValue("title"),
			Description: r.PostFormValue("description"),
		}
		filer := session.FromContext(r.Context()).Username

		if _, err := svc.AddComplaint(r.Context(), in, filer); err != nil {
			rs.Fail(w, r, err, "/add-complaint")
			return
		}

		rs.Notify(w, r, session.CategorySuccess, "Complaint filed successfully!", "/view-complaints")
	}
}

// List handles GET /view-complaints
// Complaints of deleted students are listed too.
func List(svc *records.Service, rs *web.Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		complaints, err := svc.ListComplaints(r.Context())
		if err != nil {
			rs.Fail(w, r, err, "/teacher-dashboard")
			return
		}

		rs.Render(w, r, "view_complaints", map[string]any{"complaints": complaints})
	}
}
