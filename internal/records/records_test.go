package records

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aanand-mishra/school-records/internal/config"
	"github.com/aanand-mishra/school-records/internal/notify"
	"github.com/aanand-mishra/school-records/internal/storage/sqlite"
	"github.com/aanand-mishra/school-records/internal/types"

	"golang.org/x/crypto/bcrypt"
)

// recorder is a notify.Notifier that keeps everything it is asked to send.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recorder) notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

// find returns the recorded notifications of one event type. Dispatched
// notifications finish in no particular order.
func (r *recorder) find(event notify.EventType) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.notifications() {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	svc        *Service
	rec        *recorder
	dispatcher *notify.Dispatcher
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(&config.Config{StoragePath: filepath.Join(t.TempDir(), "records.db")})
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		rec:   &recorder{},
		clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.dispatcher = notify.NewDispatcher(f.rec, time.Second, log)
	f.svc = New(store, f.dispatcher,
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return f.clock }),
	)
	return f
}

func studentInput(rollNo, name, email string) types.StudentInput {
	return types.StudentInput{
		RollNo: rollNo,
		Student: types.Student{
			Name:        name,
			Standard:    "7B",
			Remarks:     "Good",
			ParentEmail: email,
		},
	}
}

func mustCreate(t *testing.T, svc *Service, in types.StudentInput) types.Student {
	t.Helper()
	st, err := svc.CreateStudent(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateStudent(%s) error = %v", in.RollNo, err)
	}
	return st
}

func TestEndToEndTeacherAndParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, types.RegisterInput{Username: "ms_lee", Password: "pw1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := f.svc.Login(ctx, "ms_lee", "pw1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Role != types.RoleTeacher {
		t.Errorf("Login() role = %q, want teacher", user.Role)
	}

	st := mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))

	if _, err := f.svc.AddComplaint(ctx, types.ComplaintInput{
		RollNo: "101", Title: "Late", Description: "Late thrice",
	}, user.Username); err != nil {
		t.Fatalf("AddComplaint() error = %v", err)
	}

	found, err := f.svc.ParentLookup(ctx, "101", "p@x.com")
	if err != nil {
		t.Fatalf("ParentLookup() error = %v", err)
	}
	if found.ID != st.ID {
		t.Errorf("ParentLookup() id = %d, want %d", found.ID, st.ID)
	}

	_, complaints, err := f.svc.ListComplaintsForStudent(ctx, found.RollNo)
	if err != nil {
		t.Fatalf("ListComplaintsForStudent() error = %v", err)
	}
	if len(complaints) != 1 {
		t.Fatalf("got %d complaints, want 1", len(complaints))
	}
	c := complaints[0]
	if c.Title != "Late" || c.Status != types.ComplaintStatusPending || c.TeacherUsername != "ms_lee" {
		t.Errorf("complaint = %+v", c)
	}

	f.dispatcher.Wait()
	if n := len(f.rec.find(notify.EventUpdate)); n != 1 {
		t.Errorf("got %d Update notifications, want 1", n)
	}
	if n := len(f.rec.find(notify.EventComplaint)); n != 1 {
		t.Errorf("got %d Complaint notifications, want 1", n)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		input   types.RegisterInput
		wantErr error
	}{
		{name: "defaults role", input: types.RegisterInput{Username: "a", Password: "pw"}},
		{name: "explicit teacher", input: types.RegisterInput{Username: "b", Password: "pw", Role: types.RoleTeacher}},
		{name: "parent role rejected", input: types.RegisterInput{Username: "c", Password: "pw", Role: types.RoleParent}, wantErr: ErrInvalidInput},
		{name: "missing password", input: types.RegisterInput{Username: "d"}, wantErr: ErrInvalidInput},
		{name: "blank username", input: types.RegisterInput{Username: "   ", Password: "pw"}, wantErr: ErrInvalidInput},
		{name: "bad email", input: types.RegisterInput{Username: "e", Password: "pw", Email: "nope"}, wantErr: ErrInvalidInput},
		{name: "72 ascii bytes", input: types.RegisterInput{Username: "f", Password: strings.Repeat("a", 72)}},
		{name: "72 runes over 72 bytes", input: types.RegisterInput{Username: "g", Password: strings.Repeat("é", 72)}, wantErr: ErrInvalidInput},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.svc.Register(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user.Role != types.RoleTeacher {
				t.Errorf("role = %q, want teacher", user.Role)
			}
			if user.Password == tt.input.Password {
				t.Error("password stored in plaintext")
			}
		})
	}
}

func TestRegisterDuplicateKeepsFirstCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, types.RegisterInput{Username: "ms_lee", Email: "lee@school.org", Password: "pw1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := f.svc.Register(ctx, types.RegisterInput{Username: "ms_lee", Password: "pw2"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("second Register() error = %v, want ErrDuplicateUsername", err)
	}
	if msg, _ := UserMessage(err); msg != "Username already exists!" {
		t.Errorf("message = %q", msg)
	}

	_, err = f.svc.Register(ctx, types.RegisterInput{Username: "mr_kim", Email: "lee@school.org", Password: "pw3"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Register() with taken email error = %v, want ErrDuplicateEmail", err)
	}

	if _, err := f.svc.Login(ctx, "ms_lee", "pw1"); err != nil {
		t.Errorf("Login() with first password error = %v", err)
	}
	if _, err := f.svc.Login(ctx, "ms_lee", "pw2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with second password error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), "ghost", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestParentLookup(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))
	mustCreate(t, f.svc, studentInput("102", "Ravi", "q@x.com"))

	tests := []struct {
		name    string
		rollNo  string
		email   string
		wantErr bool
		wantMsg string
	}{
		{name: "match", rollNo: "101", email: "p@x.com"},
		{name: "surrounding spaces", rollNo: " 102 ", email: " q@x.com "},
		{name: "other student's email", rollNo: "101", email: "q@x.com", wantErr: true,
			wantMsg: "Invalid Enrollment Number or Email. Please check your details."},
		{name: "unknown roll", rollNo: "999", email: "p@x.com", wantErr: true,
			wantMsg: "Invalid Enrollment Number or Email. Please check your details."},
		{name: "email case differs", rollNo: "101", email: "P@x.com", wantErr: true,
			wantMsg: "Invalid Enrollment Number or Email. Please check your details."},
		{name: "empty roll", rollNo: "", email: "p@x.com", wantErr: true,
			wantMsg: "Please provide both Enrollment Number and Parent Email."},
		{name: "empty email", rollNo: "101", email: "", wantErr: true,
			wantMsg: "Please provide both Enrollment Number and Parent Email."},
		{name: "non-numeric roll", rollNo: "abc", email: "p@x.com", wantErr: true,
			wantMsg: "Invalid Enrollment Number format."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ParentLookup(context.Background(), tt.rollNo, tt.email)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ParentLookup() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidLookup) {
				t.Fatalf("ParentLookup() error = %v, want ErrInvalidLookup", err)
			}
			if msg, _ := UserMessage(err); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestCreateStudentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))

	tests := []struct {
		name    string
		input   types.StudentInput
		wantErr error
	}{
		{name: "non-numeric roll", input: studentInput("1o1", "Ravi", ""), wantErr: ErrInvalidInput},
		{name: "missing name", input: studentInput("102", "", ""), wantErr: ErrInvalidInput},
		{name: "bad parent email", input: studentInput("102", "Ravi", "not-an-email"), wantErr: ErrInvalidInput},
		{name: "name too long", input: studentInput("102", strings.Repeat("x", 101), ""), wantErr: ErrInvalidInput},
		{name: "duplicate roll", input: studentInput("101", "Ravi", ""), wantErr: ErrDuplicateRollNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateStudent(ctx, tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateStudent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	students, err := f.svc.ListStudents(ctx)
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(students) != 1 || students[0].Name != "Asha" {
		t.Errorf("store changed by rejected creates: %+v", students)
	}
}

func TestUpdateStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asha := mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))
	mustCreate(t, f.svc, studentInput("102", "Ravi", "q@x.com"))

	in := studentInput("102", "Asha", "p@x.com")
	if _, err := f.svc.UpdateStudent(ctx, asha.ID, in); !errors.Is(err, ErrDuplicateRollNo) {
		t.Fatalf("UpdateStudent() to taken roll error = %v, want ErrDuplicateRollNo", err)
	}

	in = studentInput("101", "Asha", "p@x.com")
	in.Remarks = "Excellent"
	updated, err := f.svc.UpdateStudent(ctx, asha.ID, in)
	if err != nil {
		t.Fatalf("UpdateStudent() keeping own roll error = %v", err)
	}
	if updated.Remarks != "Excellent" {
		t.Errorf("remarks = %q, want Excellent", updated.Remarks)
	}

	if _, err := f.svc.UpdateStudent(ctx, 9999, in); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStudent() unknown id error = %v, want ErrNotFound", err)
	}

	f.dispatcher.Wait()
	var found bool
	for _, n := range f.rec.notifications() {
		if n.Details == "Remarks updated: 'Good' -> 'Excellent'" {
			found = true
		}
	}
	if !found {
		t.Errorf("no remarks notification in %+v", f.rec.notifications())
	}
}

func TestDeleteStudentOrphansComplaints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))

	if _, err := f.svc.AddComplaint(ctx, types.ComplaintInput{RollNo: "101", Title: "Late", Description: "Late thrice"}, "ms_lee"); err != nil {
		t.Fatalf("AddComplaint() error = %v", err)
	}

	deleted, err := f.svc.DeleteStudent(ctx, st.ID)
	if err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	if deleted.Name != "Asha" {
		t.Errorf("deleted = %+v", deleted)
	}

	if _, err := f.svc.GetStudent(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStudent() after delete error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.DeleteStudent(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteStudent() error = %v, want ErrNotFound", err)
	}
	if _, _, err := f.svc.ListComplaintsForStudent(ctx, 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListComplaintsForStudent() after delete error = %v, want ErrNotFound", err)
	}

	all, err := f.svc.ListComplaints(ctx)
	if err != nil {
		t.Fatalf("ListComplaints() error = %v", err)
	}
	if len(all) != 1 || all[0].StudentRollNo != 101 {
		t.Errorf("orphaned complaint missing from ListComplaints: %+v", all)
	}

	f.dispatcher.Wait()
	deletes := f.rec.find(notify.EventDelete)
	if len(deletes) != 1 || deletes[0].RecipientEmail != "p@x.com" || deletes[0].SubjectName != "Asha" {
		t.Errorf("delete notifications = %+v", deletes)
	}
}

func TestAddComplaint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))

	tests := []struct {
		name    string
		input   types.ComplaintInput
		wantErr error
		wantMsg string
	}{
		{name: "unknown student", input: types.ComplaintInput{RollNo: "555", Title: "t", Description: "d"},
			wantErr: ErrNotFound, wantMsg: "Error: Student with Roll No. 555 not found."},
		{name: "non-numeric roll", input: types.ComplaintInput{RollNo: "x", Title: "t", Description: "d"},
			wantErr: ErrInvalidInput},
		{name: "empty title", input: types.ComplaintInput{RollNo: "101", Description: "d"},
			wantErr: ErrInvalidInput},
		{name: "empty description", input: types.ComplaintInput{RollNo: "101", Title: "t"},
			wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddComplaint(ctx, tt.input, "ms_lee")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddComplaint() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				if msg, _ := UserMessage(err); msg != tt.wantMsg {
					t.Errorf("message = %q, want %q", msg, tt.wantMsg)
				}
			}
		})
	}

	c, err := f.svc.AddComplaint(ctx, types.ComplaintInput{RollNo: "101", Title: "Late", Description: "Late thrice"}, "")
	if err != nil {
		t.Fatalf("AddComplaint() error = %v", err)
	}
	if c.TeacherUsername != "Unknown Teacher" {
		t.Errorf("filer = %q, want Unknown Teacher", c.TeacherUsername)
	}
	if !c.DateFiled.Equal(f.clock) {
		t.Errorf("date filed = %v, want %v", c.DateFiled, f.clock)
	}

	f.dispatcher.Wait()
	complaints := f.rec.find(notify.EventComplaint)
	want := "Filer: Unknown Teacher\nTitle: Late\nDescription:\nLate thrice"
	if len(complaints) != 1 || complaints[0].Details != want {
		t.Errorf("complaint notifications = %+v", complaints)
	}
}

func TestComplaintsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))

	base := f.clock
	for i, title := range []string{"t1", "t2", "t3"} {
		f.clock = base.Add(time.Duration(i) * time.Hour)
		if _, err := f.svc.AddComplaint(ctx, types.ComplaintInput{RollNo: "101", Title: title, Description: "d"}, "ms_lee"); err != nil {
			t.Fatalf("AddComplaint(%s) error = %v", title, err)
		}
	}

	_, complaints, err := f.svc.ListComplaintsForStudent(ctx, 101)
	if err != nil {
		t.Fatalf("ListComplaintsForStudent() error = %v", err)
	}

	var got []string
	for _, c := range complaints {
		got = append(got, c.Title)
	}
	if strings.Join(got, ",") != "t3,t2,t1" {
		t.Errorf("order = %v, want [t3 t2 t1]", got)
	}
}

func TestFailingNotifierDoesNotFailOperations(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("smtp down")
	ctx := context.Background()

	st, err := f.svc.CreateStudent(ctx, studentInput("101", "Asha", "p@x.com"))
	if err != nil {
		t.Fatalf("CreateStudent() with failing notifier error = %v", err)
	}
	if _, err := f.svc.DeleteStudent(ctx, st.ID); err != nil {
		t.Fatalf("DeleteStudent() with failing notifier error = %v", err)
	}
	f.dispatcher.Wait()
}

func TestSendManualNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := mustCreate(t, f.svc, studentInput("101", "Asha", "p@x.com"))
	f.dispatcher.Wait()

	if _, err := f.svc.SendManualNotification(ctx, st.ID); err != nil {
		t.Fatalf("SendManualNotification() error = %v", err)
	}
	sent := f.rec.notifications()
	last := sent[len(sent)-1]
	if last.Details != "A teacher has manually triggered an email notification." {
		t.Errorf("manual notification = %+v", last)
	}

	f.rec.err = errors.New("smtp down")
	if _, err := f.svc.SendManualNotification(ctx, st.ID); !errors.Is(err, ErrNotificationFailed) {
		t.Errorf("SendManualNotification() with failing transport error = %v, want ErrNotificationFailed", err)
	}

	if _, err := f.svc.SendManualNotification(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("SendManualNotification() unknown id error = %v, want ErrNotFound", err)
	}
}

func TestListStudentRefs(t *testing.T) {
	f := newFixture(t)
	mustCreate(t, f.svc, studentInput("101", "Asha", ""))
	mustCreate(t, f.svc, studentInput("102", "Ravi", ""))

	refs, err := f.svc.ListStudentRefs(context.Background())
	if err != nil {
		t.Fatalf("ListStudentRefs() error = %v", err)
	}
	want := []types.StudentRef{{RollNo: 101, Name: "Asha"}, {RollNo: 102, Name: "Ravi"}}
	if len(refs) != len(want) {
		t.Fatalf("refs = %+v, want %+v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("refs[%d] = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestReusedRollNoStartsWithoutComplaints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := mustCreate(t, f.svc, studentInput("101", "Ana", "a@x.com"))

	if _, err := f.svc.AddComplaint(ctx, types.ComplaintInput{RollNo: "101", Title: "Private", Description: "about Ana"}, "ms_lee"); err != nil {
		t.Fatalf("AddComplaint() error = %v", err)
	}
	if _, err := f.svc.DeleteStudent(ctx, ana.ID); err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	mustCreate(t, f.svc, studentInput("101", "Ben", "b@x.com"))

	student, complaints, err := f.svc.ListComplaintsForStudent(ctx, 101)
	if err != nil {
		t.Fatalf("ListComplaintsForStudent() error = %v", err)
	}
	if student.Name != "Ben" || len(complaints) != 0 {
		t.Errorf("ListComplaintsForStudent(101) = %s, %+v; want Ben with no complaints", student.Name, complaints)
	}
	f.dispatcher.Wait()
}
