// Package records implements the school-records operations: staff
// registration and login, parent lookup, student record management and
// complaints.
//
// Every operation validates its typed input first, then performs its reads
// and writes as one storage call (one transaction). Parent notifications are
// handed to the notifier only after that call succeeded, and their outcome
// never changes the operation's result.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aanand-mishra/school-records/internal/auth"
	"github.com/aanand-mishra/school-records/internal/notify"
	"github.com/aanand-mishra/school-records/internal/storage"
	"github.com/aanand-mishra/school-records/internal/types"
)

// unknownFiler names the filer of a complaint whose teacher is unknown.
const unknownFiler = "Unknown Teacher"

// Notifier is the post-commit notification hook. *notify.Dispatcher
// satisfies it.
type Notifier interface {
	// Dispatch must return immediately and never fail.
	Dispatch(n notify.Notification)
	// Send delivers synchronously and reports the outcome.
	Send(ctx context.Context, n notify.Notification) error
}

// Service runs every school-records operation against a Storage and hands
// post-commit notifications to a Notifier.
type Service struct {
	store      storage.Storage
	notifier   Notifier
	bcryptCost int
	now        func() time.Time
}

// Option customises a Service built by New.
type Option func(*Service)

// WithClock replaces time.Now as the source of complaint filing times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost sets the bcrypt cost used when registering users.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// New returns a Service over store that notifies through notifier.
func New(store storage.Storage, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a staff account. Uniqueness of username and email is
// decided by the storage constraints, not by a prior lookup.
func (s *Service) Register(ctx context.Context, in types.RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = types.RoleTeacher
	}

	if err := checkStruct(in); err != nil {
		return types.User{}, err
	}
	// bcrypt counts bytes, not characters.
	if len(in.Password) > auth.MaxPasswordBytes {
		return types.User{}, newError(ErrInvalidInput, "Password must be at most %d bytes.", auth.MaxPasswordBytes)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return types.User{}, fmt.Errorf("register: %w", err)
	}

	user := types.User{
		Username: in.Username,
		Password: hash,
		Role:     in.Role,
		Email:    in.Email,
	}

	user.ID, err = s.store.CreateUser(ctx, user)
	switch {
	case errors.Is(err, storage.ErrUsernameExists):
		return types.User{}, newError(ErrDuplicateUsername, "Username already exists!")
	case errors.Is(err, storage.ErrEmailExists):
		return types.User{}, newError(ErrDuplicateEmail, "Email is already registered!")
	case err != nil:
		return types.User{}, fmt.Errorf("register: %w", err)
	}

	slog.Info("user registered", slog.Int64("id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Login checks a username and password against the stored hash.
func (s *Service) Login(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.User{}, newError(ErrInvalidCredentials, "Invalid teacher credentials!")
		}
		return types.User{}, fmt.Errorf("login: %w", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		return types.User{}, newError(ErrInvalidCredentials, "Invalid teacher credentials!")
	}

	return user, nil
}

// ParentLookup finds the student whose roll number and parent email both
// match exactly.
func (s *Service) ParentLookup(ctx context.Context, rawRollNo, parentEmail string) (types.Student, error) {
	rawRollNo = strings.TrimSpace(rawRollNo)
	parentEmail = strings.TrimSpace(parentEmail)

	if rawRollNo == "" || parentEmail == "" {
		return types.Student{}, newError(ErrInvalidLookup, "Please provide both Enrollment Number and Parent Email.")
	}

	rollNo, ok := parseRollNo(rawRollNo)
	if !ok {
		return types.Student{}, newError(ErrInvalidLookup, "Invalid Enrollment Number format.")
	}

	student, err := s.store.FindStudentForParent(ctx, rollNo, parentEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, newError(ErrInvalidLookup, "Invalid Enrollment Number or Email. Please check your details.")
		}
		return types.Student{}, fmt.Errorf("parent lookup: %w", err)
	}

	return student, nil
}

// ListStudents returns every student ordered by id.
func (s *Service) ListStudents(ctx context.Context) ([]types.Student, error) {
	students, err := s.store.GetStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListStudentRefs returns the roll number and name of every student.
func (s *Service) ListStudentRefs(ctx context.Context) ([]types.StudentRef, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]types.StudentRef, 0, len(students))
	for _, st := range students {
		refs = append(refs, types.StudentRef{RollNo: st.RollNo, Name: st.Name})
	}
	return refs, nil
}

// GetStudent returns student id.
func (s *Service) GetStudent(ctx context.Context, id int64) (types.Student, error) {
	student, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, newError(ErrNotFound, "Student not found!")
		}
		return types.Student{}, fmt.Errorf("get student %d: %w", id, err)
	}
	return student, nil
}

// studentFields parses and validates a student form.
func studentFields(in types.StudentInput) (types.Student, error) {
	rollNo, ok := parseRollNo(in.RollNo)
	if !ok {
		return types.Student{}, newError(ErrInvalidInput, "Enrollment Number must be a valid number.")
	}

	student := in.Student
	student.ID = 0
	student.RollNo = rollNo
	student.Name = strings.TrimSpace(student.Name)
	student.Standard = strings.TrimSpace(student.Standard)
	student.ParentEmail = strings.TrimSpace(student.ParentEmail)

	if err := checkStruct(student); err != nil {
		return types.Student{}, err
	}
	return student, nil
}

func duplicateRollNo(rollNo int64) error {
	return newError(ErrDuplicateRollNo, "Error: Enrollment Number %d already exists! Must be unique.", rollNo)
}

// CreateStudent validates and stores a new student, then notifies the
// parent.
func (s *Service) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	student, err := studentFields(in)
	if err != nil {
		return types.Student{}, err
	}

	student.ID, err = s.store.CreateStudent(ctx, student)
	switch {
	case errors.Is(err, storage.ErrRollNoExists):
		return types.Student{}, duplicateRollNo(student.RollNo)
	case err != nil:
		return types.Student{}, fmt.Errorf("create student: %w", err)
	}

	slog.Info("student created", slog.Int64("id", student.ID), slog.Int64("roll_no", student.RollNo))

	s.notifier.Dispatch(notify.Notification{
		RecipientEmail: student.ParentEmail,
		SubjectName:    student.Name,
		Event:          notify.EventUpdate,
		Details:        fmt.Sprintf("Student record created in the system with Roll No: %d.", student.RollNo),
	})

	return student, nil
}

// UpdateStudent replaces every field of student id. The roll number is only
// checked for uniqueness when it changes.
func (s *Service) UpdateStudent(ctx context.Context, id int64, in types.StudentInput) (types.Student, error) {
	student, err := studentFields(in)
	if err != nil {
		return types.Student{}, err
	}
	student.ID = id

	before, err := s.store.UpdateStudentByID(ctx, id, student)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return types.Student{}, newError(ErrNotFound, "Student not found!")
	case errors.Is(err, storage.ErrRollNoExists):
		return types.Student{}, duplicateRollNo(student.RollNo)
	case err != nil:
		return types.Student{}, fmt.Errorf("update student %d: %w", id, err)
	}

	slog.Info("student updated", slog.Int64("id", id))

	s.notifier.Dispatch(notify.Notification{
		RecipientEmail: student.ParentEmail,
		SubjectName:    student.Name,
		Event:          notify.EventUpdate,
		Details:        fmt.Sprintf("Remarks updated: '%s' -> '%s'", before.Remarks, student.Remarks),
	})

	return student, nil
}

// DeleteStudent removes student id. Its complaints stay behind.
func (s *Service) DeleteStudent(ctx context.Context, id int64) (types.Student, error) {
	deleted, err := s.store.DeleteStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, newError(ErrNotFound, "Student not found!")
		}
		return types.Student{}, fmt.Errorf("delete student %d: %w", id, err)
	}

	slog.Info("student deleted", slog.Int64("id", id), slog.Int64("roll_no", deleted.RollNo))

	s.notifier.Dispatch(notify.Notification{
		RecipientEmail: deleted.ParentEmail,
		SubjectName:    deleted.Name,
		Event:          notify.EventDelete,
	})

	return deleted, nil
}

// SendManualNotification re-sends an Update notification for student id and
// reports whether the transport accepted it.
func (s *Service) SendManualNotification(ctx context.Context, id int64) (types.Student, error) {
	student, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, newError(ErrNotFound, "Student not found for email!")
		}
		return types.Student{}, fmt.Errorf("send notification %d: %w", id, err)
	}

	err = s.notifier.Send(ctx, notify.Notification{
		RecipientEmail: student.ParentEmail,
		SubjectName:    student.Name,
		Event:          notify.EventUpdate,
		Details:        "A teacher has manually triggered an email notification.",
	})
	if err != nil {
		slog.Warn("manual notification failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		return student, newError(ErrNotificationFailed, "Notification for %s could not be sent.", student.Name)
	}

	return student, nil
}

// AddComplaint files a Pending complaint against the student holding the
// given roll number.
func (s *Service) AddComplaint(ctx context.Context, in types.ComplaintInput, filerUsername string) (types.Complaint, error) {
	rollNo, ok := parseRollNo(in.RollNo)
	if !ok {
		return types.Complaint{}, newError(ErrInvalidInput, "Enrollment Number must be a valid number.")
	}

	if filerUsername == "" {
		filerUsername = unknownFiler
	}

	complaint := types.Complaint{
		StudentRollNo:   rollNo,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		TeacherUsername: filerUsername,
		DateFiled:       s.now(),
		Status:          types.ComplaintStatusPending,
	}

	if err := checkStruct(complaint); err != nil {
		return types.Complaint{}, err
	}

	complaint, student, err := s.store.CreateComplaint(ctx, complaint)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Complaint{}, newError(ErrNotFound, "Error: Student with Roll No. %d not found.", rollNo)
		}
		return types.Complaint{}, fmt.Errorf("add complaint: %w", err)
	}

	slog.Info("complaint filed",
		slog.Int64("id", complaint.ID),
		slog.Int64("roll_no", rollNo),
		slog.String("filer", filerUsername))

	s.notifier.Dispatch(notify.Notification{
		RecipientEmail: student.ParentEmail,
		SubjectName:    student.Name,
		Event:          notify.EventComplaint,
		Details: fmt.Sprintf("Filer: %s\nTitle: %s\nDescription:\n%s",
			filerUsername, complaint.Title, complaint.Description),
	})

	return complaint, nil
}

// ListComplaints returns every complaint, orphaned ones included, most
// recently filed first.
func (s *Service) ListComplaints(ctx context.Context) ([]types.Complaint, error) {
	complaints, err := s.store.GetComplaints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// ListComplaintsForStudent returns the student holding rollNo and that
// student's complaints, most recently filed first.
func (s *Service) ListComplaintsForStudent(ctx context.Context, rollNo int64) (types.Student, []types.Complaint, error) {
	student, err := s.store.GetStudentByRollNo(ctx, rollNo)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, nil, newError(ErrNotFound, "Student record not found.")
		}
		return types.Student{}, nil, fmt.Errorf("list complaints for %d: %w", rollNo, err)
	}

	complaints, err := s.store.GetComplaintsByRollNo(ctx, rollNo)
	if err != nil {
		return types.Student{}, nil, fmt.Errorf("list complaints for %d: %w", rollNo, err)
	}

	return student, complaints, nil
}
