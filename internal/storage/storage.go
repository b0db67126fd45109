// Package storage defines the Storage interface, the contract any database
// backend must satisfy to work with this application, together with the
// errors a backend reports for conditions callers act on.
//
// Handlers and the records service depend only on this interface, so tests
// and alternative backends never touch the SQLite package directly.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/school-records/internal/types"
)

var (
	// ErrNotFound is returned when a lookup by id or key matches no row.
	ErrNotFound = errors.New("record not found")

	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
	ErrRollNoExists   = errors.New("roll number already exists")
)

// Storage is the database contract. Every method that reads and then writes
// does so inside a single transaction.
type Storage interface {
	// CreateUser inserts a user and returns its id. An empty email is stored
	// as NULL so it never collides with another user's missing email.
	CreateUser(ctx context.Context, user types.User) (int64, error)

	GetUserByUsername(ctx context.Context, username string) (types.User, error)

	CreateStudent(ctx context.Context, student types.Student) (int64, error)

	GetStudentByID(ctx context.Context, id int64) (types.Student, error)

	GetStudentByRollNo(ctx context.Context, rollNo int64) (types.Student, error)

	// FindStudentForParent matches roll number and parent email exactly.
	FindStudentForParent(ctx context.Context, rollNo int64, parentEmail string) (types.Student, error)

	// GetStudents returns every student ordered by id; an empty slice, not nil,
	// when there are none.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// UpdateStudentByID replaces all fields of an existing student and returns
	// the row as it was before the update. When the roll number changes,
	// complaints filed under the old number move with the student.
	UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a student and returns the deleted row.
	// Complaints are left in place.
	DeleteStudentByID(ctx context.Context, id int64) (types.Student, error)

	// CreateComplaint inserts a complaint for an existing student and returns
	// the stored complaint together with that student.
	CreateComplaint(ctx context.Context, complaint types.Complaint) (types.Complaint, types.Student, error)

	// GetComplaints returns all complaints, most recently filed first.
	GetComplaints(ctx context.Context) ([]types.Complaint, error)

	// GetComplaintsByRollNo returns complaints of the student currently holding
	// rollNo, most recently filed first.
	GetComplaintsByRollNo(ctx context.Context, rollNo int64) ([]types.Complaint, error)

	Close() error
}
