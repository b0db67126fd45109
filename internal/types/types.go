// Package types holds the shared data structures used across the
// application. Keeping them in one place prevents import cycles:
// handlers, records, storage and session can all import types without
// depending on each other.
package types

import "time"

// Role is the role carried by a session and stored on a user.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// ComplaintStatusPending is the status every new complaint starts in.
const ComplaintStatusPending = "Pending"

// User is a registered staff account. Password holds the bcrypt hash and is
// never encoded to JSON.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
}

// Student represents a student record.
//
// validate:"..." tags are checked by go-playground/validator before the
// record reaches storage; the max lengths mirror the column sizes.
type Student struct {
	ID                   int64  `json:"id"`
	RollNo               int64  `json:"roll_no"`
	Name                 string `json:"name"                  validate:"required,max=100"`
	Standard             string `json:"standard"              validate:"required,max=50"`
	Attendance           string `json:"attendance"            validate:"max=50"`
	HealthIssues         string `json:"health_issues"         validate:"max=200"`
	AssignmentsPending   string `json:"assignments_pending"   validate:"max=200"`
	AssignmentsSubmitted string `json:"assignments_submitted" validate:"max=200"`
	Remarks              string `json:"remarks"               validate:"max=200"`
	ParentEmail          string `json:"parent_email"          validate:"omitempty,email,max=100"`
}

// StudentRef is the (roll_no, name) pair offered when filing a complaint.
type StudentRef struct {
	RollNo int64  `json:"roll_no"`
	Name   string `json:"name"`
}

// Complaint is filed by a teacher against a student. It belongs to the
// student by StudentID; StudentRollNo is that student's roll number, kept
// for display.
type Complaint struct {
	ID              int64     `json:"id"`
	StudentID       int64     `json:"student_id"`
	StudentRollNo   int64     `json:"student_roll_no"`
	Title           string    `json:"title"            validate:"required,max=100"`
	Description     string    `json:"description"      validate:"required,max=500"`
	TeacherUsername string    `json:"teacher_username" validate:"max=100"`
	DateFiled       time.Time `json:"date_filed"`
	Status          string    `json:"status"`
}

// RegisterInput is the typed form for POST /register.
type RegisterInput struct {
	Username string `validate:"required,max=100"`
	Email    string `validate:"omitempty,email,max=100"`
	Password string `validate:"required"`
	Role     Role   `validate:"omitempty,oneof=teacher"`
}

// StudentInput is the typed form for adding or updating a student. RollNo
// stays raw until it is parsed, so a non-numeric value can be reported as
// invalid input rather than silently becoming zero.
type StudentInput struct {
	RollNo string
	Student
}

// ComplaintInput is the typed form for POST /add-complaint.
type ComplaintInput struct {
	RollNo      string
	Title       string
	Description string
}
