// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite keeps users, students and complaints in a single local file. The
// go-sqlite3 driver registers itself as "sqlite3" on import; its Error type
// is also used to recognise UNIQUE constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aanand-mishra/school-records/internal/config"
	"github.com/aanand-mishra/school-records/internal/storage"
	"github.com/aanand-mishra/school-records/internal/types"

	"github.com/mattn/go-sqlite3"
)

// schema is idempotent and runs on every startup.
//
// students.roll_no carries the UNIQUE constraint that keeps roll numbers
// unique under concurrent writers. Complaints belong to a student by
// complaints.student_id, with no foreign key: deleting a student leaves its
// complaints behind. AUTOINCREMENT never reuses an id, so those orphans
// never attach to a student created later, even one given the same roll_no.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT    NOT NULL UNIQUE,
	password TEXT    NOT NULL,
	role     TEXT    NOT NULL DEFAULT 'teacher',
	email    TEXT    UNIQUE
);

CREATE TABLE IF NOT EXISTS students (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	roll_no               INTEGER NOT NULL UNIQUE,
	name                  TEXT    NOT NULL,
	standard              TEXT    NOT NULL,
	attendance            TEXT    NOT NULL DEFAULT '',
	health_issues         TEXT    NOT NULL DEFAULT '',
	assignments_pending   TEXT    NOT NULL DEFAULT '',
	assignments_submitted TEXT    NOT NULL DEFAULT '',
	remarks               TEXT    NOT NULL DEFAULT '',
	parent_email          TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS complaints (
	id               INTEGER  PRIMARY KEY AUTOINCREMENT,
	student_id       INTEGER  NOT NULL,
	student_roll_no  INTEGER  NOT NULL,
	title            TEXT     NOT NULL,
	description      TEXT     NOT NULL,
	teacher_username TEXT     NOT NULL,
	date_filed       DATETIME NOT NULL,
	status           TEXT     NOT NULL DEFAULT 'Pending'
);

CREATE INDEX IF NOT EXISTS idx_complaints_student_id ON complaints (student_id);
CREATE INDEX IF NOT EXISTS idx_complaints_date_filed ON complaints (date_filed, id);
`

const (
	studentColumns = `id, roll_no, name, standard, attendance, health_issues,
		assignments_pending, assignments_submitted, remarks, parent_email`

	complaintColumns = `c.id, c.student_id, c.student_roll_no, c.title, c.description,
		c.teacher_username, c.date_filed, c.status`

	// Equal filing times fall back to insertion order.
	complaintOrder = ` ORDER BY c.date_filed DESC, c.id DESC`
)

// SQLite is the concrete implementation of storage.Storage.
// *sql.DB is a connection pool and safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.StoragePath, creates the tables if
// they do not exist yet, and returns a ready-to-use *SQLite.
//
// _busy_timeout makes concurrent writers wait instead of failing with
// SQLITE_BUSY; _txlock=immediate takes the write lock when a transaction
// begins, so a read-then-write transaction never has to upgrade its lock.
func New(cfg *config.Config) (*SQLite, error) {
	dsn := cfg.StoragePath + "?_busy_timeout=5000&_txlock=immediate"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create schema: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (types.Student, error) {
	var student types.Student
	err := row.Scan(
		&student.ID,
		&student.RollNo,
		&student.Name,
		&student.Standard,
		&student.Attendance,
		&student.HealthIssues,
		&student.AssignmentsPending,
		&student.AssignmentsSubmitted,
		&student.Remarks,
		&student.ParentEmail,
	)
	return student, err
}

func scanComplaint(row rowScanner) (types.Complaint, error) {
	var complaint types.Complaint
	err := row.Scan(
		&complaint.ID,
		&complaint.StudentID,
		&complaint.StudentRollNo,
		&complaint.Title,
		&complaint.Description,
		&complaint.TeacherUsername,
		&complaint.DateFiled,
		&complaint.Status,
	)
	return complaint, err
}

// uniqueViolation translates a UNIQUE constraint failure into the matching
// storage error. ok is false for any other error.
func uniqueViolation(err error) (mapped error, ok bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil, false
	}

	// The message names the offending column, e.g.
	// "UNIQUE constraint failed: students.roll_no".
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "students.roll_no"):
		return storage.ErrRollNoExists, true
	case strings.Contains(msg, "users.username"):
		return storage.ErrUsernameExists, true
	case strings.Contains(msg, "users.email"):
		return storage.ErrEmailExists, true
	}
	return nil, false
}

// notFound maps sql.ErrNoRows to storage.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// CreateUser inserts a user, mapping UNIQUE violations to storage errors.
func (s *SQLite) CreateUser(ctx context.Context, user types.User) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO users (username, password, role, email) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("CreateUser: prepare: %w", err)
	}
	defer stmt.Close()

	email := sql.NullString{String: user.Email, Valid: user.Email != ""}

	result, err := stmt.ExecContext(ctx, user.Username, user.Password, string(user.Role), email)
	if err != nil {
		if mapped, ok := uniqueViolation(err); ok {
			return 0, mapped
		}
		return 0, fmt.Errorf("CreateUser: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateUser: last insert id: %w", err)
	}

	return lastID, nil
}

// GetUserByUsername fetches a user by exact username.
func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (types.User, error) {
	var (
		user  types.User
		role  string
		email sql.NullString
	)

	err := s.Db.QueryRowContext(ctx,
		"SELECT id, username, password, role, email FROM users WHERE username = ? LIMIT 1",
		username,
	).Scan(&user.ID, &user.Username, &user.Password, &role, &email)
	if err != nil {
		if err = notFound(err); errors.Is(err, storage.ErrNotFound) {
			return types.User{}, err
		}
		return types.User{}, fmt.Errorf("GetUserByUsername: scan: %w", err)
	}

	user.Role = types.Role(role)
	user.Email = email.String

	return user, nil
}

// CreateStudent inserts a new row into the students table. The UNIQUE
// constraint on roll_no is the final word on duplicates.
func (s *SQLite) CreateStudent(ctx context.Context, student types.Student) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx, `
		INSERT INTO students (roll_no, name, standard, attendance, health_issues,
			assignments_pending, assignments_submitted, remarks, parent_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx,
		student.RollNo,
		student.Name,
		student.Standard,
		student.Attendance,
		student.HealthIssues,
		student.AssignmentsPending,
		student.AssignmentsSubmitted,
		student.Remarks,
		student.ParentEmail,
	)
	if err != nil {
		if mapped, ok := uniqueViolation(err); ok {
			return 0, mapped
		}
		return 0, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateStudent: last insert id: %w", err)
	}

	return lastID, nil
}

// GetStudentByID fetches a student by primary key.
func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	return s.getStudent(ctx, "GetStudentByID", "WHERE id = ?", id)
}

// GetStudentByRollNo fetches the student currently holding rollNo.
func (s *SQLite) GetStudentByRollNo(ctx context.Context, rollNo int64) (types.Student, error) {
	return s.getStudent(ctx, "GetStudentByRollNo", "WHERE roll_no = ?", rollNo)
}

// FindStudentForParent matches roll number and parent email exactly.
func (s *SQLite) FindStudentForParent(ctx context.Context, rollNo int64, parentEmail string) (types.Student, error) {
	return s.getStudent(ctx, "FindStudentForParent", "WHERE roll_no = ? AND parent_email = ?", rollNo, parentEmail)
}

func (s *SQLite) getStudent(ctx context.Context, op, where string, args ...any) (types.Student, error) {
	row := s.Db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students "+where+" LIMIT 1", args...)

	student, err := scanStudent(row)
	if err != nil {
		if err = notFound(err); errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, err
		}
		return types.Student{}, fmt.Errorf("%s: scan: %w", op, err)
	}

	return student, nil
}

// GetStudents returns every student ordered by id.
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	rows, err := s.Db.QueryContext(ctx, "SELECT "+studentColumns+" FROM students ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// UpdateStudentByID runs the read, the uniqueness check and the update in one
// transaction. The student's complaints follow it by id; their displayed
// roll number is refreshed in the same transaction.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id int64, student types.Student) (types.Student, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: begin: %w", err)
	}
	defer tx.Rollback()

	before, err := scanStudent(tx.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ?", id))
	if err != nil {
		if err = notFound(err); errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, err
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: select: %w", err)
	}

	rollNoChanged := student.RollNo != before.RollNo

	if rollNoChanged {
		var taken int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM students WHERE roll_no = ? AND id <> ? LIMIT 1",
			student.RollNo, id,
		).Scan(&taken)
		switch {
		case err == nil:
			return types.Student{}, storage.ErrRollNoExists
		case !errors.Is(err, sql.ErrNoRows):
			return types.Student{}, fmt.Errorf("UpdateStudentByID: check roll_no: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE students SET roll_no = ?, name = ?, standard = ?, attendance = ?,
			health_issues = ?, assignments_pending = ?, assignments_submitted = ?,
			remarks = ?, parent_email = ?
		WHERE id = ?`,
		student.RollNo,
		student.Name,
		student.Standard,
		student.Attendance,
		student.HealthIssues,
		student.AssignmentsPending,
		student.AssignmentsSubmitted,
		student.Remarks,
		student.ParentEmail,
		id,
	)
	if err != nil {
		if mapped, ok := uniqueViolation(err); ok {
			return types.Student{}, mapped
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	if rollNoChanged {
		_, err = tx.ExecContext(ctx,
			"UPDATE complaints SET student_roll_no = ? WHERE student_id = ?",
			student.RollNo, id,
		)
		if err != nil {
			return types.Student{}, fmt.Errorf("UpdateStudentByID: relink complaints: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: commit: %w", err)
	}

	return before, nil
}

// DeleteStudentByID captures and deletes the row in one transaction.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) (types.Student, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Student{}, fmt.Errorf("DeleteStudentByID: begin: %w", err)
	}
	defer tx.Rollback()

	// Captured before the delete: the row is gone afterwards.
	student, err := scanStudent(tx.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ?", id))
	if err != nil {
		if err = notFound(err); errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, err
		}
		return types.Student{}, fmt.Errorf("DeleteStudentByID: select: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id); err != nil {
		return types.Student{}, fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Student{}, fmt.Errorf("DeleteStudentByID: commit: %w", err)
	}

	return student, nil
}

// CreateComplaint checks the student exists and inserts the complaint in
// one transaction.
func (s *SQLite) CreateComplaint(ctx context.Context, complaint types.Complaint) (types.Complaint, types.Student, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Complaint{}, types.Student{}, fmt.Errorf("CreateComplaint: begin: %w", err)
	}
	defer tx.Rollback()

	student, err := scanStudent(tx.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE roll_no = ?", complaint.StudentRollNo))
	if err != nil {
		if err = notFound(err); errors.Is(err, storage.ErrNotFound) {
			return types.Complaint{}, types.Student{}, err
		}
		return types.Complaint{}, types.Student{}, fmt.Errorf("CreateComplaint: select student: %w", err)
	}

	complaint.StudentID = student.ID
	complaint.DateFiled = complaint.DateFiled.UTC()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO complaints (student_id, student_roll_no, title, description, teacher_username, date_filed, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		complaint.StudentID,
		complaint.StudentRollNo,
		complaint.Title,
		complaint.Description,
		complaint.TeacherUsername,
		complaint.DateFiled,
		complaint.Status,
	)
	if err != nil {
		return types.Complaint{}, types.Student{}, fmt.Errorf("CreateComplaint: exec: %w", err)
	}

	complaint.ID, err = result.LastInsertId()
	if err != nil {
		return types.Complaint{}, types.Student{}, fmt.Errorf("CreateComplaint: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Complaint{}, types.Student{}, fmt.Errorf("CreateComplaint: commit: %w", err)
	}

	return complaint, student, nil
}

// GetComplaints returns every complaint, orphans included, newest first.
func (s *SQLite) GetComplaints(ctx context.Context) ([]types.Complaint, error) {
	return s.queryComplaints(ctx, "GetComplaints",
		"SELECT "+complaintColumns+" FROM complaints c"+complaintOrder)
}

// GetComplaintsByRollNo joins through students by id, so complaints orphaned
// by a deleted student are never returned, even after the roll number is
// given to someone else.
func (s *SQLite) GetComplaintsByRollNo(ctx context.Context, rollNo int64) ([]types.Complaint, error) {
	return s.queryComplaints(ctx, "GetComplaintsByRollNo",
		"SELECT "+complaintColumns+` FROM complaints c
		JOIN students s ON s.id = c.student_id
		WHERE s.roll_no = ?`+complaintOrder,
		rollNo,
	)
}

func (s *SQLite) queryComplaints(ctx context.Context, op, query string, args ...any) ([]types.Complaint, error) {
	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	complaints := make([]types.Complaint, 0)

	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		complaints = append(complaints, complaint)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration: %w", op, err)
	}

	return complaints, nil
}
