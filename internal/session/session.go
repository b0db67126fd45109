// Package session holds the per-request session state (who is logged in,
// in which role, and the pending one-shot notices) and the stores that
// persist it between requests.
//
// A session is loaded once per request by middleware, placed in the request
// context, mutated by the handler and saved explicitly before the response
// is written.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/aanand-mishra/school-records/internal/types"
)

// Notice categories.
const (
	CategorySuccess = "success"
	CategoryInfo    = "info"
	CategoryDanger  = "danger"
)

// Notice is a transient message shown once on the next rendered page.
type Notice struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the request-scoped session object.
type Session struct {
	// ID identifies server-side sessions; the cookie store leaves it empty.
	ID string

	UserID    int64
	Username  string
	StudentID int64
	RollNo    int64
	Role      types.Role

	Notices []Notice

	// renew asks the store to issue a fresh identifier on the next save.
	renew bool
}

// Store persists sessions between requests.
type Store interface {
	// Load returns the session attached to r. A missing, expired or
	// tampered session yields a fresh, empty one.
	Load(r *http.Request) *Session

	// Save persists s and writes its cookie to w.
	Save(w http.ResponseWriter, s *Session) error
}

// CookieOptions configures the session cookie shared by both stores.
type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (o CookieOptions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(o.TTL.Seconds()),
	}
}

// expired returns a cookie that makes the client drop the session cookie.
func (o CookieOptions) expired() *http.Cookie {
	c := o.cookie("")
	c.MaxAge = -1
	return c
}

// IsTeacher reports whether s belongs to a logged-in teacher.
func (s *Session) IsTeacher() bool {
	return s.Role == types.RoleTeacher && s.UserID != 0
}

// IsParent reports whether s belongs to a parent who passed the lookup.
func (s *Session) IsParent() bool {
	return s.Role == types.RoleParent && s.StudentID != 0
}

// HasRole reports whether s is fully authenticated in role.
func (s *Session) HasRole(role types.Role) bool {
	switch role {
	case types.RoleTeacher:
		return s.IsTeacher()
	case types.RoleParent:
		return s.IsParent()
	}
	return false
}

// LoginTeacher replaces any previous claims with the user's.
func (s *Session) LoginTeacher(user types.User) {
	s.Clear()
	s.UserID = user.ID
	s.Username = user.Username
	s.Role = user.Role
}

// LoginParent replaces any previous claims with a parent claim on student.
func (s *Session) LoginParent(student types.Student) {
	s.Clear()
	s.StudentID = student.ID
	s.RollNo = student.RollNo
	s.Role = types.RoleParent
}

// Clear drops every claim and pending notice and rotates the session
// identifier. Clearing an empty session is harmless.
func (s *Session) Clear() {
	s.UserID = 0
	s.Username = ""
	s.StudentID = 0
	s.RollNo = 0
	s.Role = ""
	s.Notices = nil
	s.renew = true
}

// AddNotice queues a notice for the next rendered page.
func (s *Session) AddNotice(category, message string) {
	s.Notices = append(s.Notices, Notice{Category: category, Message: message})
}

// PopNotices returns the pending notices and forgets them.
func (s *Session) PopNotices() []Notice {
	notices := s.Notices
	s.Notices = nil
	return notices
}

// empty reports whether s carries nothing worth persisting.
func (s *Session) empty() bool {
	return s.Role == "" && s.UserID == 0 && s.StudentID == 0 && len(s.Notices) == 0
}

func (s *Session) clone() *Session {
	c := *s
	if s.Notices != nil {
		c.Notices = append([]Notice(nil), s.Notices...)
	}
	return &c
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, or a fresh empty session
// when the session middleware did not run.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
