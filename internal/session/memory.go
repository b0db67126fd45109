package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sweepEvery is how many saves pass between purges of expired sessions.
const sweepEvery = 64

type memoryEntry struct {
	session *Session
	expires time.Time
}

// MemoryStore keeps sessions in process memory, keyed by a random token
// carried in the session cookie. Sessions do not survive a restart.
type MemoryStore struct {
	opts CookieOptions
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]memoryEntry
	saves    int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore issuing cookies per opts.
func NewMemoryStore(opts CookieOptions) *MemoryStore {
	return &MemoryStore{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
	}
}

// Load returns a copy of the live session named by the request cookie.
func (m *MemoryStore) Load(r *http.Request) *Session {
	c, err := r.Cookie(m.opts.Name)
	if err != nil || c.Value == "" {
		return &Session{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[c.Value]
	if !ok {
		return &Session{}
	}
	if !m.now().Before(entry.expires) {
		delete(m.sessions, c.Value)
		return &Session{}
	}

	// Handlers get their own copy; concurrent requests on the same session
	// never share mutable state.
	return entry.session.clone()
}

// Save stores a copy of s under its token, issuing a new token when s has
// none or was cleared. An empty session is not stored: a fresh one gets no
// token at all, and an existing one is dropped along with its cookie.
func (m *MemoryStore) Save(w http.ResponseWriter, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.empty() {
		s.renew = false
		if s.ID != "" {
			delete(m.sessions, s.ID)
			s.ID = ""
			http.SetCookie(w, m.opts.expired())
		}
		return nil
	}

	if s.ID == "" || s.renew {
		if s.ID != "" {
			delete(m.sessions, s.ID)
		}
		s.ID = uuid.NewString()
		s.renew = false
	}

	now := m.now()
	m.sessions[s.ID] = memoryEntry{
		session: s.clone(),
		expires: now.Add(m.opts.TTL),
	}

	m.saves++
	if m.saves%sweepEvery == 0 {
		for id, entry := range m.sessions {
			if !now.Before(entry.expires) {
				delete(m.sessions, id)
			}
		}
	}

	http.SetCookie(w, m.opts.cookie(s.ID))
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
