package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aanand-mishra/school-records/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const cookieIssuer = "school-records"

// claims is the signed payload of a cookie-store session.
type claims struct {
	UserID    int64      `json:"uid,omitempty"`
	Username  string     `json:"usr,omitempty"`
	StudentID int64      `json:"sid,omitempty"`
	RollNo    int64      `json:"rno,omitempty"`
	Role      types.Role `json:"role,omitempty"`
	Notices   []Notice   `json:"notices,omitempty"`
	jwt.RegisteredClaims
}

// CookieStore keeps the whole session client-side as an HS256-signed JWT.
// Nothing is held on the server, so a cleared session cannot revoke a copy
// of an older cookie before that cookie's expiry.
type CookieStore struct {
	opts   CookieOptions
	secret []byte
	now    func() time.Time
}

var _ Store = (*CookieStore)(nil)

// NewCookieStore returns a CookieStore signing tokens with secret.
func NewCookieStore(secret string, opts CookieOptions) *CookieStore {
	return &CookieStore{
		opts:   opts,
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (c *CookieStore) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(c.opts.Name)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}

	var cl claims
	_, err = jwt.ParseWithClaims(cookie.Value, &cl,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return &Session{}
	}

	return &Session{
		UserID:    cl.UserID,
		Username:  cl.Username,
		StudentID: cl.StudentID,
		RollNo:    cl.RollNo,
		Role:      cl.Role,
		Notices:   cl.Notices,
	}
}

func (c *CookieStore) Save(w http.ResponseWriter, s *Session) error {
	now := c.now()

	// Every save mints a new token id, so renewal needs no extra work.
	s.renew = false

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:    s.UserID,
		Username:  s.Username,
		StudentID: s.StudentID,
		RollNo:    s.RollNo,
		Role:      s.Role,
		Notices:   s.Notices,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.opts.TTL)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, c.opts.cookie(signed))
	return nil
}
