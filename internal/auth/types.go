package auth

import "time"

// CodeKind distinguishes the two one-time-code flows. Verification codes
// prove first-time ownership of an email address; login codes authenticate
// an already verified account.
type CodeKind string

const (
	KindLogin  CodeKind = "login"
	KindVerify CodeKind = "verify"
)

// Valid reports whether k is one of the known kinds.
func (k CodeKind) Valid() bool {
	switch k {
	case KindLogin, KindVerify:
		return true
	}
	return false
}

// User is an account identified by a unique, case-normalized email address.
type User struct {
	ID          string
	Email       string
	Name        string
	IsActive    bool
	IsVerified  bool
	IsAdmin     bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OneTimeCode is a short-lived numeric credential delivered by email.
// Only a bcrypt hash of the code is ever stored.
type OneTimeCode struct {
	ID           string
	UserID       string
	CodeHash     string
	Kind         CodeKind
	ExpiresAt    time.Time
	IsUsed       bool
	Attempts     int
	RequestIP    string
	RequestAgent string
	CreatedAt    time.Time
}

// Session is a bearer credential: a signed token plus a server-side record
// that adds revocation and audit metadata on top of what the token proves.
type Session struct {
	ID           string
	UserID       string
	Token        string
	ExpiresAt    time.Time
	IsRevoked    bool
	RequestIP    string
	RequestAgent string
	CallbackURL  string
	CreatedAt    time.Time
}

// Permission grants one user access to one named resource, optionally until
// ExpiresAt. The (UserID, Resource) pair is unique; grants are upserts.
type Permission struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Resource  string     `json:"resource"`
	CanAccess bool       `json:"can_access"`
	GrantedBy string     `json:"granted_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ClientMeta carries request attribution persisted alongside codes and
// sessions.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// UserView is the redacted user representation returned to callers.
type UserView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsVerified bool   `json:"is_verified"`
}

// SessionView is the redacted session representation. The token value is
// deliberately absent; validation responses never echo it back.
type SessionView struct {
	ID          string    `json:"id"`
	CallbackURL string    `json:"callback_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (u *User) view() UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, IsVerified: u.IsVerified}
}

func (s *Session) view() SessionView {
	return SessionView{ID: s.ID, CallbackURL: s.CallbackURL, ExpiresAt: s.ExpiresAt}
}
