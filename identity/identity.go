// Package identity is the single-admin identity gate: password login, typed
// session state, change notification and bearer tokens for the JSON API.
package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/folio/apperr"
)

// Status is the authentication state of a session.
type Status int

const (
	// Loading means the session has not been resolved yet.
	Loading Status = iota
	Anonymous
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// RoleAdmin is the only identity class.
const RoleAdmin = "admin"

const (
	bcryptCost  = 12
	tokenIssuer = "folio"
)

// Identity describes who is signed in.
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the resolved session of one request.
type Session struct {
	Status    Status
	Identity  Identity
	ExpiresAt time.Time
}

// AnonymousSession is the session of a signed-out visitor.
var AnonymousSession = Session{Status: Anonymous}

// Authenticated reports whether s is a signed-in admin session.
func (s Session) Authenticated() bool { return s.Status == Authenticated }

// Config holds the gate's credentials.
type Config struct {
	Email        string
	PasswordHash string
	Secret       []byte
	TTL          time.Duration
}

// Gate checks credentials and issues sessions.
type Gate struct {
	email  string
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	listeners map[int]func(Session)
	nextID    int
}

// New returns a Gate. It fails with apperr.ErrConfigurationMissing when the
// email, password hash or signing secret is empty.
func New(cfg Config) (*Gate, error) {
	var missing []string
	if cfg.Email == "" {
		missing = append(missing, "email")
	}
	if cfg.PasswordHash == "" {
		missing = append(missing, "password hash")
	}
	if len(cfg.Secret) == 0 {
		missing = append(missing, "secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("identity: missing %s: %w", strings.Join(missing, ", "), apperr.ErrConfigurationMissing)
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("identity: invalid password hash: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{
		email:     normalizeEmail(cfg.Email),
		hash:      []byte(cfg.PasswordHash),
		secret:    cfg.Secret,
		ttl:       ttl,
		now:       time.Now,
		listeners: make(map[int]func(Session)),
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// TTL returns the lifetime of issued sessions.
func (g *Gate) TTL() time.Duration { return g.ttl }

// Login checks identifier and secret. The password hash is always compared
// so a wrong email costs the same as a wrong password.
func (g *Gate) Login(identifier, secret string) (Session, error) {
	pwErr := bcrypt.CompareHashAndPassword(g.hash, []byte(secret))
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(identifier)), []byte(g.email)) == 1
	if pwErr != nil || !emailOK {
		return AnonymousSession, apperr.ErrInvalidCredentials
	}
	s := g.session(g.now().Add(g.ttl))
	g.notify(s)
	return s, nil
}

// Logout ends s and returns the anonymous session.
func (g *Gate) Logout(s Session) Session {
	if s.Authenticated() {
		g.notify(AnonymousSession)
	}
	return AnonymousSession
}

func (g *Gate) session(exp time.Time) Session {
	return Session{
		Status:    Authenticated,
		Identity:  Identity{Email: g.email, Role: RoleAdmin},
		ExpiresAt: exp,
	}
}

// Restore rebuilds a session from values persisted in a cookie. Unknown
// identities and expired sessions resolve as anonymous.
func (g *Gate) Restore(email string, expiresAt time.Time) Session {
	if email == "" || normalizeEmail(email) != g.email || !g.now().Before(expiresAt) {
		return AnonymousSession
	}
	return g.session(expiresAt)
}

// OnChange registers fn to be called after every login and logout. The
// returned function removes the registration.
func (g *Gate) OnChange(fn func(Session)) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners, id)
			g.mu.Unlock()
		})
	}
}

func (g *Gate) notify(s Session) {
	g.mu.Lock()
	fns := make([]func(Session), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// IssueToken signs an HS256 bearer token for an authenticated session.
func (g *Gate) IssueToken(s Session) (string, error) {
	if !s.Authenticated() {
		return "", apperr.ErrInvalidCredentials
	}
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   s.Identity.Email,
		IssuedAt:  jwt.NewNumericDate(g.now()),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// VerifyToken parses a bearer token and returns its session.
func (g *Gate) VerifyToken(token string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return AnonymousSession, fmt.Errorf("identity: %w: %w", apperr.ErrInvalidCredentials, err)
	}
	if claims.Subject != g.email {
		return AnonymousSession, fmt.Errorf("identity: unknown subject: %w", apperr.ErrInvalidCredentials)
	}
	return g.session(claims.ExpiresAt.Time), nil
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx. A context without one
// yields a Loading session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

// IsInvalidCredentials reports whether err is a credential failure.
func IsInvalidCredentials(err error) bool { return errors.Is(err, apperr.ErrInvalidCredentials) }
