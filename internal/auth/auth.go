package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrUnauthenticated    = errors.New("auth: not signed in")
	ErrTokenRevoked       = errors.New("auth: token has been signed out")
)

// Session is the capability passed explicitly into every admin operation.
type Session struct {
	Subject   string    `json:"subject"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Authorize returns ErrUnauthenticated unless s is a signed-in, unexpired session.
func Authorize(s *Session, now time.Time) error {
	if s == nil || s.Subject == "" {
		return ErrUnauthenticated
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return ErrUnauthenticated
	}
	return nil
}

// Account is an administrator login.
type Account struct {
	Email        string
	PasswordHash string
}

// ParseAccounts reads "email:bcrypt-hash" entries. bcrypt hashes contain no ':'.
func ParseAccounts(entries []string) ([]Account, error) {
	accounts := make([]Account, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		email, hash, ok := strings.Cut(e, ":")
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("auth: malformed admin account entry %q", email)
		}
		accounts = append(accounts, Account{Email: strings.ToLower(email), PasswordHash: hash})
	}
	return accounts, nil
}

// Authenticator signs administrators in with bcrypt-checked passwords and issues
// HS256 session tokens.
type Authenticator struct {
	secret   []byte
	ttl      time.Duration
	accounts map[string]Account
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, accounts []Account, logger *zap.Logger) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byEmail := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		a.Email = strings.ToLower(strings.TrimSpace(a.Email))
		byEmail[a.Email] = a
	}
	return &Authenticator{
		secret:   []byte(secret),
		ttl:      ttl,
		accounts: byEmail,
		now:      time.Now,
		logger:   logger,
		revoked:  make(map[string]time.Time),
	}, nil
}

// SignIn checks the password and returns a signed token for the new session.
func (a *Authenticator) SignIn(email, password string) (string, *Session, error) {
	acct, ok := a.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("admin sign-in rejected", zap.String("email", acct.Email))
		return "", nil, ErrInvalidCredentials
	}

	now := a.now()
	session := &Session{
		Subject:   acct.Email,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(a.ttl),
	}
	claims := jwt.MapClaims{
		"sub": session.Subject,
		"jti": session.TokenID,
		"iat": now.Unix(),
		"exp": session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, session, nil
}

// Verify parses a token and returns its session.
func (a *Authenticator) Verify(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || sub == "" {
		return nil, ErrUnauthenticated
	}
	if a.isRevoked(jti) {
		return nil, ErrTokenRevoked
	}
	return &Session{Subject: sub, TokenID: jti, ExpiresAt: exp.Time}, nil
}

// SignOut revokes the session's token until it would have expired anyway.
func (a *Authenticator) SignOut(s *Session) {
	if s == nil || s.TokenID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[s.TokenID] = s.ExpiresAt
	now := a.now()
	for id, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, id)
		}
	}
}

func (a *Authenticator) isRevoked(jti string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[jti]
	return ok
}
