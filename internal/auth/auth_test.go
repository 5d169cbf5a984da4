package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "owner@example.com"
	testPassword = "correct horse"
	testSecret   = "test-secret"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *time.Time) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	a, err := NewAuthenticator(testSecret, time.Hour, []Account{{Email: "Owner@Example.com", PasswordHash: string(hash)}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	a.now = func() time.Time { return now }
	return a, &now
}

func TestNewAuthenticator_EmptySecret(t *testing.T) {
	_, err := NewAuthenticator("", time.Hour, nil, nil)
	assert.Error(t, err)
}

func TestSignInAndVerify(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	token, session, err := a.SignIn("  OWNER@example.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, testEmail, session.Subject)
	assert.NotEmpty(t, session.TokenID)

	verified, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, session.Subject, verified.Subject)
	assert.Equal(t, session.TokenID, verified.TokenID)
	assert.True(t, session.ExpiresAt.Equal(verified.ExpiresAt))
}

func TestSignIn_Rejected(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	_, _, err := a.SignIn(testEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.SignIn("stranger@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_Rejects(t *testing.T) {
	a, now := newTestAuthenticator(t)
	token, _, err := a.SignIn(testEmail, testPassword)
	require.NoError(t, err)

	t.Run("Garbage", func(t *testing.T) {
		_, err := a.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": testEmail, "jti": "x", "exp": now.Add(time.Hour).Unix(),
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = a.Verify(forged)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": testEmail, "jti": "x", "exp": now.Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = a.Verify(unsigned)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("Expired", func(t *testing.T) {
		later := *now
		a.now = func() time.Time { return later.Add(2 * time.Hour) }
		defer func() { a.now = func() time.Time { return *now } }()

		_, err := a.Verify(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestSignOut(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	token, session, err := a.SignIn(testEmail, testPassword)
	require.NoError(t, err)

	a.SignOut(session)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	other, _, err := a.SignIn(testEmail, testPassword)
	require.NoError(t, err)
	_, err = a.Verify(other)
	assert.NoError(t, err, "signing out one session leaves others valid")

	a.SignOut(nil)
}

func TestAuthorize(t *testing.T) {
	now := time.Date(2025, 3, 18, 10, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, Authorize(nil, now), ErrUnauthenticated)
	assert.ErrorIs(t, Authorize(&Session{}, now), ErrUnauthenticated)
	assert.ErrorIs(t, Authorize(&Session{Subject: testEmail, ExpiresAt: now}, now), ErrUnauthenticated)
	assert.NoError(t, Authorize(&Session{Subject: testEmail, ExpiresAt: now.Add(time.Second)}, now))
	assert.NoError(t, Authorize(&Session{Subject: testEmail}, now), "no expiry")
}

func TestParseAccounts(t *testing.T) {
	accounts, err := ParseAccounts([]string{"Owner@Example.com:$2a$10$abc", " ", "staff@example.com:$2a$10$def"})
	require.NoError(t, err)
	assert.Equal(t, []Account{
		{Email: "owner@example.com", PasswordHash: "$2a$10$abc"},
		{Email: "staff@example.com", PasswordHash: "$2a$10$def"},
	}, accounts)

	_, err = ParseAccounts([]string{"owner@example.com"})
	assert.Error(t, err)
	_, err = ParseAccounts([]string{"owner@example.com:"})
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	token, _, err := a.SignIn(testEmail, testPassword)
	require.NoError(t, err)

	var seen *Session
	handler := a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"Valid", "Bearer " + token, http.StatusNoContent},
		{"LowercaseScheme", "bearer " + token, http.StatusNoContent},
		{"Missing", "", http.StatusUnauthorized},
		{"WrongScheme", "Basic " + token, http.StatusUnauthorized},
		{"Invalid", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, testEmail, seen.Subject)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}
