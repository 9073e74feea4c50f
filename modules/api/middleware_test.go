package api

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(verifier *TokenVerifier) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/whoami", AuthMiddleware(verifier), func(c *fiber.Ctx) error {
		return c.SendString(actorOf(c))
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	app := newAuthApp(verifier)

	valid, err := verifier.Issue("user-2", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Issue("user-2", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewTokenVerifier("other-secret").Issue("user-2", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: fiber.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: fiber.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", status: fiber.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, status: fiber.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, status: fiber.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, status: fiber.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + valid, status: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestTokenVerifier_Verify(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	token, err := verifier.Issue("user-3", time.Hour)
	require.NoError(t, err)
	subject, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-3", subject)

	expired, err := verifier.Issue("user-3", -time.Minute)
	require.NoError(t, err)
	_, err = verifier.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = verifier.Verify("a.b.c")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseStatusBody(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{`"in-progress"`, "in-progress", true},
		{`{"status":"todo"}`, "todo", true},
		{"completed", "completed", true},
		{"", "", false},
		{`{"status":`, "", false},
	}
	for _, tt := range tests {
		got, err := parseStatusBody([]byte(tt.body))
		if !tt.ok {
			assert.Error(t, err, tt.body)
			continue
		}
		require.NoError(t, err, tt.body)
		assert.Equal(t, tt.want, string(got))
	}
}
