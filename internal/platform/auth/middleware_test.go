package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var okHandler = func(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func newAuthContext(header string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func signToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	key := []byte("test-signing-key")
	tok := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "cqm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"analyst"},
	})

	c, rec := newAuthContext("Bearer " + tok)
	mw := JWTMiddleware(JWTConfig{Issuer: "cqm", SigningKey: key})

	var gotUser string
	var gotRoles []string
	err := mw(func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return okHandler(c)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if gotUser != "user-1" {
		t.Errorf("expected subject on context, got %q", gotUser)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "analyst" {
		t.Errorf("expected analyst role on context, got %v", gotRoles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	key := []byte("test-signing-key")
	mw := JWTMiddleware(JWTConfig{Issuer: "cqm", SigningKey: key})

	expired := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cqm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := signToken(t, []byte("other-key"), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cqm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	wrongIssuer := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
		{"wrong issuer", "Bearer " + wrongIssuer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newAuthContext(tc.header)
			err := mw(okHandler)(c)
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected an HTTP error, got %v", err)
			}
			if he.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", he.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	run := func(userRoles []string, required ...string) error {
		c, _ := newAuthContext("")
		if userRoles != nil {
			ctx := context.WithValue(c.Request().Context(), UserRolesKey, userRoles)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return RequireRole(required...)(okHandler)(c)
	}

	if err := run([]string{"analyst"}, "analyst", "steward"); err != nil {
		t.Errorf("analyst should access an analyst-or-steward route: %v", err)
	}
	if err := run([]string{"admin"}, "steward"); err != nil {
		t.Errorf("admin should pass any role gate: %v", err)
	}
	if err := run([]string{"analyst"}, "steward"); err == nil {
		t.Error("analyst should not pass a steward-only gate")
	}
	if err := run(nil, "analyst"); err == nil {
		t.Error("a request with no roles should be forbidden")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	c, _ := newAuthContext("")
	err := DevAuthMiddleware()(func(c echo.Context) error {
		if UserIDFromContext(c.Request().Context()) != "dev-user" {
			t.Error("expected the dev user on context")
		}
		return RequireRole("steward")(okHandler)(c)
	})(c)
	if err != nil {
		t.Errorf("dev auth should satisfy any role gate: %v", err)
	}
}
