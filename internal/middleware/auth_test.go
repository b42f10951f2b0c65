package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func runAuth(t *testing.T, authz string) (int, uint64) {
	t.Helper()
	e := echo.New()
	var got uint64
	mw := NewAuthMiddleware(testSecret)
	e.GET("/", func(c echo.Context) error {
		got = CallerID(c)
		return c.NoContent(http.StatusOK)
	}, mw.RequireAuth)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code, got
}

func TestRequireAuthValidToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{"id": 42})
	code, uid := runAuth(t, "Bearer "+token)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if uid != 42 {
		t.Fatalf("caller id = %d, want 42", uid)
	}
}

func TestRequireAuthSubClaim(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "17"})
	code, uid := runAuth(t, "Bearer "+token)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if uid != 17 {
		t.Fatalf("caller id = %d, want 17", uid)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	tests := []struct {
		name  string
		authz string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.MapClaims{"id": 42})},
		{"no usable claim", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"name": "x"})},
		{"zero id", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"id": 0})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, uid := runAuth(t, tt.authz)
			if code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", code)
			}
			if uid != 0 {
				t.Fatalf("handler ran with caller id %d", uid)
			}
		})
	}
}
