package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "userID"

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authz := c.Request().Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			// Rendered by the server's error handler in the shared envelope.
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		uid := userIDFromClaims(claims)
		if uid == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		c.Set(UserIDKey, uid)
		return next(c)
	}
}

// userIDFromClaims accepts the id claim or the standard sub, as either a
// number or a numeric string.
func userIDFromClaims(claims jwt.MapClaims) uint64 {
	for _, key := range []string{"id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return uint64(v)
			}
		case string:
			if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// CallerID reads the authenticated user id set by RequireAuth.
func CallerID(c echo.Context) uint64 {
	uid, _ := c.Get(UserIDKey).(uint64)
	return uid
}
