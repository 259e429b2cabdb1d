package security

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v5"
	"golang.org/x/crypto/bcrypt"
)

// ContextOwnerKey holds the authenticated owner identity on the echo
// context.
const ContextOwnerKey = "owner_id"

// ServiceKeyHeader carries the shared key of internal callers (checkout).
const ServiceKeyHeader = "X-Service-Key"

// OwnerFrom returns the authenticated owner identity, empty when the
// request is unauthenticated.
func OwnerFrom(c echo.Context) string {
	owner, _ := c.Get(ContextOwnerKey).(string)
	return owner
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]any{
		"ok":    false,
		"error": "Authentification requise",
	})
}

// RequireOwner authenticates session bearer tokens (HS256 JWT minted by the
// surrounding web application) and stores the subject as the owner
// identity. Unauthenticated calls get 403.
func RequireOwner(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get("Authorization"))
			if raw == "" {
				return forbidden(c)
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return forbidden(c)
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				return forbidden(c)
			}

			c.Set(ContextOwnerKey, sub)
			return next(c)
		}
	}
}

// RequireServiceKey guards internal endpoints. Only the bcrypt hash of the
// key is configured; the plaintext never leaves the caller's environment.
func RequireServiceKey(keyHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(ServiceKeyHeader)
			if key == "" || keyHash == "" {
				return forbidden(c)
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				return forbidden(c)
			}
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
