package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

type AuthMiddleware struct {
	JWTSecret []byte
	// QueryParam, when set, is consulted after the header and cookie.
	// Browsers cannot attach headers to a WebSocket upgrade.
	QueryParam string
}

func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{JWTSecret: secret}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireRole(tokens.RoleAdmin)(next)
}

// RequireRole admits callers whose role is one of roles.
func (m *AuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			for _, r := range roles {
				if claims.Role == r {
					return nil
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, strings.Join(roles, " or ")+" access required")
		})
	}
}

func (m *AuthMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := m.tokenFrom(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if _, err := claims.UserID(); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AuthMiddleware) tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if ck, err := c.Cookie("accessToken"); err == nil && ck.Value != "" {
		return ck.Value
	}
	if m.QueryParam != "" {
		return c.QueryParam(m.QueryParam)
	}
	return ""
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	id, _ := claims.UserID()
	c.Set(ctxUserID, id)
	c.Set(ctxRole, claims.Role)
}

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID).(uint)
	return id, ok && id != 0
}

func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}
