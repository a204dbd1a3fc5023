package authmw

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/pkg/logging"
	"github.com/Skotchmaster/foodshop/pkg/tokens"
)

// Keys under which the caller's identity is stored in the echo context.
const (
	CtxUserID     = "user_id"
	CtxRole       = "role"
	CtxApproved   = "approved"
	CtxSuperAdmin = "super_admin"
	CtxSessionID  = "sid"
)

// Sessions is the server-side view of login sessions: it exchanges refresh
// tokens and reports whether a session id is still open.
type Sessions interface {
	RefreshTokens(ctx context.Context, refreshToken string) (*tokens.Pair, error)
	SessionActive(ctx context.Context, sid string) (bool, error)
}

type AutoRefreshMiddleware struct {
	JWTSecret    []byte
	Sessions     Sessions
	CookieSecure bool
}

func NewAutoRefreshMiddleware(secret []byte, sessions Sessions, cookieSecure bool) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:    secret,
		Sessions:     sessions,
		CookieSecure: cookieSecure,
	}
}

// Identify attaches the caller's identity when the request carries a valid
// access token of an open session, or an expired one together with a usable
// refresh token. Anything else passes through as anonymous; handlers decide
// whether that is enough.
func (m *AutoRefreshMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims := m.resolve(c); claims != nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func bearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (m *AutoRefreshMiddleware) resolve(c echo.Context) *tokens.AccessClaims {
	l := logging.FromContext(c.Request().Context()).With("middleware", "auth.identify")

	access := bearer(c)
	fromCookie := false
	if access == "" {
		if ck, err := c.Cookie(tokens.AccessCookie); err == nil {
			access = ck.Value
			fromCookie = true
		}
	}

	if access != "" {
		claims, err := tokens.AccessClaimsFromToken(access, m.JWTSecret)
		if err == nil {
			// A logged-out session keeps signed access tokens until they expire.
			if !m.sessionOpen(c.Request().Context(), claims.SessionID) {
				l.Info("session_closed", "sid", claims.SessionID)
				if fromCookie {
					m.clearAuthCookies(c)
				}
				return nil
			}
			return claims
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			l.Warn("invalid_access_token", "error", err)
			if fromCookie {
				m.clearAuthCookies(c)
			}
			return nil
		}
	}

	refreshCookie, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || refreshCookie.Value == "" || m.Sessions == nil {
		return nil
	}

	pair, err := m.Sessions.RefreshTokens(c.Request().Context(), refreshCookie.Value)
	if err != nil {
		l.Info("refresh_failed", "error", err)
		m.clearAuthCookies(c)
		return nil
	}
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, pair.AccessToken, "/", pair.AccessExp, m.CookieSecure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, pair.RefreshToken, "/", pair.RefreshExp, m.CookieSecure))

	claims, err := tokens.AccessClaimsFromToken(pair.AccessToken, m.JWTSecret)
	if err != nil {
		l.Error("refreshed_token_invalid", "error", err)
		m.clearAuthCookies(c)
		return nil
	}
	return claims
}

func (m *AutoRefreshMiddleware) sessionOpen(ctx context.Context, sid string) bool {
	if m.Sessions == nil {
		return true
	}
	if sid == "" {
		return false
	}
	open, err := m.Sessions.SessionActive(ctx, sid)
	if err != nil {
		logging.FromContext(ctx).Error("session_lookup_error", "error", err)
		return false
	}
	return open
}

func (m *AutoRefreshMiddleware) clearAuthCookies(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", m.CookieSecure))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", m.CookieSecure))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	id, err := claims.UserID()
	if err != nil {
		return
	}
	c.Set(CtxUserID, id)
	c.Set(CtxRole, claims.Role)
	c.Set(CtxApproved, claims.Approved)
	c.Set(CtxSuperAdmin, claims.SuperAdmin)
	c.Set(CtxSessionID, claims.SessionID)

	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("user_id", id)
	c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))
}
