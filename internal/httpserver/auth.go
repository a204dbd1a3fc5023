package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/logging"
	"github.com/Skotchmaster/foodshop/pkg/tokens"
)

type AuthHTTP struct {
	Svc          *service.AuthService
	CookieSecure bool
}

type registerRequest struct {
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	PasswordConfirm string      `json:"password_confirm"`
	Role            models.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHTTP) setCookies(c echo.Context, p tokens.Pair) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, p.AccessToken, "/", p.AccessExp, h.CookieSecure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, p.RefreshToken, "/", p.RefreshExp, h.CookieSecure))
}

func (h *AuthHTTP) clearCookies(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", h.CookieSecure))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", h.CookieSecure))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "register_error", err)
	}
	u, err := h.Svc.Register(ctx, service.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	if err != nil {
		return fail(c, l, "register_error", err)
	}

	msg := "registration successful, you can now log in"
	if u.Role == models.RoleSupplier {
		msg = "registration successful, your supplier account is awaiting admin approval"
	}
	l.Info("register_success", "user_id", u.ID, "role", u.Role)
	return ok(c, http.StatusCreated, msg, echo.Map{"user": u})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "login_error", err)
	}
	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "login_error", err)
	}

	h.setCookies(c, res.Pair)
	l.Info("login_success", "user_id", res.User.ID)
	return ok(c, http.StatusOK, "logged in", echo.Map{
		"user":         res.User,
		"access_token": res.AccessToken,
		"expires_at":   res.AccessExp,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	ck, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || ck.Value == "" {
		h.clearCookies(c)
		return fail(c, l, "refresh_error", policy.ErrNotAuthenticated)
	}
	res, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		h.clearCookies(c)
		return fail(c, l, "refresh_error", err)
	}

	h.setCookies(c, res.Pair)
	return ok(c, http.StatusOK, "session refreshed", echo.Map{
		"access_token": res.AccessToken,
		"expires_at":   res.AccessExp,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	refresh := ""
	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil {
		refresh = ck.Value
	}
	if err := h.Svc.Logout(ctx, refresh, session(c)); err != nil {
		return fail(c, l, "logout_error", err)
	}
	h.clearCookies(c)
	return ok(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	u, err := h.Svc.Me(ctx, session(c))
	if err != nil {
		return fail(c, l, "me_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"user": u})
}
