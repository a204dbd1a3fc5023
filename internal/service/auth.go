package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/foodshop/internal/cartstore"
	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/mykafka"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/repo"
	pkg_hash "github.com/Skotchmaster/foodshop/pkg/hash"
	"github.com/Skotchmaster/foodshop/pkg/logging"
	"github.com/Skotchmaster/foodshop/pkg/tokens"
)

const minPasswordLen = 8

type AuthService struct {
	Repo          *repo.GormRepo
	Carts         cartstore.Store
	Events        EventPublisher
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            models.Role
}

type LoginResult struct {
	tokens.Pair
	User *models.User
}

// validEmail accepts a bare address whose domain has at least two
// non-empty labels.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	domain := s[strings.LastIndexByte(s, '@')+1:]
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
	}
	return true
}

func (h *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Name == "":
		return nil, invalid("name", "is required")
	case in.Email == "":
		return nil, invalid("email", "is required")
	case !validEmail(in.Email):
		return nil, invalid("email", "is not a valid address")
	case len(in.Password) < minPasswordLen:
		return nil, invalid("password", "must be at least 8 characters")
	case in.Password != in.PasswordConfirm:
		return nil, invalid("password_confirm", "does not match")
	}
	if in.Role == "" {
		in.Role = models.RoleCustomer
	}
	if in.Role != models.RoleCustomer && in.Role != models.RoleSupplier {
		return nil, invalid("role", "must be customer or supplier")
	}

	pwHash, err := pkg_hash.HashPassword(in.Password)
	if err != nil {
		return nil, persistence("hash password", err)
	}
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         in.Role,
		Approved:     in.Role == models.RoleCustomer,
	}
	if err := h.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "reason", "email taken")
			return nil, ErrConflict
		}
		l.Error("register_error", "error", err)
		return nil, persistence("create user", err)
	}

	publish(ctx, h.Events, mykafka.TopicUsers, map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"role":    user.Role,
	})
	return user, nil
}

func (h *AuthService) issue(user *models.User, sessionID string, refreshExp time.Time) (*tokens.Pair, error) {
	accessExp := time.Now().Add(h.AccessTTL)
	access, err := tokens.NewAccessToken(h.JWTSecret, user.ID, string(user.Role), user.Approved, user.SuperAdmin, sessionID, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := tokens.NewRefreshToken(h.RefreshSecret, user.ID, sessionID, refreshExp)
	if err != nil {
		return nil, err
	}
	return &tokens.Pair{AccessToken: access, RefreshToken: refresh, AccessExp: accessExp, RefreshExp: refreshExp}, nil
}

// Login opens a new session. Suppliers awaiting approval are refused.
func (h *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := h.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, persistence("get user", err)
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}
	if user.Role == models.RoleSupplier && !user.Approved {
		l.Info("login_refused", "reason", "supplier awaiting approval")
		return nil, ErrAwaitingApproval
	}

	sid := tokens.NewSessionID()
	pair, err := h.issue(user, sid, time.Now().Add(h.RefreshTTL))
	if err != nil {
		return nil, persistence("sign tokens", err)
	}
	if err := h.Repo.AddRefreshToken(ctx, &models.RefreshToken{
		Token:     tokens.Sha256Hex(pair.RefreshToken),
		UserID:    user.ID,
		JTI:       sid,
		ExpiresAt: pair.RefreshExp,
	}); err != nil {
		l.Error("login_failed", "error", err)
		return nil, persistence("store session", err)
	}
	return &LoginResult{Pair: *pair, User: user}, nil
}

// Refresh rotates the session's refresh token and reissues an access token
// carrying the user's current role. The session id, and with it the cart,
// is kept.
func (h *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, h.RefreshSecret)
	if err != nil {
		return nil, policy.ErrNotAuthenticated
	}
	stored, err := h.Repo.GetRefreshByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("get session", err)
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) || stored.Token != tokens.Sha256Hex(refreshToken) {
		l.Warn("refresh_refused", "jti", claims.ID, "revoked", stored.Revoked)
		return nil, policy.ErrNotAuthenticated
	}

	user, err := h.Repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("get user", err)
	}
	if user.Role == models.RoleSupplier && !user.Approved {
		return nil, ErrAwaitingApproval
	}

	pair, err := h.issue(user, stored.JTI, stored.ExpiresAt)
	if err != nil {
		return nil, persistence("sign tokens", err)
	}
	if err := h.Repo.RotateRefreshToken(ctx, stored.JTI, tokens.Sha256Hex(pair.RefreshToken), stored.ExpiresAt); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("rotate session", err)
	}
	return &LoginResult{Pair: *pair, User: user}, nil
}

// RefreshTokens adapts Refresh for the session middleware.
func (h *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	res, err := h.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &res.Pair, nil
}

// SessionActive reports whether sid names a session that is neither revoked
// nor past its expiry. Logout, user deletion and expiry all close it.
func (h *AuthService) SessionActive(ctx context.Context, sid string) (bool, error) {
	stored, err := h.Repo.GetRefreshByJTI(ctx, sid)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, persistence("get session", err)
	}
	return !stored.Revoked && time.Now().Before(stored.ExpiresAt), nil
}

// Logout revokes the session and drops its cart. Unknown or malformed tokens
// are ignored.
func (h *AuthService) Logout(ctx context.Context, refreshToken string, sess *policy.Session) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	sid := ""
	if sess != nil {
		sid = sess.Token
	}
	if claims, err := tokens.RefreshClaimsFromToken(refreshToken, h.RefreshSecret); err == nil {
		sid = claims.ID
	}
	if sid == "" {
		return nil
	}
	if err := h.Repo.RevokeRefresh(ctx, sid); err != nil {
		return persistence("revoke session", err)
	}
	if h.Carts != nil {
		if err := h.Carts.Delete(ctx, sid); err != nil {
			l.Warn("cart_delete_error", "error", err)
		}
	}
	return nil
}

func (h *AuthService) Me(ctx context.Context, sess *policy.Session) (*models.User, error) {
	if !policy.IsAuthenticated(sess) {
		return nil, policy.ErrNotAuthenticated
	}
	u, err := h.Repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("get user", err)
	}
	return u, nil
}
