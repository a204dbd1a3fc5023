package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/mykafka"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/repo"
	pkg_hash "github.com/Skotchmaster/foodshop/pkg/hash"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

// AdminService is the user-management surface. Every mutation loads the
// acting admin and the target from storage and runs the policy guards
// before touching anything.
type AdminService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

func (s *AdminService) actor(ctx context.Context, sess *policy.Session) (*models.User, error) {
	if err := policy.Require(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.Repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("get actor", err)
	}
	if u.Role != models.RoleAdmin {
		return nil, policy.ErrRoleNotAllowed
	}
	return u, nil
}

func (s *AdminService) target(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("get user", err)
	}
	return u, nil
}

func (s *AdminService) ListUsers(ctx context.Context, sess *policy.Session) ([]models.User, error) {
	if _, err := s.actor(ctx, sess); err != nil {
		return nil, err
	}
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, persistence("list users", err)
	}
	return users, nil
}

func (s *AdminService) PendingSuppliers(ctx context.Context, sess *policy.Session) ([]models.User, error) {
	if _, err := s.actor(ctx, sess); err != nil {
		return nil, err
	}
	users, err := s.Repo.ListPendingSuppliers(ctx)
	if err != nil {
		return nil, persistence("list pending suppliers", err)
	}
	return users, nil
}

func (s *AdminService) Stats(ctx context.Context, sess *policy.Session) (*models.UserStats, error) {
	if _, err := s.actor(ctx, sess); err != nil {
		return nil, err
	}
	stats, err := s.Repo.UserStats(ctx)
	if err != nil {
		return nil, persistence("user stats", err)
	}
	return stats, nil
}

func (s *AdminService) ApproveSupplier(ctx context.Context, sess *policy.Session, id uint) error {
	return s.setApproval(ctx, sess, id, true)
}

// RejectSupplier withdraws approval; the supplier's products drop out of the
// catalog and the supplier can no longer sign in.
func (s *AdminService) RejectSupplier(ctx context.Context, sess *policy.Session, id uint) error {
	return s.setApproval(ctx, sess, id, false)
}

func (s *AdminService) setApproval(ctx context.Context, sess *policy.Session, id uint, approved bool) error {
	l := logging.FromContext(ctx).With("svc", "admin.set_approval", "user_id", id, "approved", approved)

	a, err := s.actor(ctx, sess)
	if err != nil {
		return err
	}
	if err := s.Repo.SetSupplierApproval(ctx, id, approved); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		l.Error("set_approval_error", "error", err)
		return persistence("set approval", err)
	}
	l.Info("supplier_approval_changed", "by", a.ID)

	event := "supplier_rejected"
	if approved {
		event = "supplier_approved"
	}
	publish(ctx, s.Events, mykafka.TopicUsers, map[string]any{
		"type":     event,
		"user_id":  id,
		"actor_id": a.ID,
	})
	return nil
}

// UpdateRole changes a user's role. Customers and admins are always
// approved; a new supplier keeps whatever approval the user had.
func (s *AdminService) UpdateRole(ctx context.Context, sess *policy.Session, id uint, role models.Role) error {
	l := logging.FromContext(ctx).With("svc", "admin.update_role", "user_id", id, "role", role)

	a, err := s.actor(ctx, sess)
	if err != nil {
		return err
	}
	if !role.Valid() {
		return invalid("role", "must be customer, supplier or admin")
	}
	t, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanChangeRole(a, t, role); err != nil {
		l.Warn("update_role_refused", "by", a.ID, "error", err)
		return err
	}

	approved := t.Approved
	if role != models.RoleSupplier {
		approved = true
	}
	if err := s.Repo.UpdateUserRole(ctx, t.ID, role, approved); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return persistence("update role", err)
	}
	l.Info("role_changed", "by", a.ID, "from", t.Role)

	publish(ctx, s.Events, mykafka.TopicUsers, map[string]any{
		"type":     "user_role_changed",
		"user_id":  t.ID,
		"actor_id": a.ID,
		"from":     t.Role,
		"to":       role,
	})
	return nil
}

// DeleteUser removes a user with their sessions and products.
func (s *AdminService) DeleteUser(ctx context.Context, sess *policy.Session, id uint) error {
	l := logging.FromContext(ctx).With("svc", "admin.delete_user", "user_id", id)

	a, err := s.actor(ctx, sess)
	if err != nil {
		return err
	}
	t, err := s.target(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanDelete(a, t); err != nil {
		l.Warn("delete_user_refused", "by", a.ID, "error", err)
		return err
	}
	if err := s.Repo.DeleteUser(ctx, t.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		l.Error("delete_user_error", "error", err)
		return persistence("delete user", err)
	}
	l.Info("user_deleted", "by", a.ID, "role", t.Role)

	publish(ctx, s.Events, mykafka.TopicUsers, map[string]any{
		"type":     "user_deleted",
		"user_id":  t.ID,
		"actor_id": a.ID,
	})
	return nil
}

// CreateSuperAdmin bootstraps the protected admin account. Only one may
// exist.
func (s *AdminService) CreateSuperAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return nil, invalid("name", "is required")
	case !validEmail(email):
		return nil, invalid("email", "is not a valid address")
	case len(password) < minPasswordLen:
		return nil, invalid("password", "must be at least 8 characters")
	}

	exists, err := s.Repo.SuperAdminExists(ctx)
	if err != nil {
		return nil, persistence("check super admin", err)
	}
	if exists {
		return nil, ErrConflict
	}
	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		return nil, persistence("hash password", err)
	}
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
		Approved:     true,
		SuperAdmin:   true,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, ErrConflict
		}
		return nil, persistence("create super admin", err)
	}
	return u, nil
}
