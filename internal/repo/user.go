package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/internal/models"
)

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrUserAlreadyExist
	}
	return nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.DB.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *GormRepo) ListPendingSuppliers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.DB.WithContext(ctx).
		Where("role = ? AND approved = ?", models.RoleSupplier, false).
		Order("created_at DESC, id DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SetSupplierApproval touches only supplier rows; a missing or non-supplier
// id reports ErrNotFound.
func (r *GormRepo) SetSupplierApproval(ctx context.Context, id uint, approved bool) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", id, models.RoleSupplier).
		Update("approved", approved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND role = ?", id, models.RoleSupplier).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *GormRepo) UpdateUserRole(ctx context.Context, id uint, role models.Role, approved bool) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "approved": approved})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user together with their sessions and products.
// Orders stay: they carry their own delivery snapshot.
func (r *GormRepo) DeleteUser(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("supplier_id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepo) UserStats(ctx context.Context) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.DB.WithContext(ctx).Model(&models.User{}).Select(
		`COUNT(*) AS total_users,
		COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS customers,
		COALESCE(SUM(CASE WHEN role = ? AND approved = ? THEN 1 ELSE 0 END), 0) AS approved_suppliers,
		COALESCE(SUM(CASE WHEN role = ? AND approved = ? THEN 1 ELSE 0 END), 0) AS pending_suppliers,
		COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS admins`,
		models.RoleCustomer,
		models.RoleSupplier, true,
		models.RoleSupplier, false,
		models.RoleAdmin,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *GormRepo) SuperAdminExists(ctx context.Context) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND super_admin = ?", models.RoleAdmin, true).
		Count(&n).Error
	return n > 0, err
}
