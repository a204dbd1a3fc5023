package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/internal/models"
)

const productViewColumns = `products.id, products.supplier_id, users.name AS supplier_name,
	(users.approved = TRUE AND users.role = 'supplier') AS supplier_approved, products.name, products.description,
	products.price, products.image, products.created_at`

func (r *GormRepo) productJoin(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("products").
		Joins("JOIN users ON users.id = products.supplier_id")
}

func (r *GormRepo) productViews(ctx context.Context) *gorm.DB {
	return r.productJoin(ctx).Select(productViewColumns)
}

func (r *GormRepo) approvedJoin(ctx context.Context) *gorm.DB {
	return r.productJoin(ctx).Where("users.approved = ? AND users.role = ?", true, models.RoleSupplier)
}

// GetProductView returns the product with its supplier whatever the
// supplier's approval state; SupplierApproved reports it.
func (r *GormRepo) GetProductView(ctx context.Context, id uint) (*models.ProductView, error) {
	var views []models.ProductView
	if err := r.productViews(ctx).Where("products.id = ?", id).Limit(1).Scan(&views).Error; err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

func (r *GormRepo) ListApprovedProducts(ctx context.Context, offset, limit int) (int64, []models.ProductView, error) {
	return r.pageApproved(ctx, func(q *gorm.DB) *gorm.DB { return q }, offset, limit)
}

// SearchProducts matches query against name and description, case
// insensitive. supplierID 0 means any supplier.
func (r *GormRepo) SearchProducts(ctx context.Context, query string, supplierID uint, offset, limit int) (int64, []models.ProductView, error) {
	filter := func(q *gorm.DB) *gorm.DB {
		if query = strings.TrimSpace(query); query != "" {
			like := "%" + strings.ToLower(query) + "%"
			q = q.Where("(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?)", like, like)
		}
		if supplierID != 0 {
			q = q.Where("products.supplier_id = ?", supplierID)
		}
		return q
	}
	return r.pageApproved(ctx, filter, offset, limit)
}

func (r *GormRepo) pageApproved(ctx context.Context, filter func(*gorm.DB) *gorm.DB, offset, limit int) (int64, []models.ProductView, error) {
	var total int64
	if err := filter(r.approvedJoin(ctx)).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.ProductView
	err := filter(r.approvedJoin(ctx)).
		Select(productViewColumns).
		Order("products.created_at DESC, products.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// ApprovedProductsByIDs keeps the order of ids and skips ids that are gone
// or belong to unapproved suppliers.
func (r *GormRepo) ApprovedProductsByIDs(ctx context.Context, ids []uint) ([]models.ProductView, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var views []models.ProductView
	if err := r.approvedJoin(ctx).Select(productViewColumns).Where("products.id IN ?", ids).Scan(&views).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.ProductView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	out := make([]models.ProductView, 0, len(views))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *GormRepo) ListSupplierProducts(ctx context.Context, supplierID uint) ([]models.Product, error) {
	var items []models.Product
	err := r.DB.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListApprovedSuppliers(ctx context.Context) ([]models.SupplierRef, error) {
	var out []models.SupplierRef
	err := r.DB.WithContext(ctx).
		Table("users").
		Distinct("users.id", "users.name").
		Joins("JOIN products ON products.supplier_id = users.id").
		Where("users.approved = ? AND users.role = ?", true, models.RoleSupplier).
		Order("users.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GormRepo) SaveProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) ListAllProducts(ctx context.Context) ([]models.Product, error) {
	var items []models.Product
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
