package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/foodshop/internal/models"
)

const newestFirst = "created_at DESC, id DESC"

func itemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// CreateOrder inserts the order row and then one row per item inside a single
// transaction. Any failure rolls back everything.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		order.Items = nil
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			order.Items = items
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				order.Items = items
				return err
			}
		}
		order.Items = items
		return nil
	})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items", itemsByID).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrdersByCustomer(ctx context.Context, customerID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", itemsByID).
		Where("customer_id = ?", customerID).
		Order(newestFirst).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrdersBySupplier returns orders holding at least one of the supplier's
// items, each carrying only that supplier's items.
func (r *GormRepo) ListOrdersBySupplier(ctx context.Context, supplierID uint) ([]models.Order, error) {
	sub := r.DB.Model(&models.OrderItem{}).Select("order_id").Where("supplier_id = ?", supplierID)

	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("supplier_id = ?", supplierID).Order("id ASC")
		}).
		Where("id IN (?)", sub).
		Order(newestFirst).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).Preload("Items", itemsByID).Order(newestFirst).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) OrderHasSupplier(ctx context.Context, orderID, supplierID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND supplier_id = ?", orderID, supplierID).
		Count(&n).Error
	return n > 0, err
}

// UpdateOrderStatus is last-write-wins.
func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
