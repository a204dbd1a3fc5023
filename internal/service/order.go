package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/mykafka"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

const MaxNoteLength = 500

type OrderService struct {
	Repo   *repo.GormRepo
	Cart   *CartService
	Events EventPublisher
}

type DeliveryInfo struct {
	CustomerName string
	Email        string
	Address      string
	Phone        string
	Note         string
}

func (d *DeliveryInfo) validate() error {
	d.CustomerName = strings.TrimSpace(d.CustomerName)
	d.Email = strings.TrimSpace(d.Email)
	d.Address = strings.TrimSpace(d.Address)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Note = strings.TrimSpace(d.Note)

	switch {
	case d.CustomerName == "":
		return invalid("customer_name", "is required")
	case d.Email == "":
		return invalid("email", "is required")
	case d.Address == "":
		return invalid("address", "is required")
	case d.Phone == "":
		return invalid("phone", "is required")
	case !validEmail(d.Email):
		return invalid("email", "is not a valid address")
	case utf8.RuneCountInString(d.Note) > MaxNoteLength:
		return invalid("note", "must be at most 500 characters")
	}
	return nil
}

// Checkout turns the session cart into an order. Prices come from the live
// catalog, never from the caller. The cart is cleared only after the order
// and all its items have been committed.
func (s *OrderService) Checkout(ctx context.Context, sess *policy.Session, info DeliveryInfo) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.checkout")

	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return nil, err
	}
	cart, err := s.Cart.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, invalid("cart", "is empty")
	}
	if err := info.validate(); err != nil {
		return nil, err
	}

	lines, err := s.Cart.ComputeItems(ctx, cart)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, invalid("cart", "has no products available")
	}

	order := &models.Order{
		CustomerID:      sess.UserID,
		Status:          models.OrderStatusPending,
		CustomerName:    info.CustomerName,
		Email:           info.Email,
		DeliveryAddress: info.Address,
		Phone:           info.Phone,
		Note:            info.Note,
		Items:           make([]models.OrderItem, 0, len(lines)),
	}
	total := decimal.Zero
	for _, line := range lines {
		item := models.OrderItem{
			ProductID:   line.ProductID,
			SupplierID:  line.SupplierID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
		}
		total = total.Add(item.Subtotal())
		order.Items = append(order.Items, item)
	}
	order.Total = total

	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		l.Error("checkout_error", "customer_id", sess.UserID, "error", err)
		return nil, persistence("create order", err)
	}

	if err := s.Cart.Clear(ctx, sess); err != nil {
		l.Warn("cart_clear_error", "order_id", order.ID, "error", err)
	}
	l.Info("checkout_success", "order_id", order.ID, "total", order.Total.StringFixed(2))

	publish(ctx, s.Events, mykafka.TopicOrders, map[string]any{
		"type":        "order_created",
		"order_id":    order.ID,
		"user_id":     order.CustomerID,
		"supplier_id": cart.SupplierID,
		"total":       order.Total,
		"items":       len(order.Items),
	})
	return order, nil
}

// ListForCustomer returns the caller's own orders, newest first.
func (s *OrderService) ListForCustomer(ctx context.Context, sess *policy.Session) ([]models.Order, error) {
	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return nil, err
	}
	orders, err := s.Repo.ListOrdersByCustomer(ctx, sess.UserID)
	if err != nil {
		return nil, persistence("list customer orders", err)
	}
	return orders, nil
}

// ListForSupplier returns every order holding the caller's products. Each
// order carries only the caller's own items.
func (s *OrderService) ListForSupplier(ctx context.Context, sess *policy.Session) ([]models.Order, error) {
	if err := policy.Require(sess, models.RoleSupplier); err != nil {
		return nil, err
	}
	orders, err := s.Repo.ListOrdersBySupplier(ctx, sess.UserID)
	if err != nil {
		return nil, persistence("list supplier orders", err)
	}
	return orders, nil
}

func (s *OrderService) GetByID(ctx context.Context, sess *policy.Session, id uint) (*models.Order, error) {
	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistence("get order", err)
	}
	if sess.Role == models.RoleCustomer && order.CustomerID != sess.UserID {
		return nil, ErrForbidden
	}
	return order, nil
}

// UpdateStatus lets a supplier set any valid status on an order holding its
// products. Any status may follow any other; concurrent updates are last
// write wins.
func (s *OrderService) UpdateStatus(ctx context.Context, sess *policy.Session, id uint, status models.OrderStatus) error {
	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", id)

	if err := policy.Require(sess, models.RoleSupplier); err != nil {
		return err
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	u, err := approvedSupplier(ctx, s.Repo, sess)
	if err != nil {
		return err
	}
	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return persistence("get order", err)
	}
	ok, err := s.Repo.OrderHasSupplier(ctx, order.ID, u.ID)
	if err != nil {
		return persistence("check order supplier", err)
	}
	if !ok {
		return ErrForbidden
	}
	if err := s.Repo.UpdateOrderStatus(ctx, order.ID, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return persistence("update order status", err)
	}
	l.Info("order_status_updated", "from", order.Status, "to", status)

	publish(ctx, s.Events, mykafka.TopicOrders, map[string]any{
		"type":        "order_status_changed",
		"order_id":    order.ID,
		"user_id":     order.CustomerID,
		"supplier_id": u.ID,
		"status":      status,
	})
	return nil
}

func (s *OrderService) ListAll(ctx context.Context, sess *policy.Session) ([]models.Order, error) {
	if err := policy.Require(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	orders, err := s.Repo.ListAllOrders(ctx)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	return orders, nil
}
