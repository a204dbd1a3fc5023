package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/foodshop/internal/cartstore"
	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

// ProductLookup resolves products that customers may buy.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uint) (*models.ProductView, error)
}

// CartService keeps one cart per session. A cart only ever holds products
// of a single supplier.
type CartService struct {
	Store   cartstore.Store
	Catalog ProductLookup
}

type CartLine struct {
	ProductID    uint            `json:"product_id"`
	Name         string          `json:"name"`
	SupplierID   uint            `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Image        *string         `json:"image,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	SupplierID   uint            `json:"supplier_id,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Items        []CartLine      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

func (s *CartService) load(ctx context.Context, sess *policy.Session) (*cartstore.Cart, error) {
	if sess == nil || sess.Token == "" {
		return cartstore.NewCart(), nil
	}
	c, err := s.Store.Load(ctx, sess.Token)
	if err != nil {
		return nil, persistence("load cart", err)
	}
	return c, nil
}

func (s *CartService) save(ctx context.Context, sess *policy.Session, c *cartstore.Cart) error {
	if err := s.Store.Save(ctx, sess.Token, c); err != nil {
		return persistence("save cart", err)
	}
	return nil
}

// AddItem puts quantity units of the product in the cart, adding to any
// quantity already there. Quantities below 1 count as 1. It returns the new
// item count.
func (s *CartService) AddItem(ctx context.Context, sess *policy.Session, productID uint, quantity int) (int, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add_item", "product_id", productID)

	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return 0, err
	}
	if sess.Token == "" {
		return 0, policy.ErrNotAuthenticated
	}
	if quantity < 1 {
		quantity = 1
	}

	p, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	c, err := s.load(ctx, sess)
	if err != nil {
		return 0, err
	}
	if !c.Empty() && c.SupplierID != p.SupplierID {
		// Entries whose products left the catalog no longer bind the cart.
		live, err := s.ComputeItems(ctx, c)
		if err != nil {
			return 0, err
		}
		if len(live) > 0 {
			l.Info("mixed_supplier_refused", "cart_supplier", c.SupplierID, "product_supplier", p.SupplierID)
			return 0, &MixedSupplierError{SupplierID: c.SupplierID, SupplierName: c.SupplierName}
		}
		l.Info("stale_cart_reset", "cart_supplier", c.SupplierID)
		c.Reset()
	}
	if c.Empty() {
		c.SupplierID = p.SupplierID
		c.SupplierName = p.SupplierName
	}
	c.Items[productID] += quantity

	if err := s.save(ctx, sess, c); err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// UpdateQuantity sets the quantity of a product already in the cart and
// returns the recomputed total.
func (s *CartService) UpdateQuantity(ctx context.Context, sess *policy.Session, productID uint, quantity int) (decimal.Decimal, error) {
	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return decimal.Zero, err
	}
	if quantity < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}
	c, err := s.load(ctx, sess)
	if err != nil {
		return decimal.Zero, err
	}
	if _, ok := c.Items[productID]; !ok {
		return decimal.Zero, ErrProductNotInCart
	}
	c.Items[productID] = quantity
	if err := s.save(ctx, sess, c); err != nil {
		return decimal.Zero, err
	}

	lines, err := s.ComputeItems(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}
	return ComputeTotal(lines), nil
}

// RemoveItem drops the product from the cart. Absent products are not an
// error. It returns the new item count.
func (s *CartService) RemoveItem(ctx context.Context, sess *policy.Session, productID uint) (int, error) {
	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return 0, err
	}
	c, err := s.load(ctx, sess)
	if err != nil {
		return 0, err
	}
	if _, ok := c.Items[productID]; !ok {
		return c.Count(), nil
	}
	c.Remove(productID)
	if err := s.save(ctx, sess, c); err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Clear empties the cart. An anonymous caller has no cart, so there is
// nothing to clear and it succeeds.
func (s *CartService) Clear(ctx context.Context, sess *policy.Session) error {
	if sess == nil || sess.Token == "" {
		return nil
	}
	if err := policy.Require(sess, models.RoleCustomer, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, sess.Token); err != nil {
		return persistence("clear cart", err)
	}
	return nil
}

func (s *CartService) Count(ctx context.Context, sess *policy.Session) (int, error) {
	c, err := s.load(ctx, sess)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func (s *CartService) View(ctx context.Context, sess *policy.Session) (*CartView, error) {
	c, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	lines, err := s.ComputeItems(ctx, c)
	if err != nil {
		return nil, err
	}
	view := &CartView{Items: lines, Total: ComputeTotal(lines)}
	for _, line := range lines {
		view.Count += line.Quantity
	}
	if len(lines) > 0 {
		view.SupplierID = c.SupplierID
		view.SupplierName = c.SupplierName
	}
	return view, nil
}

// ComputeItems prices the cart from the live catalog. Entries whose product
// is gone or no longer offered are left out.
func (s *CartService) ComputeItems(ctx context.Context, c *cartstore.Cart) ([]CartLine, error) {
	lines := make([]CartLine, 0, len(c.Items))
	for _, id := range c.ProductIDs() {
		p, err := s.Catalog.GetProduct(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return nil, err
		}
		qty := c.Items[id]
		lines = append(lines, CartLine{
			ProductID:    p.ID,
			Name:         p.Name,
			SupplierID:   p.SupplierID,
			SupplierName: p.SupplierName,
			Image:        p.Image,
			Price:        p.Price,
			Quantity:     qty,
			Subtotal:     p.Price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return lines, nil
}

func ComputeTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}
