package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/mykafka"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

const maxProductName = 255

// ProductIndex is the full-text side of the catalog. Postgres stays the
// source of truth; the index only yields ids.
type ProductIndex interface {
	Upsert(ctx context.Context, p *models.Product) error
	Remove(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, supplierID uint, from, size int) (int64, []uint, error)
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  ProductIndex
	Events EventPublisher
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Image       *string
}

type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Image       *string
}

// GetProduct returns a product offered to customers. Products of suppliers
// that are not approved are reported as missing.
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.ProductView, error) {
	view, err := s.Repo.GetProductView(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistence("get product", err)
	}
	if !view.SupplierApproved {
		return nil, ErrProductNotFound
	}
	return view, nil
}

func (s *CatalogService) List(ctx context.Context, offset, limit int) (int64, []models.ProductView, error) {
	total, items, err := s.Repo.ListApprovedProducts(ctx, offset, limit)
	if err != nil {
		return 0, nil, persistence("list products", err)
	}
	return total, items, nil
}

// Search goes through the full-text index when one is configured and the
// query is not blank, and falls back to SQL matching otherwise or when the
// index fails.
func (s *CatalogService) Search(ctx context.Context, query string, supplierID uint, offset, limit int) (int64, []models.ProductView, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.search")

	query = strings.TrimSpace(query)
	if s.Index != nil && query != "" {
		total, ids, err := s.Index.Search(ctx, query, supplierID, offset, limit)
		if err == nil {
			items, err := s.Repo.ApprovedProductsByIDs(ctx, ids)
			if err != nil {
				return 0, nil, persistence("load search hits", err)
			}
			return total, items, nil
		}
		l.Warn("index_search_error", "error", err)
	}

	total, items, err := s.Repo.SearchProducts(ctx, query, supplierID, offset, limit)
	if err != nil {
		return 0, nil, persistence("search products", err)
	}
	return total, items, nil
}

func (s *CatalogService) Suppliers(ctx context.Context) ([]models.SupplierRef, error) {
	out, err := s.Repo.ListApprovedSuppliers(ctx)
	if err != nil {
		return nil, persistence("list suppliers", err)
	}
	return out, nil
}

// approvedSupplier loads the caller and checks it is a supplier cleared to
// sell. The stored record wins over the token so a revoked approval applies
// at once.
func approvedSupplier(ctx context.Context, r *repo.GormRepo, sess *policy.Session) (*models.User, error) {
	if err := policy.Require(sess, models.RoleSupplier); err != nil {
		return nil, err
	}
	u, err := r.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, policy.ErrNotAuthenticated
		}
		return nil, persistence("get user", err)
	}
	if u.Role != models.RoleSupplier {
		return nil, policy.ErrRoleNotAllowed
	}
	if !u.Approved {
		return nil, ErrAwaitingApproval
	}
	return u, nil
}

func (s *CatalogService) ListMine(ctx context.Context, sess *policy.Session) ([]models.Product, error) {
	u, err := approvedSupplier(ctx, s.Repo, sess)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListSupplierProducts(ctx, u.ID)
	if err != nil {
		return nil, persistence("list supplier products", err)
	}
	return items, nil
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	switch {
	case p.Name == "":
		return invalid("name", "is required")
	case utf8.RuneCountInString(p.Name) > maxProductName:
		return invalid("name", "must be at most 255 characters")
	case p.Description == "":
		return invalid("description", "is required")
	case p.Price.IsNegative():
		return invalid("price", "must not be negative")
	}
	p.Price = p.Price.Round(2)
	if p.Image != nil && strings.TrimSpace(*p.Image) == "" {
		p.Image = nil
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, sess *policy.Session, in ProductInput) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create_product")

	u, err := approvedSupplier(ctx, s.Repo, sess)
	if err != nil {
		return nil, err
	}
	p := &models.Product{
		SupplierID:  u.ID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Image:       in.Image,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		l.Error("create_product_error", "error", err)
		return nil, persistence("create product", err)
	}
	s.indexed(ctx, p, "product_created")
	return p, nil
}

// owned loads a product and checks the caller sells it.
func (s *CatalogService) owned(ctx context.Context, sess *policy.Session, id uint) (*models.Product, error) {
	u, err := approvedSupplier(ctx, s.Repo, sess)
	if err != nil {
		return nil, err
	}
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistence("get product", err)
	}
	if p.SupplierID != u.ID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, sess *policy.Session, id uint, patch ProductPatch) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.update_product", "product_id", id)

	p, err := s.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Image != nil {
		p.Image = patch.Image
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveProduct(ctx, p); err != nil {
		l.Error("update_product_error", "error", err)
		return nil, persistence("save product", err)
	}
	s.indexed(ctx, p, "product_updated")
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, sess *policy.Session, id uint) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete_product", "product_id", id)

	p, err := s.owned(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteProduct(ctx, p.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrProductNotFound
		}
		l.Error("delete_product_error", "error", err)
		return persistence("delete product", err)
	}
	if s.Index != nil {
		if err := s.Index.Remove(ctx, p.ID); err != nil {
			l.Warn("index_remove_error", "error", err)
		}
	}
	publish(ctx, s.Events, mykafka.TopicProducts, map[string]any{
		"type":        "product_deleted",
		"product_id":  p.ID,
		"supplier_id": p.SupplierID,
		"user_id":     p.SupplierID,
	})
	return nil
}

func (s *CatalogService) indexed(ctx context.Context, p *models.Product, event string) {
	if s.Index != nil {
		if err := s.Index.Upsert(ctx, p); err != nil {
			logging.FromContext(ctx).Warn("index_upsert_error", "product_id", p.ID, "error", err)
		}
	}
	publish(ctx, s.Events, mykafka.TopicProducts, map[string]any{
		"type":        event,
		"product_id":  p.ID,
		"supplier_id": p.SupplierID,
		"user_id":     p.SupplierID,
		"price":       p.Price,
	})
}

// Reindex pushes every stored product into the full-text index.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	items, err := s.Repo.ListAllProducts(ctx)
	if err != nil {
		return 0, persistence("list products", err)
	}
	for i := range items {
		if err := s.Index.Upsert(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("index product %d: %w", items[i].ID, err)
		}
	}
	return len(items), nil
}
