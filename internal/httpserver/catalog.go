package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/internal/util"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

type productRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image"`
}

func pageParams(c echo.Context) (offset, limit int) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	return util.Calculate(page, size)
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_products")

	offset, limit := pageParams(c)
	total, items, err := h.Svc.List(ctx, offset, limit)
	if err != nil {
		return fail(c, l, "get_products_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{
		"items": items,
		"meta":  util.NewMeta(offset, limit, total),
	})
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search_products")

	var supplierID uint
	if raw := c.QueryParam("supplier_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fail(c, l, "search_products_error", &service.ValidationError{Field: "supplier_id", Reason: "must be a positive integer"})
		}
		supplierID = uint(v)
	}

	offset, limit := pageParams(c)
	total, items, err := h.Svc.Search(ctx, c.QueryParam("q"), supplierID, offset, limit)
	if err != nil {
		return fail(c, l, "search_products_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{
		"items": items,
		"meta":  util.NewMeta(offset, limit, total),
	})
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "get_product_error", err)
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return fail(c, l, "get_product_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"product": p})
}

func (h *CatalogHTTP) GetSuppliers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_suppliers")

	out, err := h.Svc.Suppliers(ctx)
	if err != nil {
		return fail(c, l, "get_suppliers_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"suppliers": out})
}

func (h *CatalogHTTP) MyProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "supplier.list_products")

	items, err := h.Svc.ListMine(ctx, session(c))
	if err != nil {
		return fail(c, l, "list_products_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"items": items})
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "supplier.create_product")

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "create_product_error", err)
	}
	in := service.ProductInput{Image: req.Image}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Price == nil {
		return fail(c, l, "create_product_error", &service.ValidationError{Field: "price", Reason: "is required"})
	}
	in.Price = *req.Price

	p, err := h.Svc.CreateProduct(ctx, session(c), in)
	if err != nil {
		return fail(c, l, "create_product_error", err)
	}
	l.Info("create_product_success", "product_id", p.ID)
	return ok(c, http.StatusCreated, "product created", echo.Map{"product": p})
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "supplier.patch_product")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "patch_product_error", err)
	}
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "patch_product_error", err)
	}
	p, err := h.Svc.UpdateProduct(ctx, session(c), id, service.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
	})
	if err != nil {
		return fail(c, l, "patch_product_error", err)
	}
	return ok(c, http.StatusOK, "product updated", echo.Map{"product": p})
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "supplier.delete_product")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "delete_product_error", err)
	}
	if err := h.Svc.DeleteProduct(ctx, session(c), id); err != nil {
		return fail(c, l, "delete_product_error", err)
	}
	return ok(c, http.StatusOK, "product deleted", nil)
}
