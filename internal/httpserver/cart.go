package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

type addItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	view, err := h.Svc.View(ctx, session(c))
	if err != nil {
		return fail(c, l, "get_cart_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"cart": view})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "add_item_error", err)
	}
	if req.ProductID == 0 {
		return fail(c, l, "add_item_error", &service.ValidationError{Field: "product_id", Reason: "is required"})
	}
	count, err := h.Svc.AddItem(ctx, session(c), req.ProductID, req.Quantity)
	if err != nil {
		return fail(c, l, "add_item_error", err)
	}
	return ok(c, http.StatusOK, "product added to cart", echo.Map{"cart_count": count})
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	id, err := parseID(c, "productId")
	if err != nil {
		return fail(c, l, "update_item_error", err)
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "update_item_error", err)
	}
	total, err := h.Svc.UpdateQuantity(ctx, session(c), id, req.Quantity)
	if err != nil {
		return fail(c, l, "update_item_error", err)
	}
	return ok(c, http.StatusOK, "cart updated", echo.Map{"total": total})
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	id, err := parseID(c, "productId")
	if err != nil {
		return fail(c, l, "remove_item_error", err)
	}
	count, err := h.Svc.RemoveItem(ctx, session(c), id)
	if err != nil {
		return fail(c, l, "remove_item_error", err)
	}
	return ok(c, http.StatusOK, "product removed from cart", echo.Map{"cart_count": count})
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	if err := h.Svc.Clear(ctx, session(c)); err != nil {
		return fail(c, l, "clear_cart_error", err)
	}
	return ok(c, http.StatusOK, "cart cleared", echo.Map{"cart_count": 0})
}
