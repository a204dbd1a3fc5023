package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

type checkoutRequest struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Note         string `json:"note"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "checkout_error", err)
	}
	order, err := h.Svc.Checkout(ctx, session(c), service.DeliveryInfo{
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Address:      req.Address,
		Phone:        req.Phone,
		Note:         req.Note,
	})
	if err != nil {
		return fail(c, l, "checkout_error", err)
	}
	return ok(c, http.StatusCreated, "order placed", echo.Map{
		"order_id": order.ID,
		"total":    order.Total,
	})
}

func (h *OrderHTTP) MyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_mine")

	orders, err := h.Svc.ListForCustomer(ctx, session(c))
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"orders": orders})
}

func (h *OrderHTTP) SupplierOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_supplier")

	orders, err := h.Svc.ListForSupplier(ctx, session(c))
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"orders": orders})
}

func (h *OrderHTTP) AllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_all")

	orders, err := h.Svc.ListAll(ctx, session(c))
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"orders": orders})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	order, err := h.Svc.GetByID(ctx, session(c), id)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"order": order})
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "update_status_error", err)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "update_status_error", err)
	}
	if err := h.Svc.UpdateStatus(ctx, session(c), id, req.Status); err != nil {
		return fail(c, l, "update_status_error", err)
	}
	return ok(c, http.StatusOK, "order status updated", echo.Map{"status": req.Status})
}
