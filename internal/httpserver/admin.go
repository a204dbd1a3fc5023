package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/pkg/logging"
)

type AdminHTTP struct {
	Svc *service.AdminService
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func (h *AdminHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.stats")

	stats, err := h.Svc.Stats(ctx, session(c))
	if err != nil {
		return fail(c, l, "stats_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"stats": stats})
}

func (h *AdminHTTP) Users(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.users")

	users, err := h.Svc.ListUsers(ctx, session(c))
	if err != nil {
		return fail(c, l, "list_users_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"users": users})
}

func (h *AdminHTTP) PendingSuppliers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.pending_suppliers")

	users, err := h.Svc.PendingSuppliers(ctx, session(c))
	if err != nil {
		return fail(c, l, "pending_suppliers_error", err)
	}
	return ok(c, http.StatusOK, "ok", echo.Map{"suppliers": users})
}

func (h *AdminHTTP) ApproveSupplier(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.approve_supplier")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "approve_supplier_error", err)
	}
	if err := h.Svc.ApproveSupplier(ctx, session(c), id); err != nil {
		return fail(c, l, "approve_supplier_error", err)
	}
	return ok(c, http.StatusOK, "supplier approved", nil)
}

func (h *AdminHTTP) RejectSupplier(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.reject_supplier")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "reject_supplier_error", err)
	}
	if err := h.Svc.RejectSupplier(ctx, session(c), id); err != nil {
		return fail(c, l, "reject_supplier_error", err)
	}
	return ok(c, http.StatusOK, "supplier rejected", nil)
}

func (h *AdminHTTP) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_role")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "update_role_error", err)
	}
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody(c, l, "update_role_error", err)
	}
	if err := h.Svc.UpdateRole(ctx, session(c), id, req.Role); err != nil {
		return fail(c, l, "update_role_error", err)
	}
	return ok(c, http.StatusOK, "role updated", echo.Map{"role": req.Role})
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_user")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, l, "delete_user_error", err)
	}
	if err := h.Svc.DeleteUser(ctx, session(c), id); err != nil {
		return fail(c, l, "delete_user_error", err)
	}
	return ok(c, http.StatusOK, "user deleted", nil)
}
