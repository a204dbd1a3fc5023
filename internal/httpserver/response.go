package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/policy"
	"github.com/Skotchmaster/foodshop/internal/service"
	authmw "github.com/Skotchmaster/foodshop/pkg/middleware/auth"
)

const internalMessage = "something went wrong, please try again later"

// failures maps business errors to a status and a user-facing message. The
// first match wins, so wrapped persistence errors are checked first.
var failures = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrPersistence, http.StatusInternalServerError, internalMessage},
	{policy.ErrNotAuthenticated, http.StatusUnauthorized, "please log in first"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
	{policy.ErrRoleNotAllowed, http.StatusForbidden, "your account type cannot do this"},
	{policy.ErrProtected, http.StatusForbidden, "the super admin account is protected"},
	{policy.ErrRequiresSuperAdmin, http.StatusForbidden, "only the super admin can manage administrators"},
	{policy.ErrSelfModification, http.StatusForbidden, "you cannot change or delete your own account"},
	{service.ErrForbidden, http.StatusForbidden, "you do not have access to this resource"},
	{service.ErrAwaitingApproval, http.StatusForbidden, "your supplier account is awaiting admin approval"},
	{service.ErrProductNotFound, http.StatusNotFound, "product not found"},
	{service.ErrProductNotInCart, http.StatusNotFound, "product is not in your cart"},
	{service.ErrNotFound, http.StatusNotFound, "not found"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, "quantity must be at least 1"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "status must be one of pending, processing, completed, cancelled"},
	{service.ErrConflict, http.StatusConflict, "already exists"},
}

// describe turns err into a status and a {success:false, message, ...} body.
func describe(err error) (int, echo.Map) {
	body := echo.Map{"success": false}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["message"] = verr.Field + " " + verr.Reason
		body["field"] = verr.Field
		return http.StatusBadRequest, body
	}
	var mixed *service.MixedSupplierError
	if errors.As(err, &mixed) {
		body["message"] = fmt.Sprintf("your cart already holds products from %s; clear it to order from another supplier", mixed.SupplierName)
		body["different_supplier"] = true
		body["current_supplier"] = mixed.SupplierName
		return http.StatusConflict, body
	}
	if errors.Is(err, service.ErrAwaitingApproval) {
		body["awaiting_approval"] = true
	}
	for _, f := range failures {
		if errors.Is(err, f.err) {
			body["message"] = f.message
			return f.status, body
		}
	}
	body["message"] = internalMessage
	return http.StatusInternalServerError, body
}

// fail writes the failure body for err. Business failures never surface as
// echo errors.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	status, body := describe(err)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "error", err)
	} else {
		l.Warn(event, "status", status, "error", err)
	}
	return c.JSON(status, body)
}

func ok(c echo.Context, status int, message string, fields echo.Map) error {
	body := echo.Map{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(status, body)
}

func invalidBody(c echo.Context, l *slog.Logger, event string, err error) error {
	l.Debug(event, "reason", "bind", "error", err)
	return fail(c, l, event, &service.ValidationError{Field: "body", Reason: "is not valid JSON"})
}

func parseID(c echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, &service.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return uint(v), nil
}

// session rebuilds the caller's identity from what the auth middleware put
// in the context; nil means anonymous.
func session(c echo.Context) *policy.Session {
	id, _ := c.Get(authmw.CtxUserID).(uint)
	if id == 0 {
		return nil
	}
	role, _ := c.Get(authmw.CtxRole).(string)
	approved, _ := c.Get(authmw.CtxApproved).(bool)
	super, _ := c.Get(authmw.CtxSuperAdmin).(bool)
	sid, _ := c.Get(authmw.CtxSessionID).(string)
	return &policy.Session{
		UserID:     id,
		Role:       models.Role(role),
		Approved:   approved,
		SuperAdmin: super,
		Token:      sid,
	}
}
