package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/internal/cartstore"
	"github.com/Skotchmaster/foodshop/internal/models"
	"github.com/Skotchmaster/foodshop/internal/repo"
	"github.com/Skotchmaster/foodshop/internal/service"
	"github.com/Skotchmaster/foodshop/internal/testutil"
	"github.com/Skotchmaster/foodshop/pkg/logging"
	authmw "github.com/Skotchmaster/foodshop/pkg/middleware/auth"
)

var secret = []byte("access-secret")

type testEnv struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestEnv(t *testing.T, rateLimit float64) *testEnv {
	t.Helper()

	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	carts := cartstore.NewMemoryStore(time.Hour)
	authSvc := &service.AuthService{
		Repo:          r,
		Carts:         carts,
		JWTSecret:     secret,
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}
	catalog := &service.CatalogService{Repo: r}
	cart := &service.CartService{Store: carts, Catalog: catalog}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	Register(e, &Deps{
		DB:        gdb,
		Logger:    logging.NewWithWriter(io.Discard, "error"),
		Session:   authmw.NewAutoRefreshMiddleware(secret, authSvc, false),
		Auth:      &AuthHTTP{Svc: authSvc},
		Catalog:   &CatalogHTTP{Svc: catalog},
		Cart:      &CartHTTP{Svc: cart},
		Orders:    &OrderHTTP{Svc: &service.OrderService{Repo: r, Cart: cart}},
		Admin:     &AdminHTTP{Svc: &service.AdminService{Repo: r}},
		RateLimit: rateLimit,
		RateBurst: 1,
	})
	return &testEnv{e: e, db: gdb}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (env *testEnv) login(t *testing.T, name string) []*http.Cookie {
	t.Helper()
	rec, body := env.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    name + "@example.com",
		"password": testutil.Password,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, body)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	return cookies
}

func path(format string, id uint) string {
	return strings.Replace(format, ":id", strconv.FormatUint(uint64(id), 10), 1)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	for _, p := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}
}

func TestCheckoutFlow(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	s := testutil.User(t, env.db, "kitchen", models.RoleSupplier, true)
	p := testutil.Product(t, env.db, s, "pizza", 120)
	q := testutil.Product(t, env.db, s, "salad", 80)
	testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	ann := env.login(t, "ann")

	rec, body := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID, "quantity": 2}, ann)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["cart_count"])

	rec, body = env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": q.ID}, ann)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.EqualValues(t, 3, body["cart_count"])

	rec, body = env.do(t, http.MethodGet, "/cart", nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := body["cart"].(map[string]any)
	assert.Equal(t, "320", cart["total"])
	assert.Equal(t, "kitchen", cart["supplier_name"])

	rec, body = env.do(t, http.MethodPost, "/orders/checkout", map[string]any{
		"customer_name": "Ann",
		"email":         "ann@example.com",
		"address":       "1 Main St",
		"phone":         "555",
	}, ann)
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.Equal(t, "320", body["total"])
	orderID := uint(body["order_id"].(float64))

	_, body = env.do(t, http.MethodGet, "/cart", nil, ann)
	assert.Empty(t, body["cart"].(map[string]any)["items"])

	rec, body = env.do(t, http.MethodGet, path("/orders/:id", orderID), nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)
	order := body["order"].(map[string]any)
	assert.Len(t, order["items"], 2)
	assert.Equal(t, "pending", order["status"])

	sup := env.login(t, "kitchen")
	rec, body = env.do(t, http.MethodPatch, path("/orders/:id/status", orderID), map[string]string{"status": "completed"}, sup)
	require.Equal(t, http.StatusOK, rec.Code, body)

	rec, body = env.do(t, http.MethodPatch, path("/orders/:id/status", orderID), map[string]string{"status": "lost"}, sup)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, body = env.do(t, http.MethodGet, "/supplier/orders", nil, sup)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["orders"], 1)
}

func TestMixedSupplierResponse(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	first := testutil.User(t, env.db, "first", models.RoleSupplier, true)
	second := testutil.User(t, env.db, "second", models.RoleSupplier, true)
	a := testutil.Product(t, env.db, first, "a", 3)
	b := testutil.Product(t, env.db, second, "b", 4)
	testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	ann := env.login(t, "ann")

	rec, _ := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": a.ID}, ann)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": b.ID}, ann)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["different_supplier"])
	assert.Equal(t, "first", body["current_supplier"])
	assert.Contains(t, body["message"], "first")
}

func TestAnonymousCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	s := testutil.User(t, env.db, "kitchen", models.RoleSupplier, true)
	p := testutil.Product(t, env.db, s, "pizza", 1)

	rec, body := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])

	rec, body = env.do(t, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["cart"].(map[string]any)["count"])

	rec, _ = env.do(t, http.MethodDelete, "/cart", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, path("/cart/items/:id", p.ID), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = env.do(t, http.MethodPatch, path("/cart/items/:id", p.ID), map[string]int{"quantity": 2}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutValidationResponse(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	s := testutil.User(t, env.db, "kitchen", models.RoleSupplier, true)
	p := testutil.Product(t, env.db, s, "pizza", 1)
	testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	ann := env.login(t, "ann")

	rec, _ := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID}, ann)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/orders/checkout", map[string]any{
		"customer_name": "Ann",
		"email":         "ann@example.com",
		"address":       "1 Main St",
		"phone":         "555",
		"note":          strings.Repeat("x", 501),
	}, ann)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "note", body["field"])

	var n int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdminGuards(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	root := testutil.SuperAdmin(t, env.db, "root")
	testutil.User(t, env.db, "boss", models.RoleAdmin, true)
	cust := testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	pending := testutil.User(t, env.db, "newbie", models.RoleSupplier, false)
	boss := env.login(t, "boss")

	rec, body := env.do(t, http.MethodDelete, path("/admin/users/:id", root.ID), nil, boss)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "the super admin account is protected", body["message"])

	rec, body = env.do(t, http.MethodPatch, path("/admin/users/:id/role", cust.ID), map[string]string{"role": "admin"}, boss)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "only the super admin can manage administrators", body["message"])

	rec, _ = env.do(t, http.MethodPost, path("/admin/suppliers/:id/approve", pending.ID), nil, boss)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/admin/stats", nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["total_users"])
	assert.EqualValues(t, 1, stats["approved_suppliers"])

	ann := env.login(t, "ann")
	rec, _ = env.do(t, http.MethodGet, "/admin/users", nil, ann)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndPendingSupplierLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	rec, body := env.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name":             "Kitchen",
		"email":            "kitchen@example.com",
		"password":         "longpassword",
		"password_confirm": "longpassword",
		"role":             "supplier",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec, body = env.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "kitchen@example.com",
		"password": "longpassword",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, true, body["awaiting_approval"])

	rec, _ = env.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name":             "Again",
		"email":            "kitchen@example.com",
		"password":         "longpassword",
		"password_confirm": "longpassword",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	ann := env.login(t, "ann")

	rec, body := env.do(t, http.MethodGet, "/auth/me", nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann", body["user"].(map[string]any)["name"])

	rec, _ = env.do(t, http.MethodPost, "/auth/logout", nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)

	var refresh []*http.Cookie
	for _, ck := range ann {
		if ck.Name == "refreshToken" {
			refresh = append(refresh, ck)
		}
	}
	rec, _ = env.do(t, http.MethodPost, "/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoggedOutAccessTokenIsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0)
	s := testutil.User(t, env.db, "kitchen", models.RoleSupplier, true)
	p := testutil.Product(t, env.db, s, "pizza", 10)
	testutil.User(t, env.db, "ann", models.RoleCustomer, true)
	ann := env.login(t, "ann")

	var accessOnly []*http.Cookie
	for _, ck := range ann {
		if ck.Name == "accessToken" {
			accessOnly = append(accessOnly, ck)
		}
	}
	require.Len(t, accessOnly, 1)

	rec, _ := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID}, accessOnly)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/logout", nil, ann)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": p.ID}, accessOnly)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = env.do(t, http.MethodPost, "/orders/checkout", map[string]any{
		"customer_name": "Ann",
		"email":         "ann@example.com",
		"address":       "1 Main St",
		"phone":         "555",
	}, accessOnly)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/cart", nil, accessOnly)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["cart"].(map[string]any)["count"])

	var n int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestLoginRateLimited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, 0.001)
	creds := map[string]string{"email": "nobody@example.com", "password": "x"}

	rec, _ := env.do(t, http.MethodPost, "/auth/login", creds, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, body := env.do(t, http.MethodPost, "/auth/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	status, body := describe(&service.ValidationError{Field: "email", Reason: "is required"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email", body["field"])

	status, body = describe(persistenceErr())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, internalMessage, body["message"])

	status, _ = describe(service.ErrProductNotInCart)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = describe(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func persistenceErr() error {
	return &wrapped{inner: service.ErrPersistence, detail: "pq: relation does not exist"}
}

type wrapped struct {
	inner  error
	detail string
}

func (w *wrapped) Error() string { return w.detail }
func (w *wrapped) Unwrap() error { return w.inner }
