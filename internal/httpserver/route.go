package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Skotchmaster/foodshop/pkg/db"
	authmw "github.com/Skotchmaster/foodshop/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/foodshop/pkg/middleware/logging"
)

type Deps struct {
	DB      *gorm.DB
	Logger  *slog.Logger
	Session *authmw.AutoRefreshMiddleware

	Auth    *AuthHTTP
	Catalog *CatalogHTTP
	Cart    *CartHTTP
	Orders  *OrderHTTP
	Admin   *AdminHTTP

	// RateLimit is requests per second per client IP on login, registration
	// and checkout; zero disables limiting.
	RateLimit float64
	RateBurst int
}

func rateLimiter(rps float64, burst int) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "cannot identify client"})
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"success": false, "message": "too many requests, slow down"})
		},
	})
}

func Register(e *echo.Echo, d *Deps) {
	reqLog := loggingmw.RequestLogger(d.Logger)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, reqLog)
	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, d.DB); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}, reqLog)

	mw := []echo.MiddlewareFunc{reqLog, d.Session.Identify}
	var throttle []echo.MiddlewareFunc
	if d.RateLimit > 0 {
		throttle = append(throttle, rateLimiter(d.RateLimit, d.RateBurst))
	}

	// /auth/refresh must see the refresh cookie before anything rotates it.
	auth := e.Group("/auth", reqLog)
	auth.POST("/register", d.Auth.Register, throttle...)
	auth.POST("/login", d.Auth.Login, throttle...)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout, d.Session.Identify)
	auth.GET("/me", d.Auth.Me, d.Session.Identify)

	e.GET("/products", d.Catalog.GetProducts, mw...)
	e.GET("/products/search", d.Catalog.SearchProducts, mw...)
	e.GET("/products/:id", d.Catalog.GetProduct, mw...)
	e.GET("/suppliers", d.Catalog.GetSuppliers, mw...)

	supplier := e.Group("/supplier", mw...)
	supplier.GET("/products", d.Catalog.MyProducts)
	supplier.POST("/products", d.Catalog.CreateProduct)
	supplier.PATCH("/products/:id", d.Catalog.PatchProduct)
	supplier.DELETE("/products/:id", d.Catalog.DeleteProduct)
	supplier.GET("/orders", d.Orders.SupplierOrders)

	cart := e.Group("/cart", mw...)
	cart.GET("", d.Cart.GetCart)
	cart.DELETE("", d.Cart.Clear)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items/:productId", d.Cart.UpdateItem)
	cart.DELETE("/items/:productId", d.Cart.RemoveItem)

	orders := e.Group("/orders", mw...)
	orders.POST("/checkout", d.Orders.Checkout, throttle...)
	orders.GET("", d.Orders.MyOrders)
	orders.GET("/:id", d.Orders.GetOrder)
	orders.PATCH("/:id/status", d.Orders.UpdateStatus)

	admin := e.Group("/admin", mw...)
	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/users", d.Admin.Users)
	admin.GET("/suppliers/pending", d.Admin.PendingSuppliers)
	admin.POST("/suppliers/:id/approve", d.Admin.ApproveSupplier)
	admin.POST("/suppliers/:id/reject", d.Admin.RejectSupplier)
	admin.PATCH("/users/:id/role", d.Admin.UpdateRole)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)
	admin.GET("/orders", d.Orders.AllOrders)
}
