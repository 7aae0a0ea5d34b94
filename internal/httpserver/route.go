package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/product_catalog/internal/auth"
	"github.com/Skotchmaster/product_catalog/internal/metrics"
	"github.com/Skotchmaster/product_catalog/internal/upload"
	loggingmw "github.com/Skotchmaster/product_catalog/pkg/middleware/logging"
)

type Deps struct {
	CatalogHandler *CatalogHTTP
	Images         *upload.ImageStore
	JWTSecret      []byte
	Logger         *slog.Logger
	Ready          func(ctx context.Context) error
}

// New builds the echo instance with the shared middleware chain and routes.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(Tracing())
	e.Use(metrics.Middleware())
	e.Use(echomw.CORS())
	e.Use(auth.CSRF(auth.DefaultCSRFConfig()))

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", metrics.Handler())
	e.Static("/uploads", d.Images.Dir)

	admin := auth.RequireAdmin(d.JWTSecret)
	image := d.Images.Single("image")

	products := e.Group("/api/products")
	products.GET("/search", d.CatalogHandler.SearchProducts)
	products.GET("", d.CatalogHandler.GetProducts)
	products.GET("/:id", d.CatalogHandler.GetProduct)

	products.POST("/upload", d.CatalogHandler.CreateProduct, admin, image)
	products.PUT("/:id", d.CatalogHandler.UpdateProduct, admin, image)
	products.DELETE("/:id", d.CatalogHandler.DeleteProduct, admin)
}
