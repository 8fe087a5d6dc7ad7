package httpserver

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/metrics"
	catalogsvc "storefront/internal/service/catalog"
	ordersvc "storefront/internal/service/order"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type OrderService interface {
	Submit(ctx context.Context, in ordersvc.SubmitInput) (domain.CheckoutResult, error)
	Get(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, in ordersvc.ListInput) (*ordersvc.OrderPage, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*domain.Order, error)
}

type CatalogService interface {
	List(ctx context.Context, q catalogsvc.ListQuery) (*catalogsvc.Page, error)
	ListByCategory(ctx context.Context, key string, q catalogsvc.ListQuery) (*catalogsvc.Page, error)
	Get(ctx context.Context, id int64) (*catalogsvc.Listing, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// Deps holds the services the handlers call.
type Deps struct {
	Orders  OrderService
	Catalog CatalogService
}

// Options tunes cross-cutting middleware.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db Pinger, deps Deps, opts Options) (*gin.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), correlationMiddleware())

	if len(opts.CORSOrigins) > 0 {
		cfg := corsConfig(opts.CORSOrigins)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		router.Use(cors.New(cfg))
	}
	if opts.Metrics != nil {
		router.Use(metricsMiddleware(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{orders: deps.Orders, catalog: deps.Catalog, logger: logger}
	api := router.Group("/api")
	if opts.RequestTimeout > 0 {
		api.Use(timeoutMiddleware(opts.RequestTimeout))
	}

	api.POST("/create-order", h.createOrder)
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:id", h.getOrder)
	api.PATCH("/orders/:id/status", h.updateOrderStatus)
	api.GET("/users/:userId/orders", h.listUserOrders)

	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	api.GET("/sale-products", h.listSaleProducts)
	api.GET("/categories", h.listCategories)
	api.GET("/categories/:key/products", h.listCategoryProducts)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found"})
	})

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", idempotencyHeader, events.CorrelationHeader},
		ExposeHeaders:    []string{events.CorrelationHeader, replayedHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

type handlers struct {
	orders  OrderService
	catalog CatalogService
	logger  *log.Logger
}
