// Package api 组装 gin 路由与中间件
package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/d60-Lab/storefront/docs"
	"github.com/d60-Lab/storefront/internal/api/handler"
	"github.com/d60-Lab/storefront/internal/api/middleware"
	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/pkg/logger"
)

type access int

const (
	public access = iota
	customer
	admin
)

type route struct {
	method string
	path   string
	access access
	handle gin.HandlerFunc
}

// RouterDeps 路由依赖
type RouterDeps struct {
	Handler *handler.Handler
	Tokens  *auth.TokenIssuer
	Users   repository.UserRepository
	Logger  *zap.Logger

	// Metrics 同时提供 /metrics 与 HTTP 指标，为 nil 时两者都关闭
	Metrics interface {
		middleware.HTTPRecorder
		Handler() http.Handler
	}
	RateLimiter  *middleware.RateLimiter
	AllowOrigins []string
	Tracing      bool
	Sentry       bool
	ServiceName  string
}

func routes(h *handler.Handler) []route {
	return []route{
		{http.MethodGet, "/health", public, h.Health},

		{http.MethodGet, "/api/v1/categories", public, h.ListCategories},
		{http.MethodGet, "/api/v1/categories/:id", public, h.GetCategory},
		{http.MethodGet, "/api/v1/products", public, h.ListProducts},
		{http.MethodGet, "/api/v1/products/:id", public, h.GetProduct},

		{http.MethodGet, "/api/v1/auth/profile", customer, h.Profile},
		{http.MethodGet, "/api/v1/cart", customer, h.GetCart},
		{http.MethodPost, "/api/v1/cart/items", customer, h.AddCartItem},
		{http.MethodPut, "/api/v1/cart/items/:product_id", customer, h.UpdateCartItem},
		{http.MethodDelete, "/api/v1/cart/items/:product_id", customer, h.RemoveCartItem},
		{http.MethodPost, "/api/v1/checkout/payment-intent", customer, h.CreatePaymentIntent},
		{http.MethodPost, "/api/v1/checkout", customer, h.Checkout},
		{http.MethodGet, "/api/v1/orders", customer, h.ListOrders},
		{http.MethodGet, "/api/v1/orders/:id", customer, h.GetOrder},

		{http.MethodPost, "/api/v1/admin/categories", admin, h.AdminCreateCategory},
		{http.MethodPost, "/api/v1/admin/products", admin, h.AdminCreateProduct},
		{http.MethodPatch, "/api/v1/admin/products/:id", admin, h.AdminUpdateProduct},
		{http.MethodGet, "/api/v1/admin/orders", admin, h.AdminListOrders},
		{http.MethodPatch, "/api/v1/admin/orders/:id/status", admin, h.AdminUpdateOrderStatus},
	}
}

// NewRouter 构建 gin 引擎与完整中间件链
func NewRouter(d RouterDeps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = logger.L()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.Recovery())
	if d.Sentry {
		r.Use(middleware.Sentry())
	}
	if d.Tracing {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middleware.RequestLogger(log))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	if d.Sentry {
		r.Use(middleware.ReportErrors())
	}
	if len(d.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  d.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:  []string{"Authorization", "Content-Type", handler.HeaderIdempotencyKey, middleware.HeaderRequestID},
			ExposeHeaders: []string{handler.HeaderIdempotencyKey, middleware.HeaderRequestID},
		}))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authn := middleware.Auth(d.Tokens, d.Users)
	adminOnly := middleware.RequireAdmin()
	for _, rt := range routes(d.Handler) {
		chain := []gin.HandlerFunc{}
		switch rt.access {
		case customer:
			chain = append(chain, authn)
		case admin:
			chain = append(chain, authn, adminOnly)
		}
		chain = append(chain, rt.handle)
		r.Handle(rt.method, rt.path, chain...)
	}
	return r
}
