package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/service"
	"github.com/d60-Lab/storefront/pkg/response"
)

// APIVersion 健康检查返回的版本号
const APIVersion = "1.0"

// Handler HTTP 处理器，聚合各业务服务
type Handler struct {
	catalog  service.CatalogService
	carts    service.CartService
	checkout service.CheckoutService
	orders   service.OrderService
}

// NewHandler 创建处理器
func NewHandler(catalog service.CatalogService, carts service.CartService, checkout service.CheckoutService, orders service.OrderService) *Handler {
	return &Handler{catalog: catalog, carts: carts, checkout: checkout, orders: orders}
}

func currentUser(c *gin.Context) (*model.User, bool) {
	u, ok := auth.UserFrom(c.Request.Context())
	if !ok {
		response.Unauthorized(c, "authentication required")
		return nil, false
	}
	return u, true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// writeError 将服务层错误映射为 HTTP 响应
func writeError(c *gin.Context, err error) {
	var (
		stockErr   *service.InsufficientStockError
		paymentErr *service.PaymentFailedError
	)
	switch {
	case errors.As(err, &stockErr):
		response.Conflict(c, "insufficient_stock", err.Error(), gin.H{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &paymentErr):
		switch {
		case paymentErr.Declined:
			response.Fail(c, http.StatusPaymentRequired, "payment_declined", err.Error(), gin.H{"reason": paymentErr.Reason})
		case paymentErr.Timeout:
			_ = c.Error(err)
			response.Fail(c, http.StatusGatewayTimeout, "payment_timeout", "payment gateway timed out", gin.H{"retryable": true})
		default:
			_ = c.Error(err)
			response.Fail(c, http.StatusBadGateway, "payment_gateway_error", "payment gateway unavailable", gin.H{"retryable": true})
		}
	case errors.Is(err, service.ErrProductUnavailable):
		response.Fail(c, http.StatusBadRequest, "product_unavailable", err.Error(), nil)
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrCartItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "not allowed to access this resource")
	case errors.Is(err, service.ErrOutOfStock):
		response.Conflict(c, "insufficient_stock", err.Error(), nil)
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, "conflict", err.Error(), gin.H{"retryable": true})
	case errors.Is(err, service.ErrInvalidTransition):
		response.Conflict(c, "invalid_transition", err.Error(), nil)
	case errors.Is(err, service.ErrAlreadyExists):
		response.Conflict(c, "already_exists", err.Error(), nil)
	case errors.Is(err, context.Canceled):
		response.Fail(c, 499, "canceled", "request canceled", nil)
	default:
		response.InternalError(c, err)
	}
}
