package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/storefront/internal/service"
	"github.com/d60-Lab/storefront/pkg/response"
)

// HeaderIdempotencyKey 客户端重试结算时携带同一个值
const HeaderIdempotencyKey = "Idempotency-Key"

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// CreatePaymentIntent 按当前购物车金额创建支付 intent，供浏览器端确认
// @Summary 创建支付 intent
// @Tags 结算
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=paymentIntentResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/checkout/payment-intent [post]
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.checkout.CreatePaymentIntent(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, paymentIntentResponse{
		PaymentIntentID: res.IntentID,
		ClientSecret:    res.ClientSecret,
		Amount:          res.Amount.StringFixed(2),
		Currency:        res.Currency,
		IdempotencyKey:  res.IdempotencyKey,
	})
}

// Checkout 结算：支付成功后原子地创建订单、扣减库存、清空购物车
// @Summary 结算下单
// @Tags 结算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "幂等键，重试时保持不变"
// @Param request body checkoutRequest true "收货地址与可选的 payment_intent_id"
// @Success 201 {object} response.Response{data=orderResponse}
// @Success 200 {object} response.Response{data=orderResponse} "幂等重放"
// @Failure 400 {object} response.Response
// @Failure 402 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Failure 504 {object} response.Response
// @Router /api/v1/checkout [post]
func (h *Handler) Checkout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req checkoutRequest
	// 允许空 body：地址回落到用户资料
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, err.Error())
		return
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		address = user.Address
	}

	res, err := h.checkout.Checkout(c.Request.Context(), user, service.CheckoutInput{
		ShippingAddress: address,
		IdempotencyKey:  c.GetHeader(HeaderIdempotencyKey),
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		// 失败时同样回传幂等键，客户端重试不会重复扣款
		if key := service.IdempotencyKeyOf(err); key != "" {
			c.Header(HeaderIdempotencyKey, key)
		}
		writeError(c, err)
		return
	}
	c.Header(HeaderIdempotencyKey, res.Order.IdempotencyKey)
	if res.Replayed {
		response.Success(c, toOrder(res.Order))
		return
	}
	response.Created(c, toOrder(res.Order))
}
