package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/pkg/response"
)

type updateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// ListOrders 当前用户订单
// @Summary 我的订单
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限" default(50)
// @Success 200 {object} response.Response{data=[]orderResponse}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.orders.ListForUser(c.Request.Context(), user, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toOrders(orders))
}

// GetOrder 订单详情，仅所有者或管理员可见
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=orderResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetForUser(c.Request.Context(), user, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toOrder(order))
}

// AdminListOrders 最近订单
// @Summary 最近订单（管理端）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param limit query int false "数量上限" default(50)
// @Success 200 {object} response.Response{data=[]orderResponse}
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/orders [get]
func (h *Handler) AdminListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.orders.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toOrders(orders))
}

// AdminUpdateOrderStatus 订单状态流转
// @Summary 修改订单状态（管理端）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body updateOrderStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=orderResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/orders/{id}/status [patch]
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toOrder(order))
}
