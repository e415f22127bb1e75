package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/storefront/pkg/response"
)

type addCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required,gt=0"`
	Quantity  int  `json:"quantity" binding:"required,gte=1"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

// GetCart 查询购物车
// @Summary 查询购物车
// @Tags 购物车
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=cartResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/cart [get]
func (h *Handler) GetCart(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := h.carts.List(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toCart(view))
}

// AddCartItem 加入购物车，数量在已有基础上累加
// @Summary 加入购物车
// @Tags 购物车
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body addCartItemRequest true "商品与数量"
// @Success 201 {object} response.Response{data=cartItemResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/cart/items [post]
func (h *Handler) AddCartItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item, err := h.carts.Add(c.Request.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toCartItem(item))
}

// UpdateCartItem 设置数量，0 表示移除
// @Summary 修改购物车数量
// @Tags 购物车
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product_id path int true "商品ID"
// @Param request body updateCartItemRequest true "数量"
// @Success 200 {object} response.Response{data=cartItemResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/cart/items/{product_id} [put]
func (h *Handler) UpdateCartItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item, err := h.carts.Update(c.Request.Context(), user.ID, productID, *req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	if item == nil {
		response.Success(c, gin.H{"removed": true, "product_id": productID})
		return
	}
	response.Success(c, toCartItem(item))
}

// RemoveCartItem 移除购物车条目，不存在时同样成功
// @Summary 移除购物车条目
// @Tags 购物车
// @Produce json
// @Security BearerAuth
// @Param product_id path int true "商品ID"
// @Success 200 {object} response.Response
// @Router /api/v1/cart/items/{product_id} [delete]
func (h *Handler) RemoveCartItem(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	if err := h.carts.Remove(c.Request.Context(), user.ID, productID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": true, "product_id": productID})
}
