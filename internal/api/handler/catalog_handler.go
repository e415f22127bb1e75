package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/storefront/pkg/response"
)

// Health 健康检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Storefront API is running",
		"version": APIVersion,
	})
}

// ListCategories 分类列表
// @Summary 查询全部分类
// @Tags 商品目录
// @Produce json
// @Success 200 {object} response.Response{data=[]categoryResponse}
// @Failure 500 {object} response.Response
// @Router /api/v1/categories [get]
func (h *Handler) ListCategories(c *gin.Context) {
	list, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]categoryResponse, 0, len(list))
	for _, cat := range list {
		out = append(out, toCategory(cat))
	}
	response.Success(c, out)
}

// GetCategory 分类详情
// @Summary 查询分类
// @Tags 商品目录
// @Produce json
// @Param id path int true "分类ID"
// @Success 200 {object} response.Response{data=categoryResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/categories/{id} [get]
func (h *Handler) GetCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cat, err := h.catalog.GetCategory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toCategory(cat))
}

// ListProducts 上架商品分页
// @Summary 查询上架商品
// @Tags 商品目录
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(12)
// @Success 200 {object} response.Response{data=productPageResponse}
// @Router /api/v1/products [get]
func (h *Handler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "12"))
	result, err := h.catalog.ListProducts(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toProductPage(result))
}

// GetProduct 商品详情，下架商品视为不存在
// @Summary 查询商品
// @Tags 商品目录
// @Produce json
// @Param id path int true "商品ID"
// @Success 200 {object} response.Response{data=productResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/products/{id} [get]
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toProduct(p))
}

// Profile 当前用户信息
// @Summary 当前用户
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=profileResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/profile [get]
func (h *Handler) Profile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Success(c, toProfile(user))
}
