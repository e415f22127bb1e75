package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/storefront/internal/service"
	"github.com/d60-Lab/storefront/pkg/response"
)

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description"`
}

type createProductRequest struct {
	Name          string          `json:"name" binding:"required,max=100"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" swaggertype:"string" example:"19.99"`
	StockQuantity int             `json:"stock_quantity" binding:"gte=0"`
	ImageFilename string          `json:"image_filename"`
	CategoryID    uint            `json:"category_id" binding:"required"`
	IsActive      *bool           `json:"is_active"`
}

type updateProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price" swaggertype:"string" example:"19.99"`
	StockQuantity *int             `json:"stock_quantity"`
	ImageFilename *string          `json:"image_filename"`
	CategoryID    *uint            `json:"category_id"`
	IsActive      *bool            `json:"is_active"`
}

// AdminCreateCategory 新建分类
// @Summary 新建分类（管理端）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createCategoryRequest true "分类"
// @Success 201 {object} response.Response{data=categoryResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/categories [post]
func (h *Handler) AdminCreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cat, err := h.catalog.CreateCategory(c.Request.Context(), service.CreateCategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toCategory(cat))
}

// AdminCreateProduct 新建商品
// @Summary 新建商品（管理端）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createProductRequest true "商品"
// @Success 201 {object} response.Response{data=productResponse}
// @Failure 400 {object} response.Response
// @Router /api/v1/admin/products [post]
func (h *Handler) AdminCreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.catalog.CreateProduct(c.Request.Context(), service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		ImageFilename: req.ImageFilename,
		CategoryID:    req.CategoryID,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, toProduct(p))
}

// AdminUpdateProduct 部分更新商品（价格、库存、上下架等）
// @Summary 修改商品（管理端）
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品ID"
// @Param request body updateProductRequest true "需要修改的字段"
// @Success 200 {object} response.Response{data=productResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/products/{id} [patch]
func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, service.UpdateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		ImageFilename: req.ImageFilename,
		CategoryID:    req.CategoryID,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, toProduct(p))
}
