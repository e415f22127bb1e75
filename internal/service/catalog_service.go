package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// ProductPage 商品分页结果
type ProductPage struct {
	Items    []*model.Product `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// CreateCategoryInput 新建分类
type CreateCategoryInput struct {
	Name        string
	Description string
}

// CreateProductInput 新建商品
type CreateProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	ImageFilename string
	CategoryID    uint
	IsActive      *bool
}

// UpdateProductInput 部分更新，nil 字段不修改
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
	ImageFilename *string
	CategoryID    *uint
	IsActive      *bool
}

// CatalogService 商品目录服务
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	GetCategory(ctx context.Context, id uint) (*model.Category, error)
	// ListProducts 只列出上架商品
	ListProducts(ctx context.Context, page, pageSize int) (*ProductPage, error)
	// GetProduct 下架商品视为不存在
	GetProduct(ctx context.Context, id uint) (*model.Product, error)

	CreateCategory(ctx context.Context, in CreateCategoryInput) (*model.Category, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uint, in UpdateProductInput) (*model.Product, error)
}

type catalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
}

// NewCatalogService 创建目录服务
func NewCatalogService(categories repository.CategoryRepository, products repository.ProductRepository) CatalogService {
	return &catalogService{categories: categories, products: products}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	return s.categories.List(ctx)
}

func (s *catalogService) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

func (s *catalogService) ListProducts(ctx context.Context, page, pageSize int) (*ProductPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	items, total, err := s.products.List(ctx, true, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, in CreateCategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("category name is required")
	}
	if _, err := s.categories.GetByName(ctx, name); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	c := &model.Category{Name: name, Description: in.Description}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationf("product name is required")
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	if in.StockQuantity < 0 {
		return nil, validationf("stock_quantity must be >= 0")
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	p := &model.Product{
		Name:          name,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		ImageFilename: in.ImageFilename,
		CategoryID:    in.CategoryID,
		IsActive:      active,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.products.GetByID(ctx, p.ID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uint, in UpdateProductInput) (*model.Product, error) {
	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationf("product name must not be empty")
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return nil, err
		}
		fields["price"] = *in.Price
	}
	if in.StockQuantity != nil {
		if *in.StockQuantity < 0 {
			return nil, validationf("stock_quantity must be >= 0")
		}
		fields["stock_quantity"] = *in.StockQuantity
	}
	if in.ImageFilename != nil {
		fields["image_filename"] = *in.ImageFilename
	}
	if in.CategoryID != nil {
		if err := s.requireCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *in.CategoryID
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if len(fields) == 0 {
		return nil, validationf("no fields to update")
	}

	if err := s.products.Update(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return s.products.GetByID(ctx, id)
}

func (s *catalogService) requireCategory(ctx context.Context, id uint) error {
	if id == 0 {
		return validationf("category_id is required")
	}
	_, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return validationf("category %d does not exist", id)
	}
	return err
}

func validatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return validationf("price must be positive")
	}
	if !p.Equal(p.Round(2)) {
		return validationf("price must have at most 2 decimal places")
	}
	return nil
}
