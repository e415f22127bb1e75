package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category 商品分类
type Category struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}

// Product 商品，库存不允许为负
type Product struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Name          string          `json:"name" gorm:"type:varchar(100);not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;default:0;check:chk_products_stock,stock_quantity >= 0"`
	ImageFilename string          `json:"image_filename" gorm:"type:varchar(255)"`
	CategoryID    uint            `json:"category_id" gorm:"not null;index"`
	Category      *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	IsActive      bool            `json:"is_active" gorm:"not null;index"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
