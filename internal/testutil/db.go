// Package testutil 测试共用的数据库与数据构造
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/storefront/internal/model"
)

// NewDB 单连接内存 SQLite，已迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, ":memory:")
}

// NewFileDB 同 NewDB，但落在临时文件
func NewFileDB(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "storefront.db"))
}

func open(t testing.TB, dsn string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixtures 直接通过 gorm 造数据
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
	n  int
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

// User 创建普通用户
func (f *Fixtures) User(name string) *model.User {
	f.t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Address: "1 Main St"}
	f.create(u)
	return u
}

// Admin 创建管理员
func (f *Fixtures) Admin(name string) *model.User {
	f.t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", IsAdmin: true}
	f.create(u)
	return u
}

// Category 创建唯一名称的分类
func (f *Fixtures) Category() *model.Category {
	f.t.Helper()
	f.n++
	c := &model.Category{Name: fmt.Sprintf("category-%d", f.n)}
	f.create(c)
	return c
}

// Product 创建上架商品
func (f *Fixtures) Product(name, price string, stock int) *model.Product {
	f.t.Helper()
	c := f.Category()
	p := &model.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		CategoryID:    c.ID,
		IsActive:      true,
	}
	f.create(p)
	return p
}

// CartItem 加入购物车
func (f *Fixtures) CartItem(userID, productID uint, qty int) *model.CartItem {
	f.t.Helper()
	item := &model.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	if err := f.db.Omit("Product").Create(item).Error; err != nil {
		f.t.Fatalf("create cart item: %v", err)
	}
	return item
}

// Stock 当前库存
func (f *Fixtures) Stock(productID uint) int {
	f.t.Helper()
	var p model.Product
	if err := f.db.WithContext(context.Background()).First(&p, productID).Error; err != nil {
		f.t.Fatalf("load product: %v", err)
	}
	return p.StockQuantity
}

// CartSize 用户购物车行数
func (f *Fixtures) CartSize(userID uint) int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(&model.CartItem{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		f.t.Fatalf("count cart: %v", err)
	}
	return n
}

// OrderCount 订单总数
func (f *Fixtures) OrderCount() int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(&model.Order{}).Count(&n).Error; err != nil {
		f.t.Fatalf("count orders: %v", err)
	}
	return n
}

func (f *Fixtures) create(v interface{}) {
	f.t.Helper()
	if err := f.db.Create(v).Error; err != nil {
		f.t.Fatalf("create %T: %v", v, err)
	}
}
