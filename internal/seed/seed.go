// Package seed 写入开发用的示例商品与账号
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/pkg/logger"
)

type account struct {
	username, email, password string
	first, last, address      string
	admin                     bool
}

var accounts = []account{
	{username: "admin", email: "admin@example.com", password: "admin123", first: "Admin", last: "User", admin: true},
	{username: "testuser", email: "test@example.com", password: "test123", first: "Test", last: "User", address: "123 Test Street\nTest City, TC 12345"},
}

var categories = []model.Category{
	{Name: "Electronics", Description: "Computers, phones, and electronic devices"},
	{Name: "Clothing", Description: "Fashion and apparel for all ages"},
	{Name: "Books", Description: "Books, magazines, and educational materials"},
	{Name: "Home & Garden", Description: "Home improvement and gardening supplies"},
	{Name: "Sports", Description: "Sports equipment and outdoor gear"},
}

type sampleProduct struct {
	category, name, description, price string
	stock                              int
}

var products = []sampleProduct{
	{"Electronics", "Wireless Bluetooth Headphones", "High-quality wireless headphones with noise cancellation and 30-hour battery life.", "99.99", 50},
	{"Electronics", "Smartphone Case", "Durable protective case for smartphones with shock absorption.", "24.99", 100},
	{"Electronics", "USB-C Charging Cable", "Fast charging USB-C cable, 6 feet long, compatible with most devices.", "12.99", 200},
	{"Clothing", "Cotton T-Shirt", "Comfortable 100% cotton t-shirt available in multiple colors and sizes.", "19.99", 75},
	{"Clothing", "Denim Jeans", "Classic fit denim jeans made from premium cotton blend.", "49.99", 40},
	{"Clothing", "Winter Jacket", "Warm and waterproof winter jacket with insulated lining.", "89.99", 25},
	{"Books", "Go Programming Guide", "Comprehensive guide to Go programming for beginners and advanced users.", "34.99", 30},
	{"Books", "Web Development Handbook", "Complete handbook covering HTML, CSS, JavaScript, and modern frameworks.", "42.99", 20},
	{"Home & Garden", "LED Desk Lamp", "Adjustable LED desk lamp with multiple brightness levels and USB charging port.", "39.99", 60},
	{"Home & Garden", "Plant Pot Set", "Set of 3 ceramic plant pots with drainage holes, perfect for indoor plants.", "29.99", 45},
	{"Sports", "Yoga Mat", "Non-slip yoga mat with extra cushioning, perfect for yoga and exercise.", "24.99", 80},
	{"Sports", "Water Bottle", "Stainless steel insulated water bottle, keeps drinks cold for 24 hours.", "19.99", 120},
}

// SeededUser 已写入的账号及其 token
type SeededUser struct {
	User     *model.User
	Password string
	Token    string
}

// Result 本次写入的汇总
type Result struct {
	Users           []SeededUser
	Categories      int
	Products        int
	CreatedProducts int
}

// Run 写入示例数据，重复执行不会产生重复行；tokens 为 nil 时不签发 token
func Run(ctx context.Context, db *gorm.DB, tokens *auth.TokenIssuer) (*Result, error) {
	log := logger.FromContext(ctx)
	res := &Result{}

	users := repository.NewUserRepository(db)
	for _, a := range accounts {
		hash, err := auth.HashPassword(a.password)
		if err != nil {
			return nil, err
		}
		u := &model.User{
			Username:     a.username,
			Email:        a.email,
			PasswordHash: hash,
			FirstName:    a.first,
			LastName:     a.last,
			Address:      a.address,
			IsAdmin:      a.admin,
		}
		if err := users.FirstOrCreate(ctx, u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", a.username, err)
		}
		su := SeededUser{User: u, Password: a.password}
		if tokens != nil {
			if su.Token, err = tokens.Issue(u); err != nil {
				return nil, err
			}
		}
		res.Users = append(res.Users, su)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byName := make(map[string]uint, len(categories))
		for _, c := range categories {
			c := c
			if err := tx.Where(model.Category{Name: c.Name}).Attrs(model.Category{Description: c.Description}).FirstOrCreate(&c).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
			byName[c.Name] = c.ID
		}
		res.Categories = len(byName)

		for _, p := range products {
			row := model.Product{
				Name:          p.name,
				Description:   p.description,
				Price:         decimal.RequireFromString(p.price),
				StockQuantity: p.stock,
				CategoryID:    byName[p.category],
				IsActive:      true,
			}
			var existing model.Product
			q := tx.Where("name = ?", p.name).Limit(1).Find(&existing)
			if q.Error != nil {
				return q.Error
			}
			if q.RowsAffected == 0 {
				if err := tx.Omit("Category").Create(&row).Error; err != nil {
					return fmt.Errorf("seed product %s: %w", p.name, err)
				}
				res.CreatedProducts++
			}
			res.Products++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("sample data ready",
		zap.Int("users", len(res.Users)),
		zap.Int("categories", res.Categories),
		zap.Int("products", res.Products),
		zap.Int("created_products", res.CreatedProducts))
	return res, nil
}
