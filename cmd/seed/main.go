package main

import (
	"context"
	"fmt"
	"os"

	"github.com/d60-Lab/storefront/config"
	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/seed"
	"github.com/d60-Lab/storefront/pkg/database"
	"github.com/d60-Lab/storefront/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	must(err)
	must(logger.Init(cfg.Log))
	defer func() { _ = logger.Sync() }()

	db, err := database.InitDB(cfg)
	must(err)
	defer func() { _ = database.Close(db) }()
	must(database.AutoMigrate(db))

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	res, err := seed.Run(context.Background(), db, tokens)
	must(err)

	fmt.Printf("示例数据就绪: %d 个分类, %d 个商品 (新增 %d)\n", res.Categories, res.Products, res.CreatedProducts)
	fmt.Println("\n测试账号:")
	for _, u := range res.Users {
		role := "user"
		if u.User.IsAdmin {
			role = "admin"
		}
		fmt.Printf("  %-8s username=%s password=%s\n", role, u.User.Username, u.Password)
		fmt.Printf("           Authorization: Bearer %s\n", u.Token)
	}
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
