package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/config"
	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/payment"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/internal/service"
	"github.com/d60-Lab/storefront/pkg/database"
	"github.com/d60-Lab/storefront/pkg/logger"
)

const (
	// 压测参数
	UserCount       = 2000 // 每个用户结算一次
	ProductCount    = 5    // 热点商品数
	StockPerProduct = 100  // 每个商品库存，总库存远小于需求
	ConcurrentLevel = 64
	GatewayLatency  = 20 * time.Millisecond
)

type BenchResult struct {
	Duration   time.Duration
	Total      int64
	Outcomes   map[string]int64
	QPS        float64
	AvgLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration
}

type fixture struct {
	users    []*model.User
	products []*model.Product
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	must(err)
	// 每次结算都会打一行用例日志，压测时关闭
	logger.ReplaceGlobal(zap.NewNop())

	db, err := database.InitDB(cfg)
	must(err)
	defer func() { _ = database.Close(db) }()
	must(database.AutoMigrate(db))

	fmt.Println("===== 并发结算压测 =====")
	fmt.Printf("数据库: %s\n", cfg.Database.Driver)
	fmt.Printf("用户数: %d\n", UserCount)
	fmt.Printf("商品数: %d, 每个库存 %d (总库存 %d)\n", ProductCount, StockPerProduct, ProductCount*StockPerProduct)
	fmt.Printf("并发数: %d\n", ConcurrentLevel)
	fmt.Printf("网关延迟: %v\n\n", GatewayLatency)

	fmt.Println(">>> 准备测试数据...")
	fx, err := prepare(ctx, db)
	must(err)
	fmt.Printf("创建了 %d 个用户, %d 个商品\n\n", len(fx.users), len(fx.products))

	orders := repository.NewOrderRepository(db)
	ordersBefore, err := orders.Count(ctx)
	must(err)

	gateway := payment.NewSimulatedGateway(payment.WithLatency(GatewayLatency))
	svc := service.NewCheckoutService(service.CheckoutDeps{
		DB:             db,
		Carts:          repository.NewCartRepository(db),
		Products:       repository.NewProductRepository(db),
		Orders:         orders,
		Outbox:         repository.NewOutboxRepository(db),
		Gateway:        gateway,
		Currency:       cfg.Payment.Currency,
		PaymentTimeout: cfg.Payment.Timeout,
	})

	fmt.Println("===== 结算压测 =====")
	result := benchCheckout(ctx, svc, fx)
	printBenchResult(result)

	fmt.Println("\n===== 库存校验 =====")
	must(verify(ctx, db, orders, ordersBefore, fx, result))
	fmt.Println("\n✅ 压测完成！")
}

// prepare 创建一批用户与热点商品，每个用户购物车放一件随机商品
func prepare(ctx context.Context, db *gorm.DB) (*fixture, error) {
	run := uuid.NewString()[:8]
	fx := &fixture{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cat := &model.Category{Name: "bench-" + run}
		if err := tx.Create(cat).Error; err != nil {
			return err
		}
		for i := 0; i < ProductCount; i++ {
			p := &model.Product{
				Name:          fmt.Sprintf("bench-%s-%d", run, i),
				Price:         decimal.NewFromFloat(9.99),
				StockQuantity: StockPerProduct,
				CategoryID:    cat.ID,
				IsActive:      true,
			}
			if err := tx.Omit("Category").Create(p).Error; err != nil {
				return err
			}
			fx.products = append(fx.products, p)
		}

		users := make([]*model.User, 0, UserCount)
		for i := 0; i < UserCount; i++ {
			name := fmt.Sprintf("bench-%s-%d", run, i)
			users = append(users, &model.User{Username: name, Email: name + "@bench.local", PasswordHash: "-", Address: "bench"})
		}
		if err := tx.CreateInBatches(users, 500).Error; err != nil {
			return err
		}
		fx.users = users

		items := make([]*model.CartItem, 0, UserCount)
		for _, u := range users {
			p := fx.products[rand.Intn(len(fx.products))]
			items = append(items, &model.CartItem{UserID: u.ID, ProductID: p.ID, Quantity: 1})
		}
		return tx.Omit("Product").CreateInBatches(items, 500).Error
	})
	return fx, err
}

// benchCheckout 所有用户并发结算一次
func benchCheckout(ctx context.Context, svc service.CheckoutService, fx *fixture) *BenchResult {
	var (
		done      int64
		latencies = make([]time.Duration, len(fx.users))
		outcomes  = make([]string, len(fx.users))
		next      int64 = -1
		wg        sync.WaitGroup
	)
	total := int64(len(fx.users))
	startTime := time.Now()

	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := atomic.LoadInt64(&done)
				elapsed := time.Since(startTime)
				fmt.Printf("  📊 进度: %d/%d (%.1f%%) | ⏱️  已用时: %v | 🚀 QPS: %.0f\n",
					current, total, float64(current)/float64(total)*100, elapsed.Round(time.Second), float64(current)/elapsed.Seconds())
			case <-progressDone:
				return
			}
		}
	}()

	for i := 0; i < ConcurrentLevel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := atomic.AddInt64(&next, 1)
				if idx >= total {
					return
				}
				reqStart := time.Now()
				_, err := svc.Checkout(ctx, fx.users[idx], service.CheckoutInput{ShippingAddress: "bench"})
				latencies[idx] = time.Since(reqStart)
				outcomes[idx] = classify(err)
				atomic.AddInt64(&done, 1)
			}
		}()
	}
	wg.Wait()
	close(progressDone)

	return calculateResult(time.Since(startTime), outcomes, latencies)
}

func classify(err error) string {
	var stockErr *service.InsufficientStockError
	var payErr *service.PaymentFailedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	case errors.As(err, &payErr):
		return "payment_failed"
	default:
		return "error"
	}
}

// verify 成功单数必须等于扣减的库存与新增订单数，且库存不为负
func verify(ctx context.Context, db *gorm.DB, orders repository.OrderRepository, ordersBefore int64, fx *fixture, result *BenchResult) error {
	ids := make([]uint, 0, len(fx.products))
	for _, p := range fx.products {
		ids = append(ids, p.ID)
	}
	var remaining int64
	if err := db.WithContext(ctx).Model(&model.Product{}).Where("id IN ?", ids).
		Select("COALESCE(SUM(stock_quantity), 0)").Scan(&remaining).Error; err != nil {
		return err
	}
	sold := int64(ProductCount*StockPerProduct) - remaining
	fmt.Printf("售出: %d, 成功订单: %d, 剩余库存: %d\n", sold, result.Outcomes["success"], remaining)
	if remaining < 0 || sold != result.Outcomes["success"] {
		return fmt.Errorf("stock mismatch: sold %d, orders %d, remaining %d", sold, result.Outcomes["success"], remaining)
	}
	ordersAfter, err := orders.Count(ctx)
	if err != nil {
		return err
	}
	created := ordersAfter - ordersBefore
	fmt.Printf("新增订单: %d\n", created)
	if created != result.Outcomes["success"] {
		return fmt.Errorf("order mismatch: created %d, successful checkouts %d", created, result.Outcomes["success"])
	}
	fmt.Println("✅ 库存与订单一致，无超卖")
	return nil
}

// calculateResult 计算压测结果
func calculateResult(duration time.Duration, outcomes []string, latencies []time.Duration) *BenchResult {
	counts := make(map[string]int64)
	for _, o := range outcomes {
		counts[o]++
	}

	var totalLatency time.Duration
	for _, l := range latencies {
		totalLatency += l
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	res := &BenchResult{
		Duration:   duration,
		Total:      int64(len(latencies)),
		Outcomes:   counts,
		QPS:        float64(len(latencies)) / duration.Seconds(),
		P50Latency: percentile(sorted, 0.50),
		P95Latency: percentile(sorted, 0.95),
		P99Latency: percentile(sorted, 0.99),
	}
	if len(latencies) > 0 {
		res.AvgLatency = totalLatency / time.Duration(len(latencies))
	}
	return res
}

// percentile 计算百分位数
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(float64(len(sorted))*p)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// printBenchResult 打印压测结果
func printBenchResult(result *BenchResult) {
	fmt.Printf("耗时: %v\n", result.Duration)
	fmt.Printf("总请求数: %d\n", result.Total)
	keys := make([]string, 0, len(result.Outcomes))
	for k := range result.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, result.Outcomes[k])
	}
	fmt.Printf("QPS: %.2f\n", result.QPS)
	fmt.Printf("平均延迟: %v\n", result.AvgLatency)
	fmt.Printf("P50 延迟: %v\n", result.P50Latency)
	fmt.Printf("P95 延迟: %v\n", result.P95Latency)
	fmt.Printf("P99 延迟: %v\n", result.P99Latency)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
