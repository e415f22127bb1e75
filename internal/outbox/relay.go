// Package outbox 投递与订单写入同事务落地的 outbox 事件
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/pkg/logger"
)

// Recorder 记录每个事件的投递结果
type Recorder interface {
	ObserveOutbox(topic, outcome string, lag time.Duration)
}

// Options relay 参数，零值取默认
type Options struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	// ClaimTimeout 领取后超过该时长仍为 processing 的事件视为领取者已崩溃，可被重新领取
	ClaimTimeout time.Duration
	Metrics      Recorder
	Logger       *zap.Logger
}

// Relay 轮询 outbox 并交给 Publisher；至少投递一次：Publish 成功才标记 done，领取超时的事件会被重新领取
type Relay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	opts      Options
	log       *zap.Logger
}

func NewRelay(repo repository.OutboxRepository, publisher Publisher, opts Options) *Relay {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	return &Relay{repo: repo, publisher: publisher, opts: opts, log: log.Named("outbox")}
}

// Start 启动轮询 worker，返回的 stop 等待进行中的批次结束或 ctx 到期
func (r *Relay) Start() func(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx)
		}()
	}
	return func(stopCtx context.Context) error {
		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
}

func (r *Relay) loop(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 批次满则继续拉取
			for {
				n, err := r.ProcessOnce(ctx)
				if err != nil {
					r.log.Warn("outbox poll failed", zap.Error(err))
					break
				}
				if n < r.opts.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessOnce 领取并投递一批事件，返回领取数
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := r.repo.Claim(ctx, r.opts.BatchSize, time.Now().Add(-r.opts.ClaimTimeout))
	if err != nil {
		return 0, err
	}
	for i := range batch {
		r.deliver(ctx, &batch[i])
	}
	return len(batch), nil
}

func (r *Relay) deliver(ctx context.Context, ev *model.OutboxEvent) {
	// relay 停止时状态也要落库
	bctx := context.WithoutCancel(ctx)
	lag := time.Since(ev.CreatedAt)

	if err := r.publisher.Publish(ctx, ev); err != nil {
		outcome := "retry"
		if ev.Attempts+1 >= r.opts.MaxAttempts {
			outcome = "failed"
		}
		r.observe(ev.Topic, outcome, lag)
		r.log.Warn("outbox publish failed",
			zap.String("event_id", ev.ID),
			zap.String("topic", ev.Topic),
			zap.Int("attempt", ev.Attempts+1),
			zap.Error(err))
		if merr := r.repo.MarkRetry(bctx, ev.ID, err, r.opts.MaxAttempts); merr != nil {
			r.log.Error("outbox mark retry failed", zap.String("event_id", ev.ID), zap.Error(merr))
		}
		return
	}
	if err := r.repo.MarkDone(bctx, ev.ID); err != nil {
		r.log.Error("outbox mark done failed", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	r.observe(ev.Topic, "delivered", lag)
}

func (r *Relay) observe(topic, outcome string, lag time.Duration) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveOutbox(topic, outcome, lag)
	}
}
