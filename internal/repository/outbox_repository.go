package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/storefront/internal/model"
)

// OutboxRepository outbox 事件仓储
type OutboxRepository interface {
	WithTx(tx *gorm.DB) OutboxRepository
	// Add 写入待投递事件，需与业务写入在同一事务
	Add(ctx context.Context, event *model.OutboxEvent) error
	// Claim 领取一批 pending 事件，以及 claimed_at 早于 staleBefore 的 processing 事件（领取者已崩溃），置为 processing
	Claim(ctx context.Context, limit int, staleBefore time.Time) ([]model.OutboxEvent, error)
	// MarkDone 投递成功
	MarkDone(ctx context.Context, id string) error
	// MarkRetry 投递失败：未超过次数回到 pending，否则置为 failed
	MarkRetry(ctx context.Context, id string, cause error, maxAttempts int) error
	// CountByStatus 按状态计数
	CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建 outbox 仓储
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

func (r *outboxRepository) Add(ctx context.Context, event *model.OutboxEvent) error {
	if event.Status == "" {
		event.Status = model.OutboxPending
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, staleBefore time.Time) ([]model.OutboxEvent, error) {
	var batch []model.OutboxEvent
	now := time.Now().UTC()
	claimable := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(status = ? OR (status = ? AND claimed_at < ?))",
			model.OutboxPending, model.OutboxProcessing, staleBefore.UTC())
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Scopes(claimable).Order("created_at").Limit(limit)
		// SQLite 单连接已串行化，无需也不支持行锁
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.OutboxEvent{}).Scopes(claimable).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": model.OutboxProcessing, "claimed_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range batch {
		batch[i].Status = model.OutboxProcessing
		batch[i].ClaimedAt = &now
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.OutboxDone, "processed_at": now, "last_error": ""}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, cause error, maxAttempts int) error {
	var ev model.OutboxEvent
	if err := r.db.WithContext(ctx).First(&ev, "id = ?", id).Error; err != nil {
		return translate(err)
	}
	attempts := ev.Attempts + 1
	status := model.OutboxPending
	if attempts >= maxAttempts {
		status = model.OutboxFailed
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "attempts": attempts, "last_error": msg}).Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status model.OutboxStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
