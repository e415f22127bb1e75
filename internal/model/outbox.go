package model

import "time"

// OutboxStatus outbox 事件状态
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDone       OutboxStatus = "done"
	OutboxFailed     OutboxStatus = "failed"
)

// 事件主题
const (
	TopicOrderPaid          = "order.paid"
	TopicOrderStatusChanged = "order.status_changed"
)

// OutboxEvent 与业务写入同一事务落地的待投递事件
type OutboxEvent struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Topic       string       `json:"topic" gorm:"type:varchar(64);not null"`
	Key         string       `json:"key" gorm:"type:varchar(64);not null"`
	Payload     string       `json:"payload" gorm:"type:text;not null"`
	Status      OutboxStatus `json:"status" gorm:"type:varchar(16);not null;index:idx_outbox_status_created"`
	Attempts    int          `json:"attempts" gorm:"not null;default:0"`
	LastError   string       `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"index:idx_outbox_status_created"`
	ClaimedAt   *time.Time   `json:"claimed_at"`
	ProcessedAt *time.Time   `json:"processed_at"`
}

func (OutboxEvent) TableName() string { return "outbox" }
