package model

import "time"

// NotificationOutbox 通知事件表：先落库，再由 relayer 异步投递
type NotificationOutbox struct {
	ID          uint64 `gorm:"primaryKey"`
	EventType   string `gorm:"size:32;not null"` // join_request / membership_approved / membership_rejected
	RecipientID uint64 `gorm:"not null;index"`
	CommunityID uint64 `gorm:"not null"`
	Payload     string `gorm:"type:json;not null"`
	Status      int8   `gorm:"not null;default:0;comment:'0=pending,1=sent,2=failed'"`
	Retry       int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
