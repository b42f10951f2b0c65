package model

import "time"

type Notification struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64     `gorm:"column:user_id;index;not null" json:"user_id"`
	ProviderID     *uint64    `gorm:"column:provider_id;index" json:"provider_id,omitempty"`
	ConversationID *uint64    `gorm:"column:conversation_id;index" json:"conversation_id,omitempty"`
	Title          string     `gorm:"size:255;not null" json:"title"`
	Body           string     `gorm:"type:text" json:"body"`
	ReadAt         *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
