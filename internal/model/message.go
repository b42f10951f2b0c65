package model

import "time"

type Message struct {
	ID             uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64   `gorm:"column:conversation_id;index;not null" json:"conversation_id"`
	FromUserID     uint64   `gorm:"column:from_user_id;index;not null" json:"from_user_id"`
	ToUserID       uint64   `gorm:"column:to_user_id;index;not null" json:"to_user_id"`
	Body           string   `gorm:"type:text" json:"body"`
	AttachmentURL  *string  `gorm:"column:attachment_url;size:512" json:"attachment_url,omitempty"`
	Lat            *float64 `gorm:"column:lat;type:decimal(10,7)" json:"lat,omitempty"`
	Lng            *float64 `gorm:"column:lng;type:decimal(10,7)" json:"lng,omitempty"`
	IsPinned       bool     `gorm:"column:is_pinned;not null;default:false" json:"is_pinned"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	// ReadAt is kept for schema compatibility; no operation writes it today.
	// Mark-read only resets the conversation-level counter.
	ReadAt *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
}

func (Message) TableName() string {
	return "chat_messages"
}
