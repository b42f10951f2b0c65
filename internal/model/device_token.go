package model

import "time"

type DeviceToken struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"column:user_id;index;not null"`
	Token     string    `gorm:"size:255;uniqueIndex;not null"`
	Platform  string    `gorm:"size:20;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
