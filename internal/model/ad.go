package model

import "time"

const AdStatusActive = "active"

type Ad struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"column:user_id;index;not null" json:"user_id"`
	Title       string    `gorm:"size:120;not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	ImageURL    *string   `gorm:"column:image_url;size:512" json:"image_url,omitempty"`
	Status      string    `gorm:"size:20;not null;default:'active';index" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Ad) TableName() string {
	return "ads"
}
