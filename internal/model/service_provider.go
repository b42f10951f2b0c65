package model

import "time"

type ServiceProvider struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerUserID uint64    `gorm:"column:owner_user_id;index;not null" json:"owner_user_id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	PhotoURL    *string   `gorm:"column:photo_url;size:512" json:"photo_url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ServiceProvider) TableName() string {
	return "service_providers"
}
