package model

import "time"

// NoProvider is the provider_id value for conversations without a provider
// context. MySQL unique indexes admit any number of NULL rows, so the column
// is NOT NULL and 0 stands in for "no provider" inside the uniqueness key.
const NoProvider uint64 = 0

// Conversation is a durable two-party channel. The pair is stored in
// canonical order (user_a_id < user_b_id) and the same pair may hold one
// conversation per provider context plus one without any.
type Conversation struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAID        uint64     `gorm:"column:user_a_id;not null;uniqueIndex:uniq_pair_provider" json:"user_a_id"`
	UserBID        uint64     `gorm:"column:user_b_id;not null;uniqueIndex:uniq_pair_provider" json:"user_b_id"`
	ProviderID     uint64     `gorm:"column:provider_id;not null;default:0;uniqueIndex:uniq_pair_provider" json:"-"`
	LastMessage    string     `gorm:"column:last_message;size:512;not null;default:''" json:"last_message"`
	LastAt         *time.Time `gorm:"column:last_at" json:"last_at"`
	UnreadA        uint       `gorm:"column:unread_a;not null;default:0" json:"-"`
	UnreadB        uint       `gorm:"column:unread_b;not null;default:0" json:"-"`
	PinnedAdID     *uint64    `gorm:"column:pinned_ad_id" json:"pinned_ad_id"`
	PinnedText     *string    `gorm:"column:pinned_text;size:512" json:"pinned_text"`
	PinnedImageURL *string    `gorm:"column:pinned_image_url;size:512" json:"pinned_image_url"`
	PinnedAt       *time.Time `gorm:"column:pinned_at" json:"pinned_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "chat_conversations"
}

// ProviderRef exposes the provider context as an optional reference,
// hiding the 0 sentinel.
func (c *Conversation) ProviderRef() *uint64 {
	if c.ProviderID == NoProvider {
		return nil
	}
	id := c.ProviderID
	return &id
}

// HasParty reports whether uid is one of the two sides.
func (c *Conversation) HasParty(uid uint64) bool {
	return c.UserAID == uid || c.UserBID == uid
}

// PeerOf returns the other side relative to uid.
func (c *Conversation) PeerOf(uid uint64) uint64 {
	if c.UserAID == uid {
		return c.UserBID
	}
	return c.UserAID
}

// UnreadFor returns the unread counter belonging to uid's side.
func (c *Conversation) UnreadFor(uid uint64) uint {
	if c.UserAID == uid {
		return c.UnreadA
	}
	return c.UnreadB
}
