package models

import (
	"time"

	"gorm.io/gorm"
)

// Redemption records one delivered gift card: which session consumed which
// card, for which user, and when the code went out by email.
type Redemption struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Reference   string         `gorm:"size:64;uniqueIndex;not null" json:"reference"` // receipt id shown to the user
	SessionID   string         `gorm:"size:128;uniqueIndex;not null" json:"session_id"`
	GiftCardID  uint           `gorm:"not null;index" json:"gift_card_id"`
	UserID      *uint          `gorm:"index" json:"user_id,omitempty"`
	Degraded    bool           `gorm:"not null;default:false" json:"degraded"` // card value below the requested amount
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	GiftCard GiftCard `gorm:"foreignKey:GiftCardID" json:"gift_card,omitempty"`
}

func (Redemption) TableName() string { return "redemptions" }
