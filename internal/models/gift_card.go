package models

import (
	"time"

	"gorm.io/gorm"
)

// GiftCard is a prepaid code of fixed face value, redeemable once. Code is
// sealed with AES-GCM at rest and only opened at delivery time. IsUsed flips
// false→true exactly once, via the allocator's conditional update.
type GiftCard struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:128;not null" json:"name"`
	Provider   string         `gorm:"size:50;not null;index" json:"provider"` // e.g. "amazon", "myntra"
	Currency   string         `gorm:"size:3;not null;index" json:"currency"`
	Amount     float64        `gorm:"not null;index" json:"amount"`
	Code       string         `gorm:"size:512;not null" json:"-"`
	ArtURL     string         `gorm:"size:512" json:"art_url"`
	IsActive   bool           `gorm:"not null;default:true;index" json:"is_active"`
	IsUsed     bool           `gorm:"not null;default:false;index" json:"is_used"`
	ReservedAt *time.Time     `json:"reserved_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (GiftCard) TableName() string { return "gift_cards" }
