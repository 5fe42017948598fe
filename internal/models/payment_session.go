package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentSession is one checkout attempt: the client supplies SessionID, pays
// the quoted USD amount in cUSD on-chain, and receives a gift card for Store.
// Sessions are never hard-deleted; they are the audit trail of every attempt.
type PaymentSession struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SessionID    string         `gorm:"size:128;uniqueIndex;not null" json:"session_id"`
	Status       string         `gorm:"size:20;not null;index" json:"status"` // PENDING, PAID, FAILED, EXPIRED, FULFILLED
	AmountUSD    float64        `gorm:"not null" json:"amount_usd"`
	Store        string         `gorm:"size:255" json:"store"`
	TxHash       string         `gorm:"size:80;index" json:"tx_hash"`
	FailReason   string         `gorm:"size:255" json:"fail_reason,omitempty"`
	FulfillError string         `gorm:"size:255" json:"-"` // set when payment landed but allocation failed
	GiftCardID   *uint          `gorm:"index" json:"gift_card_id,omitempty"`
	WalletID     *uint          `gorm:"index" json:"wallet_id,omitempty"`
	UserID       *uint          `gorm:"index" json:"user_id,omitempty"`
	ExpiresAt    time.Time      `gorm:"not null;index" json:"expires_at"`
	PaidAt       *time.Time     `json:"paid_at,omitempty"`
	FulfilledAt  *time.Time     `json:"fulfilled_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	GiftCard *GiftCard `gorm:"foreignKey:GiftCardID" json:"-"`
	Wallet   *Wallet   `gorm:"foreignKey:WalletID" json:"-"`
	User     *User     `gorm:"foreignKey:UserID" json:"-"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

// Expired reports whether a still-PENDING session is past its deadline at t.
func (s *PaymentSession) Expired(t time.Time) bool {
	return t.After(s.ExpiresAt)
}
