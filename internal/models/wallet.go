package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet links an external CELO wallet address to an application user. One
// user may link several wallets; at most one is marked primary.
type Wallet struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Address   string         `gorm:"size:64;uniqueIndex;not null" json:"address"`
	ChainID   int64          `gorm:"not null;default:42220" json:"chain_id"` // CELO mainnet
	IsPrimary bool           `gorm:"not null;default:false;index" json:"is_primary"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string { return "wallets" }
