package repository

import (
	"strings"

	"mizupay/internal/models"

	"gorm.io/gorm"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByID(id uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByAddress(address string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("address = ?", strings.ToLower(address)).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) ListByUser(userID uint) ([]models.Wallet, error) {
	var out []models.Wallet
	err := r.db.Where("user_id = ?", userID).Order("is_primary DESC, created_at ASC").Find(&out).Error
	return out, err
}

// Link attaches an address to a user, idempotently. Addresses are stored
// lowercased so on-chain checksummed forms compare equal. The first wallet a
// user links becomes primary.
func (r *WalletRepository) Link(userID uint, address string, chainID int64) (*models.Wallet, error) {
	address = strings.ToLower(address)
	if w, err := r.GetByAddress(address); err == nil {
		return w, nil
	}
	var count int64
	if err := r.db.Model(&models.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	w := &models.Wallet{UserID: userID, Address: address, ChainID: chainID, IsPrimary: count == 0}
	if err := r.db.Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

// SetPrimary marks one wallet primary and demotes the user's others in the
// same transaction, keeping the one-primary-per-user invariant.
func (r *WalletRepository) SetPrimary(userID, walletID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND user_id = ?", walletID, userID).
			Update("is_primary", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Wallet{}).
			Where("user_id = ? AND id <> ?", userID, walletID).
			Update("is_primary", false).Error
	})
}
