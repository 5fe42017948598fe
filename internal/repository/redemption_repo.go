package repository

import (
	"time"

	"mizupay/internal/models"

	"gorm.io/gorm"
)

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) Create(rd *models.Redemption) error {
	return r.db.Create(rd).Error
}

func (r *RedemptionRepository) GetBySessionID(sessionID string) (*models.Redemption, error) {
	var rd models.Redemption
	err := r.db.Preload("GiftCard").Where("session_id = ?", sessionID).First(&rd).Error
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *RedemptionRepository) MarkDelivered(id uint, at time.Time) error {
	return r.db.Model(&models.Redemption{}).Where("id = ?", id).Update("delivered_at", at).Error
}

func (r *RedemptionRepository) ListByUser(userID uint, limit int) ([]models.Redemption, error) {
	var out []models.Redemption
	q := r.db.Preload("GiftCard").Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
