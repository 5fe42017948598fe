package repository

import (
	"time"

	"mizupay/internal/models"

	"gorm.io/gorm"
)

type GiftCardRepository struct {
	db *gorm.DB
}

func NewGiftCardRepository(db *gorm.DB) *GiftCardRepository {
	return &GiftCardRepository{db: db}
}

func (r *GiftCardRepository) Create(gc *models.GiftCard) error {
	return r.db.Create(gc).Error
}

func (r *GiftCardRepository) GetByID(id uint) (*models.GiftCard, error) {
	var gc models.GiftCard
	err := r.db.First(&gc, id).Error
	if err != nil {
		return nil, err
	}
	return &gc, nil
}

func (r *GiftCardRepository) Update(gc *models.GiftCard) error {
	return r.db.Save(gc).Error
}

// CandidateFilter is one step of the allocator's relaxation chain. Zero-value
// fields are not filtered on; MinAmount <= 0 drops the face-value floor
// (last-resort step).
type CandidateFilter struct {
	Provider  string
	Currency  string
	MinAmount float64
}

// Candidates lists active, unused cards matching the filter, cheapest first.
// Ordering ascending by amount keeps the excess value given away minimal.
func (r *GiftCardRepository) Candidates(f CandidateFilter, limit int) ([]models.GiftCard, error) {
	q := r.db.Where("is_active = ? AND is_used = ?", true, false)
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Currency != "" {
		q = q.Where("currency = ?", f.Currency)
	}
	if f.MinAmount > 0 {
		q = q.Where("amount >= ?", f.MinAmount)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.GiftCard
	err := q.Order("amount ASC, id ASC").Find(&out).Error
	return out, err
}

// Reserve atomically claims a card: the update lands only if the row is still
// active and unused, so at most one caller ever wins a given card. Returns
// true if this caller's claim landed.
func (r *GiftCardRepository) Reserve(id uint, now time.Time) (bool, error) {
	res := r.db.Model(&models.GiftCard{}).
		Where("id = ? AND is_used = ? AND is_active = ?", id, false, true).
		Updates(map[string]interface{}{"is_used": true, "reserved_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns inventory for the admin view, newest first.
func (r *GiftCardRepository) List(provider, currency string, includeUsed bool, limit int) ([]models.GiftCard, error) {
	q := r.db.Order("created_at DESC")
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	if currency != "" {
		q = q.Where("currency = ?", currency)
	}
	if !includeUsed {
		q = q.Where("is_used = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.GiftCard
	err := q.Find(&out).Error
	return out, err
}

func (r *GiftCardRepository) Deactivate(id uint) error {
	return r.db.Model(&models.GiftCard{}).Where("id = ?", id).Update("is_active", false).Error
}
