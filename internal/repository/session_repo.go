package repository

import (
	"time"

	"mizupay/internal/domain"
	"mizupay/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(s *models.PaymentSession) error {
	return r.db.Create(s).Error
}

func (r *SessionRepository) GetBySessionID(sessionID string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	err := r.db.Where("session_id = ?", sessionID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateFields applies a column-scoped update guarded by the status the
// caller observed. Returns true if the row was still in that status. The
// status column itself is off limits here; transitions go through Transition
// so a stale snapshot can never overwrite one.
func (r *SessionRepository) UpdateFields(sessionID, observedStatus string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, observedStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Transition performs a guarded compare-and-swap on the session status:
// the row is updated only if its status still equals `from`. Returns true if
// this caller won the transition. Losers must re-read to observe the winner.
func (r *SessionRepository) Transition(sessionID, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	res := r.db.Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Renew pushes out the expiry of a still-PENDING session. Terminal sessions
// are left untouched; the caller decides what that means.
func (r *SessionRepository) Renew(sessionID string, expiresAt time.Time) (bool, error) {
	res := r.db.Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, domain.SessionPending).
		Update("expires_at", expiresAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExpireOverdue flips every PENDING session past its deadline to EXPIRED.
// Used by the optional background sweep; the read path performs the same
// transition lazily per session, so correctness does not depend on this.
func (r *SessionRepository) ExpireOverdue(now time.Time) (int64, error) {
	res := r.db.Model(&models.PaymentSession{}).
		Where("status = ? AND expires_at < ?", domain.SessionPending, now).
		Update("status", domain.SessionExpired)
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) ListByUser(userID uint, limit int) ([]models.PaymentSession, error) {
	var out []models.PaymentSession
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
