package service

import (
	"errors"
	"log"
	"time"

	"mizupay/internal/domain"
	"mizupay/internal/models"
	"mizupay/internal/repository"

	"gorm.io/gorm"
)

// SessionService owns the payment session lifecycle. All status changes go
// through guarded compare-and-swap updates, so concurrent callers racing on
// the same session resolve to exactly one winner; losers observe the winner's
// state and treat their own write as a no-op where the contract allows it.
type SessionService struct {
	repo       *repository.SessionRepository
	defaultTTL time.Duration
	now        func() time.Time
}

func NewSessionService(repo *repository.SessionRepository, defaultTTL time.Duration) *SessionService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &SessionService{repo: repo, defaultTTL: defaultTTL, now: time.Now}
}

// CreateOrRenew is an idempotent upsert: a missing session is created PENDING
// with expiry now+ttl; an existing PENDING session gets its expiry refreshed.
// Terminal sessions are returned as-is, never reactivated. The bool reports
// whether a new row was created.
func (s *SessionService) CreateOrRenew(sessionID string, userID *uint, amountUSD float64, store string, ttl time.Duration) (*models.PaymentSession, bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	existing, err := s.repo.GetBySessionID(sessionID)
	if err == nil {
		if domain.IsTerminalStatus(existing.Status) {
			return existing, false, nil
		}
		if _, err := s.repo.Renew(sessionID, now.Add(ttl)); err != nil {
			return nil, false, err
		}
		sess, err := s.repo.GetBySessionID(sessionID)
		return sess, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	sess := &models.PaymentSession{
		SessionID: sessionID,
		Status:    domain.SessionPending,
		AmountUSD: amountUSD,
		Store:     store,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(sess); err != nil {
		// A concurrent create may have won; fall back to the renew path.
		if again, err2 := s.repo.GetBySessionID(sessionID); err2 == nil {
			return again, false, nil
		}
		return nil, false, err
	}
	return sess, true, nil
}

// Get fetches a session, lazily expiring it first: a PENDING session past its
// deadline is transitioned to EXPIRED before being returned, so no reader
// ever makes a status-dependent decision on a stale PENDING.
func (s *SessionService) Get(sessionID string) (*models.PaymentSession, error) {
	sess, err := s.repo.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.Status == domain.SessionPending && sess.Expired(s.now()) {
		won, err := s.repo.Transition(sessionID, domain.SessionPending, domain.SessionExpired, nil)
		if err != nil {
			return nil, err
		}
		if won {
			log.Printf("[Session] %s expired lazily", sessionID)
		}
		// Either way re-read: a concurrent transition may have landed first.
		return s.repo.GetBySessionID(sessionID)
	}
	return sess, nil
}

// MarkFailed transitions PENDING→FAILED. Already-settled sessions are left
// untouched and returned with a nil error: failure must never overwrite a
// PAID, FULFILLED or EXPIRED outcome, and reporting one is not itself an error.
func (s *SessionService) MarkFailed(sessionID, reason string) (*models.PaymentSession, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	won, err := s.repo.Transition(sessionID, domain.SessionPending, domain.SessionFailed,
		map[string]interface{}{"fail_reason": reason})
	if err != nil {
		return nil, err
	}
	if !won {
		log.Printf("[Session] markFailed on %s was a no-op (already settled)", sessionID)
	}
	return s.repo.GetBySessionID(sessionID)
}

// MarkPaid transitions PENDING→PAID and records the confirming transaction
// hash. Unlike MarkFailed this is strict: calling it on a non-PENDING session
// is a state machine violation.
func (s *SessionService) MarkPaid(sessionID, txHash string) (*models.PaymentSession, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	now := s.now()
	won, err := s.repo.Transition(sessionID, domain.SessionPending, domain.SessionPaid,
		map[string]interface{}{"tx_hash": txHash, "paid_at": now})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidTransition
	}
	log.Printf("[Session] %s PAID tx=%s", sessionID, txHash)
	return s.repo.GetBySessionID(sessionID)
}

// Fulfill transitions PAID→FULFILLED once a gift card has been allocated.
func (s *SessionService) Fulfill(sessionID string, giftCardID uint) (*models.PaymentSession, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	now := s.now()
	won, err := s.repo.Transition(sessionID, domain.SessionPaid, domain.SessionFulfilled,
		map[string]interface{}{"gift_card_id": giftCardID, "fulfilled_at": now, "fulfill_error": ""})
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalidTransition
	}
	log.Printf("[Session] %s FULFILLED card=%d", sessionID, giftCardID)
	return s.repo.GetBySessionID(sessionID)
}

// RecordFulfillError notes an allocation failure on a PAID session without
// changing its status. The payment already landed on-chain, so the session
// stays PAID for retry rather than lying with FAILED. A session that moved
// off PAID in the meantime (a concurrent retry fulfilled it) is left alone.
func (s *SessionService) RecordFulfillError(sessionID, reason string) error {
	won, err := s.repo.UpdateFields(sessionID, domain.SessionPaid,
		map[string]interface{}{"fulfill_error": reason})
	if err != nil {
		return err
	}
	if !won {
		log.Printf("[Session] fulfill error for %s not recorded, session no longer PAID", sessionID)
	}
	return nil
}

// ExpireOverdue runs one sweep of the lazy-expiry transition over sessions
// nobody is querying. Optional; Get alone keeps reads correct.
func (s *SessionService) ExpireOverdue() (int64, error) {
	n, err := s.repo.ExpireOverdue(s.now())
	if n > 0 {
		log.Printf("[Session] sweep expired %d overdue sessions", n)
	}
	return n, err
}

// ListByUser returns a user's sessions, newest first.
func (s *SessionService) ListByUser(userID uint, limit int) ([]models.PaymentSession, error) {
	return s.repo.ListByUser(userID, limit)
}

// AttachWallet links the paying wallet to a still-open session. The write is
// guarded by the status the caller observed, so a transition landing between
// read and write is never overwritten; the attach is retried against the new
// status instead. Three attempts cover the longest possible transition chain
// (PENDING -> PAID -> FULFILLED).
func (s *SessionService) AttachWallet(sessionID string, walletID uint) (*models.PaymentSession, error) {
	for attempt := 0; attempt < 3; attempt++ {
		sess, err := s.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if domain.IsTerminalStatus(sess.Status) {
			return nil, ErrInvalidTransition
		}
		won, err := s.repo.UpdateFields(sessionID, sess.Status,
			map[string]interface{}{"wallet_id": walletID})
		if err != nil {
			return nil, err
		}
		if won {
			return s.repo.GetBySessionID(sessionID)
		}
	}
	return nil, ErrInvalidTransition
}
