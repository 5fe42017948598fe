package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mizupay/config"
	"mizupay/internal/domain"
	"mizupay/internal/models"
	"mizupay/internal/repository"
	"mizupay/internal/ws"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/mailer"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckoutService drives a session from confirmed payment to a delivered
// gift card: markPaid → infer provider/currency → allocate → fulfill →
// email the code. The indexer delivers webhooks at least once, so every step
// is written to tolerate replays.
type CheckoutService struct {
	sessions    *SessionService
	allocator   *AllocatorService
	redemptions *repository.RedemptionRepository
	users       *repository.UserRepository
	cipher      *cardcipher.Cipher
	mail        *mailer.Client
	hub         *ws.SessionHub
	storeRules  []config.StoreRule
}

func NewCheckoutService(
	sessions *SessionService,
	allocator *AllocatorService,
	redemptions *repository.RedemptionRepository,
	users *repository.UserRepository,
	cipher *cardcipher.Cipher,
	mail *mailer.Client,
	hub *ws.SessionHub,
	storeRules []config.StoreRule,
) *CheckoutService {
	return &CheckoutService{
		sessions:    sessions,
		allocator:   allocator,
		redemptions: redemptions,
		users:       users,
		cipher:      cipher,
		mail:        mail,
		hub:         hub,
		storeRules:  storeRules,
	}
}

// HandlePaymentConfirmed reacts to a confirmed on-chain payment. Replays on
// already-FULFILLED sessions are silent no-ops; PAID sessions (an earlier
// fulfillment attempt failed) go straight back to fulfillment.
func (s *CheckoutService) HandlePaymentConfirmed(ctx context.Context, sessionID, txHash string) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	switch sess.Status {
	case domain.SessionFulfilled:
		return nil
	case domain.SessionPaid:
		// Earlier attempt stalled after payment; retry fulfillment only.
	case domain.SessionPending:
		sess, err = s.sessions.MarkPaid(sessionID, txHash)
		if err != nil {
			return err
		}
		s.hub.BroadcastStatus(sessionID, sess.Status)
	default:
		// FAILED or EXPIRED: the payment landed too late to honor here.
		log.Printf("[Checkout] payment for %s arrived in state %s, needs manual review", sessionID, sess.Status)
		return ErrInvalidTransition
	}
	_, err = s.fulfill(ctx, sess, false)
	return err
}

// RetryFulfillment re-runs allocation for a PAID session whose earlier
// attempt failed and returns the session in its settled state. allowDegraded
// lets support knowingly deliver a lower-value card when inventory cannot
// cover the amount.
func (s *CheckoutService) RetryFulfillment(ctx context.Context, sessionID string, allowDegraded bool) (*models.PaymentSession, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionPaid {
		return nil, ErrInvalidTransition
	}
	return s.fulfill(ctx, sess, allowDegraded)
}

func (s *CheckoutService) fulfill(ctx context.Context, sess *models.PaymentSession, allowDegraded bool) (*models.PaymentSession, error) {
	// A redemption may already exist if a previous attempt died between
	// reserving the card and fulfilling the session. Reuse it instead of
	// burning a second card.
	rd, err := s.redemptions.GetBySessionID(sess.SessionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if rd == nil {
		provider, currency := domain.InferStore(s.storeRules, sess.Store)
		alloc, err := s.allocator.AllocateWithOptions(sess.AmountUSD, currency, provider, allowDegraded)
		if err != nil {
			_ = s.sessions.RecordFulfillError(sess.SessionID, err.Error())
			log.Printf("[Checkout] allocation failed for %s: %v (session stays PAID)", sess.SessionID, err)
			return nil, err
		}
		rd = &models.Redemption{
			Reference:  fmt.Sprintf("mizu-rcpt-%s", uuid.New().String()),
			SessionID:  sess.SessionID,
			GiftCardID: alloc.Card.ID,
			UserID:     sess.UserID,
			Degraded:   alloc.Degraded,
		}
		if err := s.redemptions.Create(rd); err != nil {
			return nil, err
		}
		rd.GiftCard = *alloc.Card
	}

	updated, err := s.sessions.Fulfill(sess.SessionID, rd.GiftCardID)
	if err != nil {
		return nil, err
	}
	s.hub.BroadcastStatus(sess.SessionID, updated.Status)
	s.deliver(ctx, updated, rd)
	return updated, nil
}

// deliver emails the opened code to the session's owner. Delivery problems
// never unwind fulfillment; the redemption row keeps DeliveredAt nil so
// support can resend.
func (s *CheckoutService) deliver(ctx context.Context, sess *models.PaymentSession, rd *models.Redemption) {
	if sess.UserID == nil {
		log.Printf("[Checkout] session %s has no owner, skipping email delivery", sess.SessionID)
		return
	}
	user, err := s.users.GetByID(*sess.UserID)
	if err != nil {
		log.Printf("[Checkout] owner %d of session %s not found: %v", *sess.UserID, sess.SessionID, err)
		return
	}
	card := rd.GiftCard
	if card.ID == 0 {
		// Redemption loaded without preload; fetch through the card id.
		log.Printf("[Checkout] redemption %d missing card preload for session %s", rd.ID, sess.SessionID)
		return
	}
	code, err := s.cipher.Open(card.Code)
	if err != nil {
		log.Printf("[Checkout] cannot open code for card %d: %v", card.ID, err)
		return
	}
	subject := fmt.Sprintf("Your %s gift card from Mizu Pay", sess.Store)
	html := mailer.GiftCardHTML(sess.Store, card.Name, code, card.Amount, card.Currency)
	if _, err := s.mail.Send(ctx, user.Email, subject, html); err != nil {
		log.Printf("[Checkout] email delivery failed for session %s: %v", sess.SessionID, err)
		return
	}
	now := s.sessions.now()
	if err := s.redemptions.MarkDelivered(rd.ID, now); err != nil {
		log.Printf("[Checkout] failed to record delivery for redemption %d: %v", rd.ID, err)
	}
}
