package service

import (
	"context"
	"testing"
	"time"

	"mizupay/config"
	"mizupay/internal/domain"
	"mizupay/internal/models"
	"mizupay/internal/repository"
	"mizupay/internal/ws"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testCipherKey = "0123456789abcdef0123456789abcdef"

type checkoutFixture struct {
	db          *gorm.DB
	sessions    *SessionService
	checkout    *CheckoutService
	redemptions *repository.RedemptionRepository
	cards       *repository.GiftCardRepository
	cipher      *cardcipher.Cipher
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := newTestDB(t)
	cipher, err := cardcipher.New(testCipherKey)
	require.NoError(t, err)

	sessionSvc := NewSessionService(repository.NewSessionRepository(db), 10*time.Minute)
	cardRepo := repository.NewGiftCardRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	checkout := NewCheckoutService(
		sessionSvc,
		NewAllocatorService(cardRepo),
		redemptionRepo,
		repository.NewUserRepository(db),
		cipher,
		mailer.NewClient("", "", "test@mizupay.xyz"), // no API key: delivery is dropped, not failed
		ws.NewSessionHub(),
		[]config.StoreRule{
			{Match: "flipkart", Provider: "flipkart", Currency: "INR"},
			{Match: "myntra", Provider: "myntra", Currency: "INR"},
			{Match: "nykaa", Provider: "nykaa", Currency: "INR"},
			{Match: "", Provider: "amazon", Currency: "USD"},
		},
	)
	return &checkoutFixture{
		db:          db,
		sessions:    sessionSvc,
		checkout:    checkout,
		redemptions: redemptionRepo,
		cards:       cardRepo,
		cipher:      cipher,
	}
}

func (f *checkoutFixture) seedCard(t *testing.T, provider, currency string, amount float64, plainCode string) *models.GiftCard {
	t.Helper()
	sealed, err := f.cipher.Seal(plainCode)
	require.NoError(t, err)
	gc := &models.GiftCard{
		Name:     provider + " card",
		Provider: provider,
		Currency: currency,
		Amount:   amount,
		Code:     sealed,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(gc).Error)
	return gc
}

func TestCheckoutEndToEnd(t *testing.T) {
	f := newCheckoutFixture(t)
	myntra := f.seedCard(t, "myntra", "INR", 30, "MYN-30-CODE")
	f.seedCard(t, "amazon", "USD", 100, "AMZ-100-CODE")

	_, _, err := f.sessions.CreateOrRenew("sess-e2e", nil, 25, "www.myntra.com", 10*time.Minute)
	require.NoError(t, err)

	err = f.checkout.HandlePaymentConfirmed(context.Background(), "sess-e2e", "0xabc")
	require.NoError(t, err)

	sess, err := f.sessions.Get("sess-e2e")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFulfilled, sess.Status)
	assert.Equal(t, "0xabc", sess.TxHash)
	require.NotNil(t, sess.GiftCardID)
	assert.Equal(t, myntra.ID, *sess.GiftCardID)

	card, err := f.cards.GetByID(myntra.ID)
	require.NoError(t, err)
	assert.True(t, card.IsUsed)

	rd, err := f.redemptions.GetBySessionID("sess-e2e")
	require.NoError(t, err)
	assert.Equal(t, myntra.ID, rd.GiftCardID)
	assert.False(t, rd.Degraded)
	assert.Contains(t, rd.Reference, "mizu-rcpt-")
}

func TestCheckoutReplayIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCard(t, "amazon", "USD", 50, "AMZ-50")
	f.seedCard(t, "amazon", "USD", 60, "AMZ-60")

	_, _, err := f.sessions.CreateOrRenew("sess-1", nil, 40, "amazon.com", 10*time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.checkout.HandlePaymentConfirmed(context.Background(), "sess-1", "0x1"))
	require.NoError(t, f.checkout.HandlePaymentConfirmed(context.Background(), "sess-1", "0x1"))

	// Exactly one card consumed despite the replay.
	var used int64
	require.NoError(t, f.db.Model(&models.GiftCard{}).Where("is_used = ?", true).Count(&used).Error)
	assert.EqualValues(t, 1, used)
}

func TestCheckoutAllocationFailureKeepsSessionPaid(t *testing.T) {
	f := newCheckoutFixture(t)
	// Only an insufficient card exists: strict fulfillment must refuse it.
	small := f.seedCard(t, "amazon", "USD", 5, "AMZ-5")

	_, _, err := f.sessions.CreateOrRenew("sess-1", nil, 500, "amazon.com", 10*time.Minute)
	require.NoError(t, err)

	err = f.checkout.HandlePaymentConfirmed(context.Background(), "sess-1", "0x1")
	assert.ErrorIs(t, err, ErrDegradedAllocation)

	sess, err := f.sessions.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, sess.Status)
	assert.NotEmpty(t, sess.FulfillError)

	card, err := f.cards.GetByID(small.ID)
	require.NoError(t, err)
	assert.False(t, card.IsUsed)

	// Support approves the degraded delivery explicitly.
	sess, err = f.checkout.RetryFulfillment(context.Background(), "sess-1", true)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFulfilled, sess.Status)

	rd, err := f.redemptions.GetBySessionID("sess-1")
	require.NoError(t, err)
	assert.True(t, rd.Degraded)
}

func TestCheckoutEmptyCatalogKeepsSessionPaid(t *testing.T) {
	f := newCheckoutFixture(t)
	_, _, err := f.sessions.CreateOrRenew("sess-1", nil, 25, "nykaa.com", 10*time.Minute)
	require.NoError(t, err)

	err = f.checkout.HandlePaymentConfirmed(context.Background(), "sess-1", "0x1")
	assert.ErrorIs(t, err, ErrNoGiftCardAvailable)

	sess, err := f.sessions.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, sess.Status)
}

func TestCheckoutRejectsSettledSessions(t *testing.T) {
	f := newCheckoutFixture(t)
	f.seedCard(t, "amazon", "USD", 50, "AMZ-50")

	_, _, err := f.sessions.CreateOrRenew("sess-1", nil, 25, "amazon.com", 10*time.Minute)
	require.NoError(t, err)
	_, err = f.sessions.MarkFailed("sess-1", "user cancelled")
	require.NoError(t, err)

	err = f.checkout.HandlePaymentConfirmed(context.Background(), "sess-1", "0x1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryFulfillmentRequiresPaid(t *testing.T) {
	f := newCheckoutFixture(t)
	_, _, err := f.sessions.CreateOrRenew("sess-1", nil, 25, "amazon.com", 10*time.Minute)
	require.NoError(t, err)

	_, err = f.checkout.RetryFulfillment(context.Background(), "sess-1", false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
