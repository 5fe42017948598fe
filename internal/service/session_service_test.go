package service

import (
	"testing"
	"time"

	"mizupay/internal/domain"
	"mizupay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T) (*SessionService, *time.Time) {
	t.Helper()
	db := newTestDB(t)
	svc := NewSessionService(repository.NewSessionRepository(db), 10*time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }
	return svc, clock
}

func TestCreateOrRenew(t *testing.T) {
	t.Run("creates pending with default ttl", func(t *testing.T) {
		svc, clock := newSessionService(t)
		sess, _, err := svc.CreateOrRenew("sess-1", nil, 42.50, "amazon.com", 0)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPending, sess.Status)
		assert.Equal(t, clock.Add(10*time.Minute), sess.ExpiresAt.UTC())
	})

	t.Run("renew refreshes expiry on pending", func(t *testing.T) {
		svc, clock := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 42.50, "amazon.com", 10*time.Minute)
		require.NoError(t, err)

		*clock = clock.Add(5 * time.Minute)
		sess, _, err := svc.CreateOrRenew("sess-1", nil, 42.50, "amazon.com", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPending, sess.Status)
		assert.Equal(t, clock.Add(10*time.Minute), sess.ExpiresAt.UTC())
	})

	t.Run("does not reactivate a terminal session", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 42.50, "amazon.com", 0)
		require.NoError(t, err)
		_, err = svc.MarkFailed("sess-1", "wallet rejected")
		require.NoError(t, err)

		sess, _, err := svc.CreateOrRenew("sess-1", nil, 42.50, "amazon.com", 0)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionFailed, sess.Status)
	})
}

func TestLazyExpiry(t *testing.T) {
	svc, clock := newSessionService(t)
	_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 10*time.Minute)
	require.NoError(t, err)

	*clock = clock.Add(11 * time.Minute)
	sess, err := svc.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, sess.Status)

	// Expiry is terminal: a later payment confirmation must not land.
	_, err = svc.MarkPaid("sess-1", "0xabc")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExpireOverdueSweep(t *testing.T) {
	svc, clock := newSessionService(t)
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := svc.CreateOrRenew(id, nil, 10, "amazon.com", 10*time.Minute)
		require.NoError(t, err)
	}
	_, err := svc.MarkPaid("c", "0x1")
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)
	n, err := svc.ExpireOverdue()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n) // "c" is PAID, never swept

	sess, err := svc.Get("c")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, sess.Status)
}

func TestMarkPaid(t *testing.T) {
	t.Run("pending to paid records tx hash", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
		require.NoError(t, err)

		sess, err := svc.MarkPaid("sess-1", "0xabc")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionPaid, sess.Status)
		assert.Equal(t, "0xabc", sess.TxHash)
		require.NotNil(t, sess.PaidAt)
	})

	t.Run("fails on non-pending and does not mutate", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
		require.NoError(t, err)
		_, err = svc.MarkFailed("sess-1", "user cancelled")
		require.NoError(t, err)

		_, err = svc.MarkPaid("sess-1", "0xdef")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		sess, err := svc.Get("sess-1")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionFailed, sess.Status)
		assert.Empty(t, sess.TxHash)
	})

	t.Run("missing session", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, err := svc.MarkPaid("nope", "0xabc")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestMarkFailedIdempotentOnTerminal(t *testing.T) {
	svc, _ := newSessionService(t)
	_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
	require.NoError(t, err)
	_, err = svc.MarkPaid("sess-1", "0xabc")
	require.NoError(t, err)
	_, err = svc.Fulfill("sess-1", 7)
	require.NoError(t, err)

	// Failure reports must never overwrite a fulfilled outcome.
	sess, err := svc.MarkFailed("sess-1", "late failure report")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionFulfilled, sess.Status)
	assert.Empty(t, sess.FailReason)
}

func TestFulfill(t *testing.T) {
	t.Run("paid to fulfilled", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
		require.NoError(t, err)
		_, err = svc.MarkPaid("sess-1", "0xabc")
		require.NoError(t, err)

		sess, err := svc.Fulfill("sess-1", 3)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionFulfilled, sess.Status)
		require.NotNil(t, sess.GiftCardID)
		assert.EqualValues(t, 3, *sess.GiftCardID)
	})

	t.Run("rejected off pending", func(t *testing.T) {
		svc, _ := newSessionService(t)
		_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
		require.NoError(t, err)

		_, err = svc.Fulfill("sess-1", 3)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	for _, setup := range []struct {
		name   string
		settle func(svc *SessionService) // drives sess-1 into a terminal state
		want   string
	}{
		{"failed", func(svc *SessionService) { _, _ = svc.MarkFailed("sess-1", "x") }, domain.SessionFailed},
		{"fulfilled", func(svc *SessionService) {
			_, _ = svc.MarkPaid("sess-1", "0x1")
			_, _ = svc.Fulfill("sess-1", 1)
		}, domain.SessionFulfilled},
	} {
		t.Run(setup.name, func(t *testing.T) {
			svc, _ := newSessionService(t)
			_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "amazon.com", 0)
			require.NoError(t, err)
			setup.settle(svc)

			_, _ = svc.MarkFailed("sess-1", "again")
			_, _ = svc.MarkPaid("sess-1", "0x2")
			_, _ = svc.Fulfill("sess-1", 9)

			sess, err := svc.Get("sess-1")
			require.NoError(t, err)
			assert.Equal(t, setup.want, sess.Status)
		})
	}
}

func TestFieldWritesNeverRevertTransitions(t *testing.T) {
	svc, _ := newSessionService(t)
	_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
	require.NoError(t, err)

	// One caller observed PENDING; the webhook then lands the payment.
	observed := domain.SessionPending
	_, err = svc.MarkPaid("sess-1", "0xabc")
	require.NoError(t, err)

	// The stale write must lose its status guard and leave the row alone.
	won, err := svc.repo.UpdateFields("sess-1", observed, map[string]interface{}{"wallet_id": 7})
	require.NoError(t, err)
	assert.False(t, won)

	sess, err := svc.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, sess.Status)
	assert.Equal(t, "0xabc", sess.TxHash)
	assert.Nil(t, sess.WalletID)
}

func TestAttachWalletPreservesPaidState(t *testing.T) {
	svc, _ := newSessionService(t)
	_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
	require.NoError(t, err)
	_, err = svc.MarkPaid("sess-1", "0xabc")
	require.NoError(t, err)

	sess, err := svc.AttachWallet("sess-1", 7)
	require.NoError(t, err)
	require.NotNil(t, sess.WalletID)
	assert.EqualValues(t, 7, *sess.WalletID)
	assert.Equal(t, domain.SessionPaid, sess.Status)
	assert.Equal(t, "0xabc", sess.TxHash)

	// Settled sessions refuse the attach.
	_, err = svc.Fulfill("sess-1", 3)
	require.NoError(t, err)
	_, err = svc.AttachWallet("sess-1", 9)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordFulfillErrorOnlyOnPaid(t *testing.T) {
	svc, _ := newSessionService(t)
	_, _, err := svc.CreateOrRenew("sess-1", nil, 25, "myntra.com", 0)
	require.NoError(t, err)

	// Not PAID yet: nothing recorded, status untouched.
	require.NoError(t, svc.RecordFulfillError("sess-1", "no card"))
	sess, err := svc.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, sess.Status)
	assert.Empty(t, sess.FulfillError)

	_, err = svc.MarkPaid("sess-1", "0x1")
	require.NoError(t, err)
	require.NoError(t, svc.RecordFulfillError("sess-1", "no card"))
	sess, err = svc.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaid, sess.Status)
	assert.Equal(t, "no card", sess.FulfillError)
}
