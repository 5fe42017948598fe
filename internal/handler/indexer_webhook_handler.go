package handler

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"mizupay/config"
	"mizupay/internal/service"
	"mizupay/pkg/indexer"

	"github.com/gin-gonic/gin"
)

type IndexerWebhookHandler struct {
	cfg      *config.Config
	sessions *service.SessionService
	checkout *service.CheckoutService
	indexer  *indexer.Client
}

func NewIndexerWebhookHandler(
	cfg *config.Config,
	sessions *service.SessionService,
	checkout *service.CheckoutService,
	idx *indexer.Client,
) *IndexerWebhookHandler {
	return &IndexerWebhookHandler{cfg: cfg, sessions: sessions, checkout: checkout, indexer: idx}
}

type indexerCallback struct {
	Event      string  `json:"event"` // payment.confirmed | payment.failed
	SessionID  string  `json:"session_id"`
	TxHash     string  `json:"tx_hash"`
	Status     string  `json:"status"` // confirmed | failed
	AmountCUSD float64 `json:"amount_cusd"`
	From       string  `json:"from"`
}

// Handle processes indexer callbacks. Delivery is at-least-once: replays and
// callbacks for already-settled sessions are acknowledged with 200 so the
// indexer stops redelivering. Only transport-level problems return non-2xx.
func (h *IndexerWebhookHandler) Handle(c *gin.Context) {
	if secret := h.cfg.Indexer.WebhookSecret; secret != "" {
		got := c.GetHeader("X-Indexer-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
			return
		}
	}

	var payload indexerCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("[Indexer webhook] invalid payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	log.Printf("[Indexer webhook] event=%s session=%s tx=%s status=%s amount=%.4f",
		payload.Event, payload.SessionID, payload.TxHash, payload.Status, payload.AmountCUSD)

	if payload.SessionID == "" {
		log.Printf("[Indexer webhook] no session_id in payload, acknowledging")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	sess, err := h.sessions.Get(payload.SessionID)
	if err != nil {
		log.Printf("[Indexer webhook] session %s not found, acknowledging", payload.SessionID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if payload.Status == "failed" || payload.Event == "payment.failed" {
		if _, err := h.sessions.MarkFailed(payload.SessionID, "on-chain payment failed"); err != nil {
			log.Printf("[Indexer webhook] markFailed %s: %v", payload.SessionID, err)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if payload.Status != "confirmed" {
		log.Printf("[Indexer webhook] unhandled status=%s for session %s, ignoring", payload.Status, payload.SessionID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// Don't take the webhook's word for money: re-check against the indexer
	// before moving the state machine.
	if h.cfg.Indexer.VerifyPayments && h.indexer != nil {
		if _, err := h.indexer.VerifyPayment(c.Request.Context(), payload.TxHash, payload.SessionID, sess.AmountUSD); err != nil {
			log.Printf("[Indexer webhook] verification failed for session %s: %v", payload.SessionID, err)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
	}

	if err := h.checkout.HandlePaymentConfirmed(c.Request.Context(), payload.SessionID, payload.TxHash); err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			log.Printf("[Indexer webhook] session %s already settled, acknowledging", payload.SessionID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		// Allocation failures keep the session PAID. Answering non-2xx makes
		// the indexer redeliver, which is our fulfillment retry loop; the
		// admin retry endpoint covers the case where redelivery gives up.
		log.Printf("[Indexer webhook] fulfillment pending for session %s: %v", payload.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fulfillment pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
