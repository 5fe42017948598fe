package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"mizupay/internal/domain"
	"mizupay/internal/middleware"
	"mizupay/internal/repository"
	"mizupay/internal/service"
	"mizupay/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SessionHandler struct {
	sessions   *service.SessionService
	checkout   *service.CheckoutService
	userRepo   *repository.UserRepository
	walletRepo *repository.WalletRepository
	hub        *ws.SessionHub
}

func NewSessionHandler(
	sessions *service.SessionService,
	checkout *service.CheckoutService,
	userRepo *repository.UserRepository,
	walletRepo *repository.WalletRepository,
	hub *ws.SessionHub,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		checkout:   checkout,
		userRepo:   userRepo,
		walletRepo: walletRepo,
		hub:        hub,
	}
}

// Create handles POST /sessions: idempotent create-or-renew of a checkout
// session. The session id is minted by the client (browser extension), so a
// replayed request refreshes the expiry window instead of duplicating.
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		SessionID  string  `json:"session_id" binding:"required"`
		AmountUSD  float64 `json:"amount_usd" binding:"min=0"`
		Store      string  `json:"store"`
		TTLMinutes int     `json:"ttl_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	var ownerID *uint
	if uid := middleware.GetUserID(c); uid != 0 {
		if _, err := h.userRepo.GetByID(uid); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "owner not found"})
			return
		}
		ownerID = &uid
	}

	sess, created, err := h.sessions.CreateOrRenew(req.SessionID, ownerID, req.AmountUSD, req.Store,
		time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{
		"session_id": sess.SessionID,
		"status":     sess.Status,
		"expires_at": sess.ExpiresAt,
	})
}

// Get handles GET /sessions/:id. Reading a stale PENDING session expires it
// first, so the returned status is always decision-safe.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.SessionID,
		"status":     sess.Status,
		"amount_usd": sess.AmountUSD,
		"store":      sess.Store,
		"expired":    sess.Status == domain.SessionExpired,
		"expires_at": sess.ExpiresAt,
	})
}

// Fail handles POST /sessions/:id/fail. Idempotent: failing a session that
// already settled reports the settled status with 200.
func (h *SessionHandler) Fail(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req) // body optional
	if req.Reason == "" {
		req.Reason = "client reported failure"
	}
	sess, err := h.sessions.MarkFailed(c.Param("id"), req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update session"})
		return
	}
	if sess.Status == domain.SessionFailed {
		h.hub.BroadcastStatus(sess.SessionID, sess.Status)
	}
	c.JSON(http.StatusOK, gin.H{"status": sess.Status})
}

// AttachWallet handles POST /sessions/:id/wallet: links the paying wallet to
// the session (and to the signed-in user when present).
func (h *SessionHandler) AttachWallet(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		ChainID int64  `json:"chain_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ChainID == 0 {
		req.ChainID = 42220
	}

	var walletID uint
	if uid := middleware.GetUserID(c); uid != 0 {
		w, err := h.walletRepo.Link(uid, req.Address, req.ChainID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link wallet"})
			return
		}
		walletID = w.ID
	} else {
		w, err := h.walletRepo.GetByAddress(req.Address)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "wallet not linked to any account"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up wallet"})
			}
			return
		}
		walletID = w.ID
	}

	sess, err := h.sessions.AttachWallet(c.Param("id"), walletID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "session no longer valid, start again"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach wallet"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": sess.Status, "wallet_id": walletID})
}

// RetryFulfillment handles POST /admin/sessions/:id/retry-fulfillment for
// support: re-runs allocation on a PAID session whose first attempt failed.
func (h *SessionHandler) RetryFulfillment(c *gin.Context) {
	var req struct {
		AllowDegraded bool `json:"allow_degraded"`
	}
	_ = c.ShouldBindJSON(&req)
	sess, err := h.checkout.RetryFulfillment(c.Request.Context(), c.Param("id"), req.AllowDegraded)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "session is not awaiting fulfillment"})
		case errors.Is(err, service.ErrDegradedAllocation):
			c.JSON(http.StatusConflict, gin.H{"error": "only a lower-value card is available; retry with allow_degraded"})
		case errors.Is(err, service.ErrNoGiftCardAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": "no suitable gift card, contact support"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "retry failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": sess.Status})
}

// ListMine handles GET /me/sessions.
func (h *SessionHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessions, err := h.sessions.ListByUser(userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
