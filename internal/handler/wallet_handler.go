package handler

import (
	"errors"
	"net/http"
	"strconv"

	"mizupay/internal/middleware"
	"mizupay/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type WalletHandler struct {
	walletRepo *repository.WalletRepository
}

func NewWalletHandler(walletRepo *repository.WalletRepository) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo}
}

// Link handles POST /me/wallets: attaches a CELO address to the account.
// Linking the same address twice is a no-op returning the existing wallet.
func (h *WalletHandler) Link(c *gin.Context) {
	userID := middleware.GetUserID(c)
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
	w, err := h.walletRepo.Link(userID, req.Address, req.ChainID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to link wallet"})
		return
	}
	if w.UserID != userID {
		c.JSON(http.StatusConflict, gin.H{"error": "address already linked to another account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": w})
}

// List handles GET /me/wallets, primary first.
func (h *WalletHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	wallets, err := h.walletRepo.ListByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list wallets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// SetPrimary handles PUT /me/wallets/:id/primary. Exactly one wallet per
// user stays primary; the repository demotes the rest transactionally.
func (h *WalletHandler) SetPrimary(c *gin.Context) {
	userID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.walletRepo.SetPrimary(userID, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set primary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"primary": id})
}
