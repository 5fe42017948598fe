package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"mizupay/internal/middleware"
	"mizupay/internal/models"
	"mizupay/internal/repository"
	"mizupay/pkg/cardcipher"
	"mizupay/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type GiftCardHandler struct {
	cards       *repository.GiftCardRepository
	redemptions *repository.RedemptionRepository
	cipher      *cardcipher.Cipher
	cloud       cloudinary.Client
}

func NewGiftCardHandler(
	cards *repository.GiftCardRepository,
	redemptions *repository.RedemptionRepository,
	cipher *cardcipher.Cipher,
	cloud cloudinary.Client,
) *GiftCardHandler {
	return &GiftCardHandler{cards: cards, redemptions: redemptions, cipher: cipher, cloud: cloud}
}

// Create handles POST /admin/giftcards: provisions one card. The plaintext
// code is sealed before the row is written and never stored or echoed back.
func (h *GiftCardHandler) Create(c *gin.Context) {
	var req struct {
		Name     string  `json:"name" binding:"required"`
		Provider string  `json:"provider" binding:"required"`
		Currency string  `json:"currency" binding:"required,len=3"`
		Amount   float64 `json:"amount" binding:"required,gt=0"`
		Code     string  `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sealed, err := h.cipher.Seal(req.Code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to seal code"})
		return
	}
	gc := &models.GiftCard{
		Name:     req.Name,
		Provider: req.Provider,
		Currency: req.Currency,
		Amount:   req.Amount,
		Code:     sealed,
		IsActive: true,
	}
	if err := h.cards.Create(gc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create gift card"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gift_card": gc})
}

// List handles GET /admin/giftcards with provider/currency/include_used filters.
func (h *GiftCardHandler) List(c *gin.Context) {
	includeUsed := c.Query("include_used") == "true"
	cards, err := h.cards.List(c.Query("provider"), c.Query("currency"), includeUsed, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list gift cards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift_cards": cards, "count": len(cards)})
}

// Deactivate handles DELETE /admin/giftcards/:id: pulls a card from the
// allocatable pool without touching its used flag.
func (h *GiftCardHandler) Deactivate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.cards.Deactivate(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": id})
}

// UploadArt handles POST /admin/giftcards/:id/art: brand artwork for the
// card, shown on the checkout success page.
func (h *GiftCardHandler) UploadArt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	gc, err := h.cards.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "gift card not found"})
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()
	url, err := h.cloud.UploadImage(c.Request.Context(), file, "giftcards", fmt.Sprintf("card_%d", gc.ID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	gc.ArtURL = url
	if err := h.cards.Update(gc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save art url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"art_url": url})
}

// MyRedemptions handles GET /me/redemptions: the user's delivered cards,
// codes opened on the fly for display.
func (h *GiftCardHandler) MyRedemptions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	reds, err := h.redemptions.ListByUser(userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list redemptions"})
		return
	}
	out := make([]gin.H, 0, len(reds))
	for _, rd := range reds {
		code := ""
		if rd.GiftCard.Code != "" {
			if plain, err := h.cipher.Open(rd.GiftCard.Code); err == nil {
				code = plain
			}
		}
		out = append(out, gin.H{
			"reference":    rd.Reference,
			"session_id":   rd.SessionID,
			"name":         rd.GiftCard.Name,
			"provider":     rd.GiftCard.Provider,
			"currency":     rd.GiftCard.Currency,
			"amount":       rd.GiftCard.Amount,
			"art_url":      rd.GiftCard.ArtURL,
			"code":         code,
			"degraded":     rd.Degraded,
			"delivered_at": rd.DeliveredAt,
			"created_at":   rd.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"redemptions": out})
}
