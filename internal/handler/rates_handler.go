package handler

import (
	"net/http"

	"mizupay/pkg/pricefeed"

	"github.com/gin-gonic/gin"
)

type RatesHandler struct {
	feed *pricefeed.Client
}

func NewRatesHandler(feed *pricefeed.Client) *RatesHandler {
	return &RatesHandler{feed: feed}
}

// GetCelo proxies the current CELO/cUSD USD prices for the checkout page.
func (h *RatesHandler) GetCelo(c *gin.Context) {
	q, err := h.feed.GetQuote(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch exchange rates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"celo_usd": q.CeloUSD,
		"cusd_usd": q.CusdUSD,
		"as_of":    q.AsOf,
	})
}
