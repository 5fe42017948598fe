package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Payment session statuses. PENDING is the only non-terminal state; PAID is
// transient and may only move to FULFILLED.
const (
	SessionPending   = "PENDING"
	SessionPaid      = "PAID"
	SessionFailed    = "FAILED"
	SessionExpired   = "EXPIRED"
	SessionFulfilled = "FULFILLED"
)

// IsTerminalStatus reports whether no further transition is permitted.
// PAID is not terminal: it still awaits fulfillment.
func IsTerminalStatus(status string) bool {
	switch status {
	case SessionFailed, SessionExpired, SessionFulfilled:
		return true
	}
	return false
}

const (
	CurrencyUSD = "USD"
	CurrencyINR = "INR"
)

const (
	ProviderAmazon   = "amazon"
	ProviderFlipkart = "flipkart"
	ProviderMyntra   = "myntra"
	ProviderNykaa    = "nykaa"
)
