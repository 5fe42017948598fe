package domain

import (
	"strings"

	"mizupay/config"
)

// InferStore derives the gift card provider and currency for a free-text store
// name by case-insensitive substring match against the configured rules. The
// first matching rule wins; a rule with an empty Match is the catch-all, so an
// unrecognized store silently falls back to the default row.
func InferStore(rules []config.StoreRule, store string) (provider, currency string) {
	s := strings.ToLower(store)
	for _, r := range rules {
		if r.Match == "" || strings.Contains(s, strings.ToLower(r.Match)) {
			return r.Provider, r.Currency
		}
	}
	// No catch-all configured; keep the historical default.
	return ProviderAmazon, CurrencyUSD
}
