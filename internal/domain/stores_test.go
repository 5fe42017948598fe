package domain

import (
	"testing"

	"mizupay/config"

	"github.com/stretchr/testify/assert"
)

func TestInferStore(t *testing.T) {
	rules := []config.StoreRule{
		{Match: "flipkart", Provider: "flipkart", Currency: "INR"},
		{Match: "myntra", Provider: "myntra", Currency: "INR"},
		{Match: "nykaa", Provider: "nykaa", Currency: "INR"},
		{Match: "", Provider: "amazon", Currency: "USD"},
	}

	tests := []struct {
		store    string
		provider string
		currency string
	}{
		{"www.flipkart.com", "flipkart", "INR"},
		{"MYNTRA.com", "myntra", "INR"},
		{"https://nykaa.com/cart", "nykaa", "INR"},
		{"amazon.in", "amazon", "USD"},
		{"some-unknown-shop.xyz", "amazon", "USD"},
		{"", "amazon", "USD"},
	}
	for _, tc := range tests {
		t.Run(tc.store, func(t *testing.T) {
			provider, currency := InferStore(rules, tc.store)
			assert.Equal(t, tc.provider, provider)
			assert.Equal(t, tc.currency, currency)
		})
	}
}

func TestInferStoreFirstRuleWins(t *testing.T) {
	rules := []config.StoreRule{
		{Match: "shop", Provider: "first", Currency: "INR"},
		{Match: "shop", Provider: "second", Currency: "USD"},
	}
	provider, _ := InferStore(rules, "myshop.com")
	assert.Equal(t, "first", provider)
}

func TestInferStoreWithoutCatchAll(t *testing.T) {
	rules := []config.StoreRule{
		{Match: "flipkart", Provider: "flipkart", Currency: "INR"},
	}
	provider, currency := InferStore(rules, "unmatched.example")
	assert.Equal(t, ProviderAmazon, provider)
	assert.Equal(t, CurrencyUSD, currency)
}
