// Package quote holds the canonical fund quote record and the per-run
// opportunity grouping built from it.
package quote

import (
	"sort"

	"github.com/shopspring/decimal"
)

// UnknownStatus marks a quote whose subscription status the provider did not report
const UnknownStatus = "未知"

// FundQuote is the canonical record produced by every normalizer.
// Treat it as a value: construct it with New or NewReported and never mutate it.
type FundQuote struct {
	Code               string  `json:"code"`
	Name               string  `json:"name"`
	ExchangePrice      float64 `json:"exchange_price"`
	ReferenceValue     float64 `json:"reference_value"`
	Turnover           float64 `json:"turnover"`
	SubscriptionStatus string  `json:"subscription_status"`
	PremiumRate        float64 `json:"premium_rate"`
	// Reported is true when PremiumRate came from the provider instead of being
	// derived from ExchangePrice and ReferenceValue.
	Reported bool `json:"reported"`
}

// New builds a quote whose premium is derived from price and reference value.
// An empty status becomes UnknownStatus; negative turnover is clamped to 0.
func New(code, name string, price, reference, turnover float64, status string) FundQuote {
	return FundQuote{
		Code:               code,
		Name:               name,
		ExchangePrice:      price,
		ReferenceValue:     reference,
		Turnover:           clampTurnover(turnover),
		SubscriptionStatus: orUnknown(status),
		PremiumRate:        PremiumRate(price, reference),
	}
}

// NewReported builds a quote carrying a provider-reported premium rate, rounded
// to 2 decimals. Reference value may be 0 when the provider did not publish one.
func NewReported(code, name string, price, reference, turnover, premium float64, status string) FundQuote {
	return FundQuote{
		Code:               code,
		Name:               name,
		ExchangePrice:      price,
		ReferenceValue:     reference,
		Turnover:           clampTurnover(turnover),
		SubscriptionStatus: orUnknown(status),
		PremiumRate:        Round2(premium),
		Reported:           true,
	}
}

// Complete reports whether the quote has both a positive price and a positive
// reference value, the precondition for a derived premium to mean anything.
func (q FundQuote) Complete() bool {
	return q.ExchangePrice > 0 && q.ReferenceValue > 0
}

// PremiumRate returns round((price-reference)/reference*100, 2) using decimal
// arithmetic so the same two floats always give the same result.
// A non-positive reference yields 0.
func PremiumRate(price, reference float64) float64 {
	if reference <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	r := decimal.NewFromFloat(reference)
	rate, _ := p.Sub(r).Div(r).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return rate
}

// Round2 rounds v half away from zero to 2 decimals
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// SortByPremiumDesc sorts quotes in place by descending premium; ties keep input order
func SortByPremiumDesc(quotes []FundQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].PremiumRate > quotes[j].PremiumRate
	})
}

func orUnknown(status string) string {
	if status == "" {
		return UnknownStatus
	}
	return status
}

func clampTurnover(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
