package opportunity

import "github.com/wonny/fundarb/internal/quote"

// Summary is the headline view of a filtered list
type Summary struct {
	Count     int     `json:"count"`
	HighCount int     `json:"high_count"` // premium >= high threshold
	MaxRate   float64 `json:"max_premium_rate"`
	AvgRate   float64 `json:"avg_premium_rate"`
}

// Summarize counts quotes, those at or above high, and the max/average premium
func Summarize(quotes []quote.FundQuote, high float64) Summary {
	s := Summary{Count: len(quotes)}
	if len(quotes) == 0 {
		return s
	}

	sum := 0.0
	s.MaxRate = quotes[0].PremiumRate
	for _, q := range quotes {
		if q.PremiumRate >= high {
			s.HighCount++
		}
		if q.PremiumRate > s.MaxRate {
			s.MaxRate = q.PremiumRate
		}
		sum += q.PremiumRate
	}
	s.AvgRate = quote.Round2(sum / float64(len(quotes)))
	return s
}
