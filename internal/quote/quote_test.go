package quote

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPremiumRate(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		reference float64
		want      float64
	}{
		{"premium", 1.85, 1.6444, 12.5},
		{"discount", 0.95, 1.0, -5},
		{"par", 1.234, 1.234, 0},
		{"rounds half away from zero", 1.00125, 1.0, 0.13},
		{"zero reference", 1.2, 0, 0},
		{"negative reference", 1.2, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PremiumRate(tt.price, tt.reference))
		})
	}
}

func TestPremiumRateReproducible(t *testing.T) {
	pairs := [][2]float64{{1.85, 1.6444}, {0.731, 0.7021}, {3.3333, 2.9999}, {1.001, 0.999}}
	for _, p := range pairs {
		first := PremiumRate(p[0], p[1])
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, PremiumRate(p[0], p[1]))
		}
		// matches the float formula to the cent
		raw := (p[0] - p[1]) / p[1] * 100
		assert.InDelta(t, math.Round(raw*100)/100, first, 0.011)
	}
}

func TestNew(t *testing.T) {
	q := New("161125", "标普500LOF", 1.2, 1.0, -3, "")
	assert.Equal(t, 20.0, q.PremiumRate)
	assert.Equal(t, UnknownStatus, q.SubscriptionStatus)
	assert.Equal(t, 0.0, q.Turnover)
	assert.True(t, q.Complete())
	assert.False(t, q.Reported)

	incomplete := New("161126", "x", 1.2, 0, 10, "开放申购")
	assert.False(t, incomplete.Complete())
	assert.Equal(t, "开放申购", incomplete.SubscriptionStatus)
}

func TestNewReported(t *testing.T) {
	q := NewReported("160922", "标普500", 1.85, 0, 0, 12.499, "")
	assert.Equal(t, 12.5, q.PremiumRate)
	assert.True(t, q.Reported)
	assert.False(t, q.Complete())
}

func TestOpportunitySet(t *testing.T) {
	var set OpportunitySet
	assert.True(t, set.Empty())

	in := []FundQuote{
		NewReported("a", "A", 1, 0, 0, 6, ""),
		NewReported("b", "B", 1, 0, 0, 9, ""),
		NewReported("c", "C", 1, 0, 0, 7, ""),
	}
	set.Add("lof_index", "LOF指数", in)
	set.Add("qdii_us_eu", "QDII欧美", nil)

	assert.False(t, set.Empty())
	assert.Equal(t, 3, set.Total())

	c, ok := set.Get("lof_index")
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "c", "a"}, codes(c.Quotes))
	// input slice untouched
	assert.Equal(t, "a", in[0].Code)

	_, ok = set.Get("missing")
	assert.False(t, ok)
}

func codes(quotes []FundQuote) []string {
	out := make([]string, len(quotes))
	for i, q := range quotes {
		out[i] = q.Code
	}
	return out
}
