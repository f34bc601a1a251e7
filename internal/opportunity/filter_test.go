package opportunity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fundarb/internal/quote"
)

func reported(code, name string, premium float64) quote.FundQuote {
	return quote.NewReported(code, name, 1, 0, 0, premium, "")
}

func sample() []quote.FundQuote {
	return []quote.FundQuote{
		reported("160922", "标普500", 12.5),
		reported("161125", "标普生物", 3.2),
		reported("160416", "石油基金", 8.1),
		reported("164824", "印度基金", 5.0),
		reported("161226", "白银基金", 20.4),
		reported("513100", "纳指ETF", 8.1),
	}
}

func premiums(quotes []quote.FundQuote) []float64 {
	out := make([]float64, len(quotes))
	for i, q := range quotes {
		out[i] = q.PremiumRate
	}
	return out
}

func TestFilterByPremium(t *testing.T) {
	got := FilterByPremium(sample(), 5.0)

	// strict: 5.0 itself is excluded; ties keep input order
	assert.Equal(t, []float64{20.4, 12.5, 8.1, 8.1}, premiums(got))
	assert.Equal(t, "160416", got[2].Code)
	assert.Equal(t, "513100", got[3].Code)
}

func TestFilterByPremium_Idempotent(t *testing.T) {
	for _, threshold := range []float64{-1, 0, 5, 8.1, 12.5, 100} {
		once := FilterByPremium(sample(), threshold)
		twice := FilterByPremium(once, threshold)
		assert.Equal(t, once, twice, "threshold=%v", threshold)
	}
}

func TestFilterByPremium_Monotonic(t *testing.T) {
	prev := len(sample()) + 1
	for _, threshold := range []float64{-10, 0, 3.2, 5, 8.1, 12.5, 20.4, 50} {
		got := FilterByPremium(sample(), threshold)
		for _, q := range got {
			assert.Greater(t, q.PremiumRate, threshold)
		}
		assert.LessOrEqual(t, len(got), prev)
		prev = len(got)
	}
}

func TestFilterByPremium_DoesNotMutateInput(t *testing.T) {
	in := sample()
	FilterByPremium(in, 0)
	assert.Equal(t, sample(), in)
}

func TestFilterByKeywordsAndPremium_Scenario(t *testing.T) {
	q := reported("160922", "标普500", 12.5)

	got := FilterByKeywordsAndPremium([]quote.FundQuote{q}, KeywordsUSEU, 10.0)
	require.Len(t, got, 1)
	assert.Equal(t, "160922", got[0].Code)

	got = FilterByKeywordsAndPremium([]quote.FundQuote{q}, KeywordsUSEU, 12.5)
	assert.Empty(t, got)
}

func TestFilterByKeywordsAndPremium(t *testing.T) {
	tests := []struct {
		name      string
		quotes    []quote.FundQuote
		keywords  []string
		threshold float64
		want      []string
	}{
		{"us/eu", sample(), KeywordsUSEU, 5, []string{"160922", "513100"}},
		{"commodity", sample(), KeywordsCommodity, 5, []string{"161226", "160416"}},
		// "金" also hits every "基金" name
		{"commodity matches 基金", sample(), KeywordsCommodity, 4.9, []string{"161226", "160416", "164824"}},
		{"empty input", nil, KeywordsUSEU, 0, []string{}},
		{"empty keywords", sample(), nil, 0, []string{}},
		{"blank keywords", sample(), []string{"", "  "}, 0, []string{}},
		{"metacharacters are literal", []quote.FundQuote{reported("1", "A+B", 9), reported("2", "AAB", 9)}, []string{"A+B"}, 0, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByKeywordsAndPremium(tt.quotes, tt.keywords, tt.threshold)
			codes := make([]string, 0, len(got))
			for _, q := range got {
				codes = append(codes, q.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestFilterByPremiumAndTurnover(t *testing.T) {
	quotes := []quote.FundQuote{
		quote.New("160922", "标普500", 1.85, 1.60, 900_000, ""),  // 15.63
		quote.New("161125", "标普生物", 1.30, 1.25, 100_000, ""), // 4.00, thin
		quote.New("160416", "石油基金", 1.02, 1.00, 500_000, ""), // 2.00, turnover at limit
		quote.New("161226", "白银基金", 1.10, 1.00, 600_000, ""), // 10.00
	}

	got := FilterByPremiumAndTurnover(quotes, 1.5, 500_000)
	assert.Equal(t, []float64{15.63, 10}, premiums(got))
}

func TestSummarize(t *testing.T) {
	s := Summarize(FilterByPremium(sample(), 0), 8.1)
	assert.Equal(t, 6, s.Count)
	assert.Equal(t, 4, s.HighCount)
	assert.Equal(t, 20.4, s.MaxRate)
	assert.InDelta(t, 9.55, s.AvgRate, 0.01)

	assert.Equal(t, Summary{}, Summarize(nil, 5))
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories(Thresholds{Premium: 5, NavPremium: 1.5, MinTurnover: 500_000})
	require.Len(t, cats, 4)

	assert.Equal(t, "📈 【LOF指数】", cats[0].Label())
	assert.Len(t, ForSource(cats, SourceQDII), 2)
	assert.Len(t, ForSource(cats, SourceNav), 1)

	for _, c := range cats {
		assert.NoError(t, c.validate(), c.Key)
	}

	got := cats[1].Apply(sample())
	require.Len(t, got, 2)
	assert.Equal(t, "160922", got[0].Code)
}

func TestLoadCategories(t *testing.T) {
	defaults := DefaultCategories(Thresholds{Premium: 5, NavPremium: 1.5, MinTurnover: 500_000})

	t.Run("empty path gives defaults", func(t *testing.T) {
		cats, err := LoadCategories("", defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults, cats)
	})

	t.Run("override and append", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "categories.toml")
		content := `
[[category]]
key = "lof_index"
title = "LOF指数"
icon = "📈"
source = "lof"
threshold = 8.0

[[category]]
key = "qdii_asia"
title = "QDII亚洲"
source = "qdii"
keywords = ["日经", "印度", "越南"]
threshold = 3.0
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cats, err := LoadCategories(path, defaults)
		require.NoError(t, err)
		require.Len(t, cats, 5)

		assert.Equal(t, 8.0, cats[0].Threshold)
		assert.Equal(t, MatchPremium, cats[0].Match)
		assert.Equal(t, "qdii_asia", cats[4].Key)
		assert.Equal(t, MatchKeywords, cats[4].Match)
		assert.Equal(t, []string{"日经", "印度", "越南"}, cats[4].Keywords)

		// defaults slice untouched
		assert.Equal(t, 5.0, defaults[0].Threshold)
	})

	t.Run("invalid source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "categories.toml")
		require.NoError(t, os.WriteFile(path, []byte("[[category]]\nkey = \"x\"\nsource = \"bond\"\n"), 0o644))

		_, err := LoadCategories(path, defaults)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCategories(filepath.Join(t.TempDir(), "absent.toml"), defaults)
		assert.Error(t, err)
	})

	t.Run("malformed toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "categories.toml")
		require.NoError(t, os.WriteFile(path, []byte("[[category]\nkey="), 0o644))

		_, err := LoadCategories(path, defaults)
		assert.Error(t, err)
	})
}
