// Package opportunity selects and ranks the quotes worth alerting on.
package opportunity

import (
	"regexp"
	"strings"

	"github.com/wonny/fundarb/internal/quote"
)

// FilterByPremium returns the quotes whose premium is strictly above threshold,
// sorted by descending premium. The input is not modified.
func FilterByPremium(quotes []quote.FundQuote, threshold float64) []quote.FundQuote {
	out := make([]quote.FundQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.PremiumRate > threshold {
			out = append(out, q)
		}
	}
	quote.SortByPremiumDesc(out)
	return out
}

// FilterByKeywordsAndPremium is FilterByPremium restricted to quotes whose name
// contains any of keywords. Empty input or an empty keyword list gives an empty result.
func FilterByKeywordsAndPremium(quotes []quote.FundQuote, keywords []string, threshold float64) []quote.FundQuote {
	if len(quotes) == 0 {
		return []quote.FundQuote{}
	}
	pattern := keywordPattern(keywords)
	if pattern == nil {
		return []quote.FundQuote{}
	}

	out := make([]quote.FundQuote, 0)
	for _, q := range quotes {
		if q.PremiumRate > threshold && pattern.MatchString(q.Name) {
			out = append(out, q)
		}
	}
	quote.SortByPremiumDesc(out)
	return out
}

// FilterByPremiumAndTurnover keeps quotes with premium > minPremium and
// turnover > minTurnover, sorted by descending premium.
func FilterByPremiumAndTurnover(quotes []quote.FundQuote, minPremium, minTurnover float64) []quote.FundQuote {
	out := make([]quote.FundQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.PremiumRate > minPremium && q.Turnover > minTurnover {
			out = append(out, q)
		}
	}
	quote.SortByPremiumDesc(out)
	return out
}

// keywordPattern OR-composes the keywords as literals; nil when none is usable
func keywordPattern(keywords []string) *regexp.Regexp {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		parts = append(parts, regexp.QuoteMeta(k))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(parts, "|"))
}
