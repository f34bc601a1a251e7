package quote

import "time"

// Category is one named bucket of an OpportunitySet
type Category struct {
	Key    string      `json:"key"`
	Title  string      `json:"title"`
	Quotes []FundQuote `json:"quotes"`
}

// OpportunitySet groups the quotes found by one pipeline run, per category,
// each sorted by descending premium. It is rebuilt on every run.
type OpportunitySet struct {
	RunID       string     `json:"run_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Categories  []Category `json:"categories"`
}

// Add appends a category, sorting a copy of quotes by descending premium
func (s *OpportunitySet) Add(key, title string, quotes []FundQuote) {
	sorted := make([]FundQuote, len(quotes))
	copy(sorted, quotes)
	SortByPremiumDesc(sorted)
	s.Categories = append(s.Categories, Category{Key: key, Title: title, Quotes: sorted})
}

// Get returns the category with key, if present
func (s OpportunitySet) Get(key string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Empty reports whether no category holds a quote
func (s OpportunitySet) Empty() bool {
	return s.Total() == 0
}

// Total counts quotes across all categories
func (s OpportunitySet) Total() int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Quotes)
	}
	return n
}
