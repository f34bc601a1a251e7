package opportunity

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/wonny/fundarb/internal/quote"
)

// Category keys
const (
	KeyLOFIndex      = "lof_index"
	KeyQDIIUSEU      = "qdii_us_eu"
	KeyQDIICommodity = "qdii_commodity"
	KeyLOFNav        = "lof_nav"
)

// Data sources a category draws its quotes from
const (
	SourceLOF  = "lof"  // premium feed, LOF index list
	SourceQDII = "qdii" // premium feed, QDII list
	SourceNav  = "nav"  // exchange spot list joined with NAV
)

// Predicates
const (
	MatchPremium         = "premium"
	MatchKeywords        = "keywords"
	MatchPremiumTurnover = "premium_turnover"
)

var (
	// KeywordsUSEU are US and Europe cross-border equity terms
	KeywordsUSEU = []string{"标普", "纳指", "纳斯达克", "道琼斯", "德国", "法国", "日经", "美国", "欧洲", "海外"}

	// KeywordsCommodity are commodity and resource terms
	KeywordsCommodity = []string{"油", "原油", "石油", "油气", "能源", "金", "银", "黄金", "白银", "铜", "有色", "豆", "糖", "棉", "商品", "资源", "抗通胀"}
)

// Category is one named alerting rule
type Category struct {
	Key         string   `toml:"key" json:"key"`
	Title       string   `toml:"title" json:"title"`
	Icon        string   `toml:"icon" json:"icon"`
	Source      string   `toml:"source" json:"source"`
	Match       string   `toml:"match" json:"match"`
	Keywords    []string `toml:"keywords" json:"keywords,omitempty"`
	Threshold   float64  `toml:"threshold" json:"threshold"`
	MinTurnover float64  `toml:"min_turnover" json:"min_turnover,omitempty"`
}

// Label is the digest heading, e.g. "📈 【LOF指数】"
func (c Category) Label() string {
	if c.Icon == "" {
		return "【" + c.Title + "】"
	}
	return c.Icon + " 【" + c.Title + "】"
}

// Apply runs the category's predicate over quotes
func (c Category) Apply(quotes []quote.FundQuote) []quote.FundQuote {
	switch c.Match {
	case MatchKeywords:
		return FilterByKeywordsAndPremium(quotes, c.Keywords, c.Threshold)
	case MatchPremiumTurnover:
		return FilterByPremiumAndTurnover(quotes, c.Threshold, c.MinTurnover)
	default:
		return FilterByPremium(quotes, c.Threshold)
	}
}

func (c Category) validate() error {
	if c.Key == "" {
		return errors.New("category without key")
	}
	switch c.Source {
	case SourceLOF, SourceQDII, SourceNav:
	default:
		return fmt.Errorf("category %s: unknown source %q", c.Key, c.Source)
	}
	switch c.Match {
	case MatchPremium, MatchPremiumTurnover:
	case MatchKeywords:
		if len(c.Keywords) == 0 {
			return fmt.Errorf("category %s: keywords match without keywords", c.Key)
		}
	default:
		return fmt.Errorf("category %s: unknown match %q", c.Key, c.Match)
	}
	return nil
}

// Thresholds parameterize the built-in categories
type Thresholds struct {
	Premium     float64 // premium feed categories
	NavPremium  float64 // quote-vs-NAV category
	MinTurnover float64
}

// DefaultCategories returns the built-in vocabulary
func DefaultCategories(th Thresholds) []Category {
	return []Category{
		{Key: KeyLOFIndex, Title: "LOF指数", Icon: "📈", Source: SourceLOF, Match: MatchPremium, Threshold: th.Premium},
		{Key: KeyQDIIUSEU, Title: "QDII欧美", Icon: "🌍", Source: SourceQDII, Match: MatchKeywords, Keywords: KeywordsUSEU, Threshold: th.Premium},
		{Key: KeyQDIICommodity, Title: "QDII商品", Icon: "🛢️", Source: SourceQDII, Match: MatchKeywords, Keywords: KeywordsCommodity, Threshold: th.Premium},
		{Key: KeyLOFNav, Title: "LOF净值溢价", Icon: "📊", Source: SourceNav, Match: MatchPremiumTurnover, Threshold: th.NavPremium, MinTurnover: th.MinTurnover},
	}
}

type categoriesFile struct {
	Categories []Category `toml:"category"`
}

// LoadCategories reads [[category]] tables from a TOML file. An empty path
// returns defaults. A file category whose key matches a default replaces it;
// new keys are appended in file order.
func LoadCategories(path string, defaults []Category) ([]Category, error) {
	out := make([]Category, len(defaults))
	copy(out, defaults)
	if path == "" {
		return out, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("categories file: %w", err)
	}

	var file categoriesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML categories: %w", err)
	}

	for _, c := range file.Categories {
		if c.Match == "" {
			c.Match = MatchPremium
			if len(c.Keywords) > 0 {
				c.Match = MatchKeywords
			}
		}
		if err := c.validate(); err != nil {
			return nil, err
		}

		replaced := false
		for i := range out {
			if out[i].Key == c.Key {
				out[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
		}
	}
	return out, nil
}

// ForSource returns the categories that draw from source, in order
func ForSource(categories []Category, source string) []Category {
	var out []Category
	for _, c := range categories {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out
}
