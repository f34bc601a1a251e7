package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/fundarb/pkg/httputil"
)

// LOF boards on the Shanghai and Shenzhen exchanges
const lofBoards = "b:MK0404,b:MK0405,b:MK0406,b:MK0407"

// SpotItem is one raw row of the spot list. Numeric fields arrive as numbers or as "-".
type SpotItem struct {
	Code     string          `json:"f12"`
	Name     string          `json:"f14"`
	Price    json.RawMessage `json:"f2"`
	Turnover json.RawMessage `json:"f6"`
}

// SpotQuote is a normalized spot list row
type SpotQuote struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Turnover float64 `json:"turnover"`
}

type spotResponse struct {
	Data *struct {
		Total int        `json:"total"`
		Diff  []SpotItem `json:"diff"`
	} `json:"data"`
}

// SpotList fetches the exchange-traded LOF spot list (single request, first page)
func (c *Client) SpotList(ctx context.Context) ([]SpotItem, error) {
	params := url.Values{
		"pn":     {"1"},
		"pz":     {"5000"},
		"po":     {"1"},
		"np":     {"1"},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fid":    {"f3"},
		"fs":     {lofBoards},
		"fields": {"f12,f14,f2,f6"},
	}

	fullURL := c.cfg.SpotURL
	if strings.Contains(fullURL, "?") {
		fullURL += "&" + params.Encode()
	} else {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("spot list request: %w", err)
	}
	defer resp.Body.Close()

	var body spotResponse
	if err := httputil.ReadJSON(resp, &body); err != nil {
		return nil, fmt.Errorf("spot list: %w", err)
	}

	// eastmoney answers "data": null when the board is closed or empty
	if body.Data == nil {
		return []SpotItem{}, nil
	}

	c.logger.WithField("count", len(body.Data.Diff)).Debug("Fetched spot list")
	return body.Data.Diff, nil
}

// NormalizeSpot maps raw spot rows to SpotQuote, preserving order.
// Rows without a code are skipped; "-" and unparsable numbers become 0.
func NormalizeSpot(items []SpotItem) []SpotQuote {
	quotes := make([]SpotQuote, 0, len(items))
	for _, item := range items {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			continue
		}
		quotes = append(quotes, SpotQuote{
			Code:     code,
			Name:     strings.TrimSpace(item.Name),
			Price:    number(item.Price),
			Turnover: number(item.Turnover),
		})
	}
	return quotes
}

func number(raw json.RawMessage) float64 {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	if s == "" || s == "-" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}
