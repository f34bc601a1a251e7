package eastmoney

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/fundarb/pkg/httputil"
)

// ErrNoNAV is returned when the lookback window holds no published NAV
var ErrNoNAV = errors.New("no nav published in window")

// NAV is one published net asset value
type NAV struct {
	Code  string
	Value float64
	Date  string // YYYY-MM-DD, publication date
}

var (
	contentRe = regexp.MustCompile(`content:"((?:[^"\\]|\\.)*)"`)
	navDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// LatestNAV returns the most recent NAV published for code in the trailing
// lookback window ending at asOf.
func (c *Client) LatestNAV(ctx context.Context, code string, asOf time.Time) (NAV, error) {
	days := c.cfg.LookbackDays
	if days <= 0 {
		days = 7
	}

	params := url.Values{
		"type":  {"lsjz"},
		"code":  {code},
		"page":  {"1"},
		"per":   {"20"},
		"sdate": {asOf.AddDate(0, 0, -days).Format("2006-01-02")},
		"edate": {asOf.Format("2006-01-02")},
	}

	resp, err := c.httpClient.Get(ctx, fmt.Sprintf("%s?%s", c.cfg.NavURL, params.Encode()))
	if err != nil {
		return NAV{}, fmt.Errorf("nav request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return NAV{}, fmt.Errorf("nav request: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NAV{}, fmt.Errorf("failed to read response body: %w", err)
	}

	nav, err := parseNAVResponse(string(body))
	if err != nil {
		return NAV{}, fmt.Errorf("fund %s: %w", code, err)
	}
	nav.Code = code
	return nav, nil
}

// parseNAVResponse extracts the HTML table from `var apidata={ content:"<table>...</table>", ...}`
// and returns the row with the latest date.
func parseNAVResponse(body string) (NAV, error) {
	m := contentRe.FindStringSubmatch(body)
	if m == nil {
		return NAV{}, fmt.Errorf("unexpected nav payload")
	}
	html := strings.ReplaceAll(m[1], `\"`, `"`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return NAV{}, fmt.Errorf("parse nav table: %w", err)
	}

	var latest NAV
	// columns: 净值日期 | 单位净值 | 累计净值 | 日增长率 | ...
	doc.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // "暂无数据" row
		}

		date := strings.TrimSpace(cells.Eq(0).Text())
		if !navDateRe.MatchString(date) {
			return
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(cells.Eq(1).Text()), 64)
		if err != nil || value <= 0 {
			return
		}

		// ISO dates compare lexically
		if date > latest.Date {
			latest = NAV{Value: value, Date: date}
		}
	})

	if latest.Date == "" {
		return NAV{}, ErrNoNAV
	}
	return latest, nil
}
