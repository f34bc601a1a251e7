package jisilu

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fundarb/pkg/httputil"
)

// ErrNoRows is returned when a response decodes but carries no "rows" field
var ErrNoRows = errors.New("response has no rows field")

// now is replaced in tests
var now = time.Now

type rowsResponse struct {
	Rows *[]RawRow `json:"rows"`
}

// Fetch issues one first-page query against datasetURL and returns its raw rows.
// Transport, status and shape failures are logged and produce an empty result:
// callers treat empty as "no data this cycle".
func (c *Client) Fetch(ctx context.Context, datasetURL, description string) []RawRow {
	log := c.logger.WithFields(map[string]interface{}{
		"dataset": description,
		"url":     datasetURL,
	})

	rows, err := c.fetchRows(ctx, datasetURL)
	if err != nil {
		log.WithError(err).Error("Dataset fetch failed, treating as empty")
		return []RawRow{}
	}

	log.WithField("rows", len(rows)).Info("Dataset fetched")
	return rows
}

func (c *Client) fetchRows(ctx context.Context, datasetURL string) ([]RawRow, error) {
	c.AcquireSession(ctx)

	target, err := cacheBustedURL(datasetURL, now())
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"rp":   {strconv.Itoa(c.pageSize())},
		"page": {"1"},
	}

	resp, err := c.httpClient.PostForm(ctx, target, form)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	var body rowsResponse
	if err := httputil.ReadJSON(resp, &body); err != nil {
		return nil, err
	}

	if body.Rows == nil {
		return nil, ErrNoRows
	}

	return *body.Rows, nil
}

func (c *Client) pageSize() int {
	if c.cfg.PageSize <= 0 {
		return 100
	}
	return c.cfg.PageSize
}

// cacheBustedURL appends the provider's "___jsl=LST___t=<epoch-ms>" marker
func cacheBustedURL(datasetURL string, at time.Time) (string, error) {
	if _, err := url.Parse(datasetURL); err != nil {
		return "", fmt.Errorf("invalid dataset url: %w", err)
	}
	sep := "?"
	if strings.Contains(datasetURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s___jsl=LST___t=%d", datasetURL, sep, at.UnixMilli()), nil
}
