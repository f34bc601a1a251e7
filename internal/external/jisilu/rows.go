package jisilu

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wonny/fundarb/internal/quote"
)

// RawRow is one untyped provider row: {"id": ..., "cell": {...}}
type RawRow struct {
	ID   string           `json:"id,omitempty"`
	Cell map[string]Field `json:"cell,omitempty"`
}

// Field is an optional, loosely typed cell value exactly as the provider sent it.
// The provider mixes numbers, numeric strings, percent strings and "-".
type Field json.RawMessage

// UnmarshalJSON keeps the raw bytes
func (f *Field) UnmarshalJSON(data []byte) error {
	*f = append((*f)[:0], data...)
	return nil
}

// MarshalJSON writes the raw bytes back, null when absent
func (f Field) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("null"), nil
	}
	return f, nil
}

// Present reports whether the field was sent with a non-null value
func (f Field) Present() bool {
	trimmed := bytes.TrimSpace(f)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// String returns the value as text: strings unquoted, numbers verbatim, "" when absent
func (f Field) String() string {
	if !f.Present() {
		return ""
	}
	var s string
	if err := json.Unmarshal(f, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(f))
}

// Float converts the value to a float64. Numeric strings are accepted and a
// trailing percent sign is stripped. Absent, "-" or unparsable values give 0.0.
func (f Field) Float() float64 {
	s := strings.TrimSuffix(f.String(), "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Normalize maps provider rows to canonical quotes, preserving input order.
// Rows without a cell or without a fund code are skipped; nothing is deduplicated.
// The premium rate is the provider-reported discount_rt.
func Normalize(rows []RawRow) []quote.FundQuote {
	quotes := make([]quote.FundQuote, 0, len(rows))
	for _, row := range rows {
		if len(row.Cell) == 0 {
			continue
		}
		cell := row.Cell

		code := cell["fund_id"].String()
		if code == "" {
			continue
		}

		reference := cell["fund_nav"].Float()
		if reference <= 0 {
			reference = cell["estimate_value"].Float()
		}

		turnover := cell["volume"].Float()
		if turnover <= 0 {
			turnover = cell["amount"].Float()
		}

		quotes = append(quotes, quote.NewReported(
			code,
			cell["fund_nm"].String(),
			cell["price"].Float(),
			reference,
			turnover,
			cell["discount_rt"].Float(),
			cell["apply_status"].String(),
		))
	}
	return quotes
}
