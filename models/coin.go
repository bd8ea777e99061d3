// Package models defines data structures for the scraper.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CoinQuery describes the coin a caller is searching for.
type CoinQuery struct {
	Country      string `json:"country,omitempty" yaml:"country"`
	Year         *int   `json:"year,omitempty" yaml:"year"`
	Denomination string `json:"denomination,omitempty" yaml:"denomination"`
	Name         string `json:"name,omitempty" yaml:"name"`
	FreeText     string `json:"freeText,omitempty" yaml:"freeText"`
}

// YearString returns the year as text, or "" when unset.
func (q CoinQuery) YearString() string {
	if q.Year == nil {
		return ""
	}
	return strconv.Itoa(*q.Year)
}

// IsZero reports whether no searchable field is set.
func (q CoinQuery) IsZero() bool {
	return strings.TrimSpace(q.Country) == "" &&
		q.Year == nil &&
		strings.TrimSpace(q.Denomination) == "" &&
		strings.TrimSpace(q.Name) == "" &&
		strings.TrimSpace(q.FreeText) == ""
}

// Key identifies the query for de-duplication across batch runs.
func (q CoinQuery) Key() string {
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(q.Country),
		q.YearString(),
		strings.TrimSpace(q.Denomination),
		strings.TrimSpace(q.Name),
		strings.TrimSpace(q.FreeText),
	}, "|"))
}

// UnmarshalJSON accepts the year as a number, a numeric string, or null.
func (q *CoinQuery) UnmarshalJSON(data []byte) error {
	type plain CoinQuery
	var raw struct {
		plain
		Year json.RawMessage `json:"year"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = CoinQuery(raw.plain)
	q.Year = nil

	year := bytes.TrimSpace(raw.Year)
	if len(year) == 0 || bytes.Equal(year, []byte("null")) {
		return nil
	}
	if year[0] == '"' {
		var s string
		if err := json.Unmarshal(year, &s); err != nil {
			return fmt.Errorf("coin query year: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "unknown") {
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("coin query year %q: %w", s, err)
		}
		q.Year = &v
		return nil
	}
	var v int
	if err := json.Unmarshal(year, &v); err != nil {
		return fmt.Errorf("coin query year: %w", err)
	}
	q.Year = &v
	return nil
}
