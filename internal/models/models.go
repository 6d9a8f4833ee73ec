package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// RawRecord is one calendar day of an ad account. Counters that could not be
// read as numbers are kept as NaN so later ratios stay missing instead of 0.
type RawRecord struct {
	Date        time.Time
	Spend       float64
	Impressions float64
	Clicks      float64
	Conversions float64
	Revenue     float64
}

type ForecastRecord struct {
	Date       string  `json:"date"`
	CTR        float64 `json:"ctr"`
	CR         float64 `json:"cr"`
	CPC        float64 `json:"cpc"`
	Spend      float64 `json:"spend"`
	CTRLower   float64 `json:"ctr_lower"`
	CTRUpper   float64 `json:"ctr_upper"`
	SpendLower float64 `json:"spend_lower"`
	SpendUpper float64 `json:"spend_upper"`
}

// DailyMetrics is a stored day with its derived ratios, as served by the
// history endpoint.
type DailyMetrics struct {
	Date        string  `json:"date"`
	Spend       float64 `json:"spend"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CTR         float64 `json:"ctr"`
	CR          float64 `json:"cr"`
	CPC         float64 `json:"cpc"`
	ROAS        float64 `json:"roas"`
}

// Num accepts a JSON number, a numeric string or null. Anything that does not
// parse to a finite number becomes NaN.
type Num float64

func (n *Num) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*n = Num(math.NaN())
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*n = Num(math.NaN())
		return nil
	}
	*n = Num(v)
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

type rawRecordJSON struct {
	Date        string `json:"date"`
	Spend       Num    `json:"spend"`
	Impressions Num    `json:"impressions"`
	Clicks      Num    `json:"clicks"`
	Conversions Num    `json:"conversions"`
	Revenue     Num    `json:"revenue"`
}

func (r *RawRecord) UnmarshalJSON(b []byte) error {
	nan := Num(math.NaN())
	// absent keys are missing values, not zeros
	aux := rawRecordJSON{Spend: nan, Impressions: nan, Clicks: nan, Conversions: nan, Revenue: nan}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := ParseDate(aux.Date)
	if err != nil {
		return err
	}
	*r = RawRecord{
		Date:        d,
		Spend:       float64(aux.Spend),
		Impressions: float64(aux.Impressions),
		Clicks:      float64(aux.Clicks),
		Conversions: float64(aux.Conversions),
		Revenue:     float64(aux.Revenue),
	}
	return nil
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawRecordJSON{
		Date:        r.Date.Format(DateLayout),
		Spend:       Num(r.Spend),
		Impressions: Num(r.Impressions),
		Clicks:      Num(r.Clicks),
		Conversions: Num(r.Conversions),
		Revenue:     Num(r.Revenue),
	})
}

// ParseDate reads YYYY-MM-DD, RFC 3339 or "YYYY-MM-DD HH:MM:SS" and returns
// the calendar day at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
