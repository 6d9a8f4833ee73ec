// Package features turns a daily ad-account series into the per-day feature
// table consumed by the regressors.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/adforecast/internal/models"
)

var (
	ErrEmpty         = errors.New("historical data must not be empty")
	ErrUnknownColumn = errors.New("unknown feature column")
)

// Targets are the modeled metrics, in training order.
var Targets = []string{"ctr", "cr", "cpc", "spend"}

// RawCounters are input counters that are never used as model input.
var RawCounters = []string{"revenue", "clicks", "impressions", "conversions"}

var Windows = []int{7, 14}

// Row is one derived day. Missing values are NaN.
type Row struct {
	Date time.Time

	Spend       float64
	Impressions float64
	Clicks      float64
	Conversions float64
	Revenue     float64

	CTR  float64
	CR   float64
	CPC  float64
	ROAS float64

	DayOfWeek  float64
	DayOfMonth float64
	Month      float64

	CTRMA7    float64
	SpendMA7  float64
	CRMA7     float64
	CTRMA14   float64
	SpendMA14 float64
	CRMA14    float64

	SpendPctChange       float64
	ImpressionsPctChange float64
}

type Table []Row

type column struct {
	name string
	ref  func(*Row) *float64
}

// columns lists every numeric column of a Row in table order.
var columns = []column{
	{"spend", func(r *Row) *float64 { return &r.Spend }},
	{"impressions", func(r *Row) *float64 { return &r.Impressions }},
	{"clicks", func(r *Row) *float64 { return &r.Clicks }},
	{"conversions", func(r *Row) *float64 { return &r.Conversions }},
	{"revenue", func(r *Row) *float64 { return &r.Revenue }},
	{"ctr", func(r *Row) *float64 { return &r.CTR }},
	{"cr", func(r *Row) *float64 { return &r.CR }},
	{"cpc", func(r *Row) *float64 { return &r.CPC }},
	{"roas", func(r *Row) *float64 { return &r.ROAS }},
	{"day_of_week", func(r *Row) *float64 { return &r.DayOfWeek }},
	{"day_of_month", func(r *Row) *float64 { return &r.DayOfMonth }},
	{"month", func(r *Row) *float64 { return &r.Month }},
	{"ctr_ma_7", func(r *Row) *float64 { return &r.CTRMA7 }},
	{"spend_ma_7", func(r *Row) *float64 { return &r.SpendMA7 }},
	{"cr_ma_7", func(r *Row) *float64 { return &r.CRMA7 }},
	{"ctr_ma_14", func(r *Row) *float64 { return &r.CTRMA14 }},
	{"spend_ma_14", func(r *Row) *float64 { return &r.SpendMA14 }},
	{"cr_ma_14", func(r *Row) *float64 { return &r.CRMA14 }},
	{"spend_pct_change", func(r *Row) *float64 { return &r.SpendPctChange }},
	{"impressions_pct_change", func(r *Row) *float64 { return &r.ImpressionsPctChange }},
}

var byName = func() map[string]column {
	m := make(map[string]column, len(columns))
	for _, c := range columns {
		m[c.name] = c
	}
	return m
}()

// Columns returns all numeric column names in table order.
func Columns() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

// FeatureColumns returns the model input columns: everything except the
// targets and the raw counters.
func FeatureColumns() []string {
	skip := make(map[string]struct{}, len(Targets)+len(RawCounters))
	for _, n := range Targets {
		skip[n] = struct{}{}
	}
	for _, n := range RawCounters {
		skip[n] = struct{}{}
	}
	var out []string
	for _, name := range Columns() {
		if _, ok := skip[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func (r *Row) Get(name string) (float64, bool) {
	c, ok := byName[name]
	if !ok {
		return 0, false
	}
	return *c.ref(r), true
}

func (r *Row) Set(name string, v float64) bool {
	c, ok := byName[name]
	if !ok {
		return false
	}
	*c.ref(r) = v
	return true
}

// Vector selects cols from the row in the given order.
func (r *Row) Vector(cols []string) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, name := range cols {
		v, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		out[i] = v
	}
	return out, nil
}

// Complete reports whether none of cols is missing.
func (r *Row) Complete(cols []string) bool {
	for _, name := range cols {
		v, ok := r.Get(name)
		if !ok || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Weekday maps Monday to 0 and Sunday to 6.
func Weekday(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }

// SetCalendar overwrites the date and calendar columns of r.
func SetCalendar(r *Row, t time.Time) {
	r.Date = t
	r.DayOfWeek = float64(Weekday(t))
	r.DayOfMonth = float64(t.Day())
	r.Month = float64(t.Month())
}

// Derive builds the feature table for records. The result has one row per
// record, sorted by date (stable), and keeps rows with missing values.
func Derive(records []models.RawRecord) (Table, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	sorted := make([]models.RawRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	t := make(Table, len(sorted))
	for i, rec := range sorted {
		r := &t[i]
		r.Spend = rec.Spend
		r.Impressions = rec.Impressions
		r.Clicks = rec.Clicks
		r.Conversions = rec.Conversions
		r.Revenue = rec.Revenue

		r.CTR = guardedRatio(rec.Clicks, rec.Impressions)
		r.CR = guardedRatio(rec.Conversions, rec.Clicks)
		r.CPC = guardedRatio(rec.Spend, rec.Clicks)
		r.ROAS = guardedRatio(rec.Revenue, rec.Spend)

		SetCalendar(r, rec.Date)
	}

	ctr := t.series(func(r *Row) float64 { return r.CTR })
	spend := t.series(func(r *Row) float64 { return r.Spend })
	cr := t.series(func(r *Row) float64 { return r.CR })
	for _, w := range Windows {
		ctrMA := rollingMean(ctr, w)
		spendMA := rollingMean(spend, w)
		crMA := rollingMean(cr, w)
		for i := range t {
			t[i].Set(fmt.Sprintf("ctr_ma_%d", w), ctrMA[i])
			t[i].Set(fmt.Sprintf("spend_ma_%d", w), spendMA[i])
			t[i].Set(fmt.Sprintf("cr_ma_%d", w), crMA[i])
		}
	}

	impressions := t.series(func(r *Row) float64 { return r.Impressions })
	spendPct := pctChange(spend)
	imprPct := pctChange(impressions)
	for i := range t {
		t[i].SpendPctChange = spendPct[i]
		t[i].ImpressionsPctChange = imprPct[i]
	}
	return t, nil
}

func (t Table) series(f func(*Row) float64) []float64 {
	out := make([]float64, len(t))
	for i := range t {
		out[i] = f(&t[i])
	}
	return out
}

// guardedRatio is num/den, 0 when den is 0, NaN when either side is missing.
func guardedRatio(num, den float64) float64 {
	if math.IsNaN(num) || math.IsNaN(den) {
		return math.NaN()
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// rollingMean averages the non-missing values in each trailing window of
// size w; a window with no values yields NaN.
func rollingMean(xs []float64, w int) []float64 {
	out := make([]float64, len(xs))
	buf := make([]float64, 0, w)
	for i := range xs {
		buf = buf[:0]
		for j := max(0, i-w+1); j <= i; j++ {
			if !math.IsNaN(xs[j]) {
				buf = append(buf, xs[j])
			}
		}
		if len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(buf, nil)
	}
	return out
}

// pctChange is the relative change against the previous row. It is 0 when
// there is no usable previous value (first row, missing or zero prior). A
// missing prior is not forward-filled and a zero prior never yields ±Inf.
func pctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		switch {
		case math.IsNaN(xs[i]):
			out[i] = math.NaN()
		case i == 0 || math.IsNaN(xs[i-1]) || xs[i-1] == 0:
			out[i] = 0
		default:
			out[i] = xs[i]/xs[i-1] - 1
		}
	}
	return out
}
