package store

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adforecast/internal/models"
)

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestMemoryStoreReplacesAndSorts(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	require.NoError(t, st.WriteRecords(ctx, []models.RawRecord{
		{Date: day("2025-08-03"), Spend: 30},
		{Date: day("2025-08-01"), Spend: 10},
		{Date: day("2025-08-02").Add(15 * time.Hour), Spend: 20},
	}))
	require.NoError(t, st.WriteRecords(ctx, []models.RawRecord{{Date: day("2025-08-01"), Spend: 11}}))
	assert.Equal(t, 3, st.Len())

	all, err := st.Range(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 11.0, all[0].Spend)
	assert.Equal(t, day("2025-08-02"), all[1].Date)

	some, err := st.Range(ctx, day("2025-08-02"), day("2025-08-02"))
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, 20.0, some[0].Spend)
}

func TestRecordFieldsSkipMissing(t *testing.T) {
	f := recordFields(models.RawRecord{Spend: 1, Impressions: math.NaN(), Clicks: 2, Conversions: 0, Revenue: math.NaN()})
	assert.Equal(t, map[string]interface{}{"spend": 1.0, "clicks": 2.0, "conversions": 0.0}, f)
}

func TestRangeQuery(t *testing.T) {
	q := rangeQuery("ads", day("2025-01-01"), day("2025-01-31"))
	assert.Contains(t, q, `from(bucket: "ads")`)
	assert.Contains(t, q, "start: 2025-01-01T00:00:00Z, stop: 2025-02-01T00:00:00Z")
	assert.Contains(t, q, `r._measurement == "ad_daily"`)

	open := rangeQuery("ads", time.Time{}, time.Time{})
	assert.True(t, strings.Contains(open, "start: 0, stop: now()"))
}

func TestField(t *testing.T) {
	assert.Equal(t, 2.5, field(2.5))
	assert.Equal(t, 3.0, field(int64(3)))
	assert.True(t, math.IsNaN(field(nil)))
	assert.True(t, math.IsNaN(field("x")))
}
