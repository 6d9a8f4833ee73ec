package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumCoercion(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		nan  bool
	}{
		{in: `12.5`, want: 12.5},
		{in: `"12.5"`, want: 12.5},
		{in: `" 7 "`, want: 7},
		{in: `"1e2"`, want: 100},
		{in: `"abc"`, nan: true},
		{in: `true`, nan: true},
		{in: `null`, nan: true},
		{in: `""`, nan: true},
		{in: `"Inf"`, nan: true},
	}
	for _, c := range cases {
		var n Num
		require.NoError(t, json.Unmarshal([]byte(c.in), &n), c.in)
		if c.nan {
			assert.True(t, math.IsNaN(float64(n)), "%s -> %v", c.in, n)
			continue
		}
		assert.Equal(t, c.want, float64(n), c.in)
	}
}

func TestRawRecordDecode(t *testing.T) {
	body := `[
		{"date":"2023-01-01","spend":"12.5","impressions":"abc","clicks":3,"revenue":null},
		{"date":"2023-01-02T10:00:00Z","spend":" 7 ","impressions":true,"clicks":"1e2","conversions":2,"revenue":40}
	]`
	var recs []RawRecord
	require.NoError(t, json.Unmarshal([]byte(body), &recs))
	require.Len(t, recs, 2)

	a := recs[0]
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), a.Date)
	assert.Equal(t, 12.5, a.Spend)
	assert.True(t, math.IsNaN(a.Impressions))
	assert.Equal(t, 3.0, a.Clicks)
	assert.True(t, math.IsNaN(a.Conversions), "absent key is missing, not zero")
	assert.True(t, math.IsNaN(a.Revenue))

	b := recs[1]
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), b.Date)
	assert.Equal(t, 7.0, b.Spend)
	assert.True(t, math.IsNaN(b.Impressions))
	assert.Equal(t, 100.0, b.Clicks)
	assert.Equal(t, 2.0, b.Conversions)
	assert.Equal(t, 40.0, b.Revenue)
}

func TestRawRecordBadDate(t *testing.T) {
	for _, body := range []string{
		`{"date":"01/02/2023","spend":1}`,
		`{"spend":1}`,
	} {
		var r RawRecord
		assert.Error(t, json.Unmarshal([]byte(body), &r), body)
	}
}

func TestRawRecordEncodesMissingAsNull(t *testing.T) {
	r := RawRecord{Date: time.Date(2023, 5, 6, 0, 0, 0, 0, time.UTC), Spend: 10, Impressions: math.NaN()}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2023-05-06","spend":10,"impressions":null,"clicks":0,"conversions":0,"revenue":0}`, string(b))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-02-29", " 2024-02-29 ", "2024-02-29T23:10:00Z", "2024-02-29 08:00:00", "2024-02-29T08:00:00"} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseDate("2024-13-01")
	assert.Error(t, err)
}
