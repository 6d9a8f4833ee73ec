package store

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AngelCh415/adforecast/internal/models"
)

const measurement = "ad_daily"

// InfluxStore keeps history as one point per day in an InfluxDB bucket.
// Missing counters are not written as fields and come back as NaN.
type InfluxStore struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	bucket string
}

func NewInfluxStore(url, token, org, bucket string) *InfluxStore {
	c := influxdb2.NewClient(url, token)
	return &InfluxStore{
		client: c,
		write:  c.WriteAPIBlocking(org, bucket),
		query:  c.QueryAPI(org),
		bucket: bucket,
	}
}

func (s *InfluxStore) Ping(ctx context.Context) error {
	h, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health: %w", err)
	}
	if h.Status != "pass" {
		return fmt.Errorf("influx status %s", h.Status)
	}
	return nil
}

func (s *InfluxStore) WriteRecords(ctx context.Context, recs []models.RawRecord) error {
	if len(recs) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		points = append(points, influxdb2.NewPoint(measurement, nil, recordFields(r), models.Day(r.Date)))
	}
	if err := s.write.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (s *InfluxStore) Range(ctx context.Context, from, to time.Time) ([]models.RawRecord, error) {
	result, err := s.query.Query(ctx, rangeQuery(s.bucket, from, to))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer result.Close()

	var out []models.RawRecord
	for result.Next() {
		rec := result.Record()
		out = append(out, models.RawRecord{
			Date:        models.Day(rec.Time()),
			Spend:       field(rec.ValueByKey("spend")),
			Impressions: field(rec.ValueByKey("impressions")),
			Clicks:      field(rec.ValueByKey("clicks")),
			Conversions: field(rec.ValueByKey("conversions")),
			Revenue:     field(rec.ValueByKey("revenue")),
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influx result: %w", result.Err())
	}
	return out, nil
}

func (s *InfluxStore) Close() { s.client.Close() }

func recordFields(r models.RawRecord) map[string]interface{} {
	f := make(map[string]interface{}, 5)
	for k, v := range map[string]float64{
		"spend":       r.Spend,
		"impressions": r.Impressions,
		"clicks":      r.Clicks,
		"conversions": r.Conversions,
		"revenue":     r.Revenue,
	} {
		if !math.IsNaN(v) {
			f[k] = v
		}
	}
	return f
}

func rangeQuery(bucket string, from, to time.Time) string {
	start := "0"
	if !from.IsZero() {
		start = models.Day(from).Format(time.RFC3339)
	}
	stop := "now()"
	if !to.IsZero() {
		stop = models.Day(to).AddDate(0, 0, 1).Format(time.RFC3339)
	}
	return fmt.Sprintf(`
		from(bucket: %q)
		  |> range(start: %s, stop: %s)
		  |> filter(fn: (r) => r._measurement == %q)
		  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
		  |> sort(columns: ["_time"])
	`, bucket, start, stop, measurement)
}

func field(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	default:
		return math.NaN()
	}
}
