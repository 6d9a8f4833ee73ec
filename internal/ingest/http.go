package ingest

import (
	"context"
	"errors"

	"github.com/AngelCh415/adforecast/internal/utils"
)

// GetJSONWithRetry retries transport errors and 5xx answers. A 4xx answer is
// returned at once.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, url string, dst any, b utils.Backoff) error {
	var final error
	err := b.Do(ctx, func(int) error {
		err := getJSON(ctx, c, url, dst)
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			final = err
			return nil
		}
		return err
	})
	if final != nil {
		return final
	}
	return err
}
