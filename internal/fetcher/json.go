package fetcher

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DownloadJSON fetches url through f and decodes the body as one JSON value.
func DownloadJSON[T any](ctx context.Context, f Fetcher, url string) (*T, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		return nil, eris.Wrapf(err, "json: decode %s", url)
	}
	return &v, nil
}
