package httpfetch

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads http and https URLs. It never retries.
type Fetcher struct {
	client *resty.Client
}

func NewFetcher(userAgent string) *Fetcher {
	client := resty.New().SetRetryCount(0)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Fetcher{client: client}
}

// Fetch streams the response body to destPath. Any non-2xx status is an
// error; destPath may hold a partial body afterwards and is left for the
// caller to remove.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, destPath string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(destPath).
		Get(rawURL)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("get %s: unexpected status %s", rawURL, resp.Status())
	}
	return nil
}
