package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

// Envelope is the body of the default-data endpoint.
type Envelope struct {
	Success bool                   `json:"success"`
	Data    *Dataset               `json:"data"`
	Info    map[string]interface{} `json:"info,omitempty"` // version and provenance, not interpreted

}

// Fetcher retrieves seed data from the best available source.
type Fetcher interface {
	Fetch(ctx context.Context) (*Dataset, error)
}

// HTTPFetcher reads the default-data endpoint. The call is read-only.
type HTTPFetcher struct {
	client *rest.Client
	url    string
}

var _ Fetcher = (*HTTPFetcher)(nil) // interface compliance check

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		url:    url,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (*Dataset, error) {
	resp, err := f.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: f.url,
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching seed data")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("fetching seed data: status %d", resp.StatusCode)
	}

	var env Envelope
	if err = json.Unmarshal([]byte(resp.Body), &env); err != nil {
		return nil, errors.Wrap(err, "decoding seed data")
	}
	if !env.Success || env.Data == nil {
		return nil, errors.Errorf("seed data rejected: %v", env.Info)
	}
	return env.Data, nil
}
