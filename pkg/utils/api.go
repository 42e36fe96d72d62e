package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Fetcher retrieves the body behind a URL.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// API is a small JSON client rooted at baseURL.
type API struct {
	fetcher Fetcher
	baseURL string
}

func NewAPI(fetcher Fetcher, baseURL string) *API {
	return &API{fetcher: fetcher, baseURL: baseURL}
}

func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if params != nil {
		path += "?" + params.Encode()
	}
	header := http.Header{}
	header.Set("Accept", "application/json")
	body, err := a.fetcher.Get(ctx, fmt.Sprintf("%s%s", a.baseURL, path), header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
