// Package client implements the two user-facing flows over the HTTP API:
// composing a new tip (Composer) and claiming one (ClaimController).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lightsats/internal/domain"
	"lightsats/internal/infra"
	"lightsats/internal/service"
)

// API is a thin client over the backend endpoints. Non-2xx responses are
// surfaced with the raw HTTP status text, which callers show verbatim.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI creates an API client for the given base URL.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetToken attaches a session token to subsequent requests.
func (a *API) SetToken(token string) {
	a.token = token
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewFatalNetworkError(method+" "+path, fmt.Errorf("%s", resp.Status))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// FetchRates fetches the current exchange rate table.
func (a *API) FetchRates(ctx context.Context) (infra.RateTable, error) {
	var table infra.RateTable
	if err := a.do(ctx, http.MethodGet, "/api/exchange/rates", nil, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// FetchPublicTip fetches a tip's public projection.
func (a *API) FetchPublicTip(ctx context.Context, tipID string) (*domain.PublicTip, error) {
	var public domain.PublicTip
	if err := a.do(ctx, http.MethodGet, "/api/tippee/tips/"+tipID, nil, &public); err != nil {
		return nil, err
	}
	return &public, nil
}

// CreateTip submits a creation request and returns the created tip.
func (a *API) CreateTip(ctx context.Context, req service.CreateTipRequest) (*domain.Tip, error) {
	var tip domain.Tip
	if err := a.do(ctx, http.MethodPost, "/api/tipper/tips", req, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}

// ClaimTip claims a tip and returns the refreshed projection.
func (a *API) ClaimTip(ctx context.Context, tipID string) (*domain.PublicTip, error) {
	var public domain.PublicTip
	if err := a.do(ctx, http.MethodPost, "/api/tippee/tips/"+tipID+"/claim", nil, &public); err != nil {
		return nil, err
	}
	return &public, nil
}
