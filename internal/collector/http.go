package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// HTTPSource is the rate-limited JSON client shared by exchange fetchers.
type HTTPSource struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewHTTPSource creates a client for baseURL allowing perSecond requests.
func NewHTTPSource(baseURL string, perSecond float64) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		baseURL: baseURL,
	}
}

// SetBaseURL points the source at another host (for testing).
func (s *HTTPSource) SetBaseURL(u string) {
	s.baseURL = u
}

// SetRateLimit changes the allowed request rate.
func (s *HTTPSource) SetRateLimit(perSecond float64) {
	s.limiter.SetLimit(rate.Limit(perSecond))
}

// GetJSON waits for the limiter, performs a GET and decodes the body into
// dest. On failure it returns a classified result and false.
func (s *HTTPSource) GetJSON(ctx context.Context, path string, query url.Values, dest any) (FetchResult, bool) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Permanent(fmt.Errorf("waiting for rate limiter: %w", err)), false
	}

	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Permanent(fmt.Errorf("creating request: %w", err)), false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return FromRequestError(fmt.Errorf("fetching %s: %w", path, err)), false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return FromHTTPStatus(resp.StatusCode, string(body)), false
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return Permanent(fmt.Errorf("decoding response: %w", err)), false
	}
	return FetchResult{Status: StatusOK}, true
}
