package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
)

var (
	_ adapter.JobDiscovery = (*Static)(nil)
	_ adapter.JobDiscovery = (*HTTPDiscovery)(nil)
)

// Static serves a fixed list of job URLs to every profile.
type Static struct {
	urls []string
}

func NewStatic(urls []string) *Static {
	return &Static{urls: append([]string(nil), urls...)}
}

func (s *Static) Search(_ context.Context, _ *model.Profile, limit int) ([]string, error) {
	return firstN(s.urls, limit), nil
}

// HTTPDiscovery queries a job search service:
//
//	GET {endpoint}?q=<skills>&location=<loc>&remote=<bool>&limit=<n>
//	200 {"jobs": [{"url": "https://...", "title": "..."}]}
type HTTPDiscovery struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPDiscovery(endpoint, apiKey string, timeout time.Duration) *HTTPDiscovery {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPDiscovery{endpoint: endpoint, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type searchResponse struct {
	Jobs []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"jobs"`
}

func (d *HTTPDiscovery) Search(ctx context.Context, p *model.Profile, limit int) ([]string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("discovery endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", strings.Join(p.Skills, " "))
	loc := p.Location
	if len(p.PreferredLocations) > 0 {
		loc = strings.Join(p.PreferredLocations, "|")
	}
	if loc != "" {
		q.Set("location", loc)
	}
	q.Set("remote", strconv.FormatBool(p.RemotePreferred))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("discovery http %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode discovery response: %w", err)
	}
	urls := make([]string, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		if validJobURL(j.URL) {
			urls = append(urls, strings.TrimSpace(j.URL))
		}
	}
	return firstN(urls, limit), nil
}

func validJobURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstN(s []string, n int) []string {
	if n > 0 && len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}
