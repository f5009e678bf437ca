package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/burrowscan/burrow/internal/config"
)

// headers copied from the raw response into Response.Headers; everything else
// is dropped to keep classified responses small.
var keptHeaders = []string{"Content-Type", "Location", "Server", "WWW-Authenticate"}

// Requester is the HTTP transport primitive. It owns TLS, proxy, and redirect
// behavior so the rest of the scanner only ever sees url in, Response out.
type Requester struct {
	client    *http.Client
	headers   map[string]string
	userAgent string
}

// NewRequester builds a Requester from the run configuration.
func NewRequester(cfg *config.RunConfig) (*Requester, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout: cfg.Timeout,
		}).DialContext,
		MaxIdleConnsPerHost: cfg.Threads,
		MaxIdleConns:        cfg.Threads * 2,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "burrow/1.0"
	}

	return &Requester{
		client:    client,
		headers:   cfg.Headers,
		userAgent: ua,
	}, nil
}

// Do issues a single request for the given absolute URL and returns the
// parsed response with body metrics computed. Transport failures (timeout,
// reset, DNS) come back as errors; any HTTP status is a success.
func (r *Requester) Do(ctx context.Context, method, rawURL string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", r.userAgent)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body for %s: %w", rawURL, err)
	}

	bodyStr := string(body)
	lineCount := strings.Count(bodyStr, "\n") + 1
	if len(body) == 0 {
		lineCount = 0
	}

	parsed, _ := url.Parse(rawURL)
	path := ""
	if parsed != nil {
		path = parsed.Path
	}

	result := &Response{
		URL:           rawURL,
		Path:          path,
		Method:        method,
		StatusCode:    resp.StatusCode,
		ContentLength: int64(len(body)),
		WordCount:     len(strings.Fields(bodyStr)),
		LineCount:     lineCount,
		Headers:       make(map[string]string, len(keptHeaders)),
		Body:          body,
		Duration:      time.Since(start),
	}

	for _, h := range keptHeaders {
		if v := resp.Header.Get(h); v != "" {
			result.Headers[h] = v
		}
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		result.RedirectURL = resp.Header.Get("Location")
	}

	return result, nil
}
