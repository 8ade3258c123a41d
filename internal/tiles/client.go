package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// UserAgent identifies the fetcher to the imagery API
const UserAgent = "satfetch/1.0"

// Client issues one GET per tile. It holds an optional request-rate ceiling.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOptions configures NewClient
type ClientOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables the limiter
	Burst             int
	Transport         http.RoundTripper // nil uses a proxy-aware default
}

// NewClient creates a new imagery client with system proxy support
func NewClient(opts ClientOptions) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
		}
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// Get downloads the body at tileURL. Failures come back as *FetchError with
// Kind set; Path and Zoom are left for the caller.
func (c *Client) Get(ctx context.Context, tileURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Kind: KindCanceled, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("failed to create request: %w", stripURL(err))}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &FetchError{Kind: KindStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return data, nil
}

// classify maps a transport error onto a Kind
func classify(ctx context.Context, err error) *FetchError {
	err = stripURL(err)

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return &FetchError{Kind: KindCanceled, Err: ctx.Err()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindNetwork, Err: err}
}

// stripURL drops the *url.Error wrapper so the token in the URL is never logged
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
