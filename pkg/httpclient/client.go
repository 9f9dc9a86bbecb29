package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 10 << 20
)

// ErrBodyTooLarge is returned when a response body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero means the default (10),
	// negative disables redirect following.
	MaxRedirects int
	UseCookieJar bool
	// MaxBodyBytes caps response bodies; larger bodies fail with
	// ErrBodyTooLarge. Zero means 10 MiB.
	MaxBodyBytes int64
	// Provide a custom Transport, e.g. for uTLS fingerprinting
	Transport http.RoundTripper
}

// Response is a fully read response whose body has been decoded to UTF-8.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Client wraps http.Client with bounded timeouts, a redirect policy, an
// optional cookie jar and charset-aware body reading.
type Client struct {
	hc           *http.Client
	maxBodyBytes int64
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	hc := &http.Client{Timeout: cfg.Timeout}

	if cfg.MaxRedirects > 0 {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	if cfg.Transport != nil {
		hc.Transport = cfg.Transport
	}

	return &Client{hc: hc, maxBodyBytes: cfg.MaxBodyBytes}, nil
}

// Get issues a GET for targetURL. decorate, if non-nil, may set headers
// before the request is sent. Non-2xx statuses are not treated as errors;
// the caller inspects Response.StatusCode.
func (c *Client) Get(ctx context.Context, targetURL string, decorate func(*http.Request)) (*Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: nil context")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if decorate != nil {
		decorate(req)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

// readBody reads the whole body, up to maxBodyBytes, and returns it as UTF-8.
// A charset from a BOM or the Content-Type header is always honoured.
// Otherwise a body that is valid UTF-8 is kept as is and anything else is
// transcoded from the <meta> charset, or windows-1252 when there is none.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
	}

	enc, name, certain := charset.DetermineEncoding(raw, resp.Header.Get("Content-Type"))
	if name == "utf-8" || (!certain && utf8.Valid(raw)) {
		return raw, nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return decoded, nil
}
