package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result is what a single probe observed.
type Result struct {
	// Path is the probed path, without the leading slash.
	Path string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Size is the body size in bytes as sent on the wire.
	Size int64

	// SizeKnown is false when the size could not be determined, which happens
	// for HEAD responses without Content-Length.
	SizeKnown bool

	// ContentEncoding is the Content-Encoding response header.
	ContentEncoding string

	// Excerpt holds the leading bytes of the body (GET only).
	Excerpt []byte

	// Elapsed is the time from sending the request to closing the body.
	Elapsed time.Duration
}

// Client probes paths below one origin over a shared connection pool.
// It is safe for concurrent use.
type Client struct {
	origin      string
	method      string
	userAgent   string
	encoding    string
	timeout     time.Duration
	excerptSize int
	maxBodySize int64
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	method          string
	userAgent       string
	acceptEncoding  string
	timeout         time.Duration
	excerptSize     int
	maxBodySize     int64
	maxConnsPerHost int
	proxyAddress    string
	cookie          string
	headers         map[string]string
	insecureTLS     bool
	transport       http.RoundTripper
	logger          *slog.Logger
}

// WithMethod sets the probe method, GET (default) or HEAD.
func WithMethod(method string) Option {
	return func(o *clientOptions) {
		o.method = strings.ToUpper(method)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		o.userAgent = ua
	}
}

// WithAcceptEncoding sets the Accept-Encoding header. An empty value sends none.
func WithAcceptEncoding(enc string) Option {
	return func(o *clientOptions) {
		o.acceptEncoding = enc
	}
}

// WithTimeout bounds each probe, including reading the excerpt.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithExcerptSize sets how many leading body bytes are captured.
func WithExcerptSize(n int) Option {
	return func(o *clientOptions) {
		o.excerptSize = n
	}
}

// WithMaxBodySize caps how many body bytes are counted when the response
// has no Content-Length. Zero disables counting.
func WithMaxBodySize(n int64) Option {
	return func(o *clientOptions) {
		o.maxBodySize = n
	}
}

// WithMaxConnsPerHost sizes the connection pool.
func WithMaxConnsPerHost(n int) Option {
	return func(o *clientOptions) {
		o.maxConnsPerHost = n
	}
}

// WithProxy routes every connection through a SOCKS5 proxy.
func WithProxy(address string) Option {
	return func(o *clientOptions) {
		o.proxyAddress = address
	}
}

// WithCookie sends cookie on every probe.
func WithCookie(cookie string) Option {
	return func(o *clientOptions) {
		o.cookie = cookie
	}
}

// WithHeaders sends the given headers on every probe.
func WithHeaders(headers map[string]string) Option {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithInsecureTLS skips certificate verification.
func WithInsecureTLS(insecure bool) Option {
	return func(o *clientOptions) {
		o.insecureTLS = insecure
	}
}

// WithTransport replaces the base transport. The proxy, pool and TLS options
// are ignored when it is set.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// Default client settings.
const (
	defaultTimeout         = 10 * time.Second
	defaultExcerptSize     = 800
	defaultMaxConnsPerHost = 30
)

// NewClient creates a client for origin. The origin must be an absolute
// http or https URL; a trailing slash is ignored.
func NewClient(origin string, opts ...Option) (*Client, error) {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}

	o := &clientOptions{
		method:          http.MethodGet,
		timeout:         defaultTimeout,
		excerptSize:     defaultExcerptSize,
		maxConnsPerHost: defaultMaxConnsPerHost,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.method != http.MethodGet && o.method != http.MethodHead {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, o.method)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	base := o.transport
	if base == nil {
		base, err = newTransport(o)
		if err != nil {
			return nil, err
		}
	}
	if o.cookie != "" || len(o.headers) > 0 {
		base = &headerInjectingTransport{base: base, cookie: o.cookie, headers: o.headers}
	}

	return &Client{
		origin:      strings.TrimRight(u.String(), "/"),
		method:      o.method,
		userAgent:   o.userAgent,
		encoding:    o.acceptEncoding,
		timeout:     o.timeout,
		excerptSize: o.excerptSize,
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
		httpClient: &http.Client{
			Transport: base,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func newTransport(o *clientOptions) (*http.Transport, error) {
	t := &http.Transport{
		Proxy:               nil,
		MaxConnsPerHost:     o.maxConnsPerHost,
		MaxIdleConns:        o.maxConnsPerHost,
		MaxIdleConnsPerHost: o.maxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: o.timeout,
		// Sizes are compared as sent on the wire.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
	if o.insecureTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opted in with --insecure
	}
	if o.proxyAddress != "" {
		dial, err := socksDialer(o.proxyAddress)
		if err != nil {
			return nil, err
		}
		t.DialContext = dial
	}
	return t, nil
}

// Origin returns the normalized origin.
func (c *Client) Origin() string {
	return c.origin
}

// Method returns the probe method.
func (c *Client) Method() string {
	return c.method
}

// AcceptEncoding returns the Accept-Encoding header sent with every probe.
func (c *Client) AcceptEncoding() string {
	return c.encoding
}

// URL returns the absolute URL probed for path.
func (c *Client) URL(path string) string {
	return c.origin + "/" + strings.TrimPrefix(path, "/")
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Probe requests path and reports the response. Transport failures are
// returned as *TransportError; if ctx itself is cancelled the context error
// is returned unwrapped.
func (c *Client) Probe(ctx context.Context, path string) (*Result, error) {
	path = strings.TrimPrefix(path, "/")

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, c.method, c.URL(path), nil)
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.encoding != "" {
		req.Header.Set("Accept-Encoding", c.encoding)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failure(ctx, path, err)
	}
	defer resp.Body.Close()

	res := &Result{
		Path:            path,
		StatusCode:      resp.StatusCode,
		ContentEncoding: resp.Header.Get("Content-Encoding"),
	}
	if resp.ContentLength >= 0 {
		res.Size = resp.ContentLength
		res.SizeKnown = true
	}

	if c.method == http.MethodGet {
		if err := c.readBody(resp.Body, res); err != nil {
			return nil, c.failure(ctx, path, err)
		}
	}
	res.Elapsed = time.Since(start)

	c.logger.Debug("probe",
		"path", path,
		"status", res.StatusCode,
		"size", res.Size,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// readBody captures the excerpt and, without Content-Length, counts the
// body up to maxBodySize. A longer body leaves the size unknown. The
// remainder is left unread.
func (c *Client) readBody(body io.Reader, res *Result) error {
	if c.excerptSize > 0 {
		buf := make([]byte, c.excerptSize)
		n, err := io.ReadFull(body, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		res.Excerpt = buf[:n]
		if n < c.excerptSize && !res.SizeKnown {
			res.Size = int64(n)
			res.SizeKnown = true
			return nil
		}
	}

	if res.SizeKnown || c.maxBodySize <= 0 {
		return nil
	}

	remaining := c.maxBodySize - int64(len(res.Excerpt))
	if remaining < 0 {
		remaining = 0
	}
	// One byte past the limit tells a body of exactly maxBodySize from a longer one.
	n, err := io.Copy(io.Discard, io.LimitReader(body, remaining+1))
	if err != nil {
		return err
	}
	if n > remaining {
		c.logger.Debug("body exceeds max body size, size unknown",
			"path", res.Path, "max_body_size", c.maxBodySize)
		return nil
	}
	res.Size = int64(len(res.Excerpt)) + n
	res.SizeKnown = true
	return nil
}

func (c *Client) failure(ctx context.Context, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &TransportError{Path: path, Err: err}
}
