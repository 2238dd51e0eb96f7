package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pathfinder/internal/keyspace"
)

// Classification strategy names.
const (
	// StrategySizeDelta flags 2xx responses whose size differs from the baseline.
	StrategySizeDelta = "size-delta"

	// StrategySignatureAbsence flags 2xx responses whose excerpt lacks the
	// not-found signature.
	StrategySignatureAbsence = "signature-absence"

	// StrategyCombined requires both of the above.
	StrategyCombined = "combined"
)

// Report formats.
const (
	ReportText     = "text"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pathfinder"

	// DefaultAlphabet is the lowercase ASCII alphabet.
	DefaultAlphabet = keyspace.DefaultAlphabet

	// DefaultPathLength is the candidate path length when no start path is given.
	DefaultPathLength = 4

	// DefaultTolerance is the size difference in bytes that still counts as
	// the not-found page.
	DefaultTolerance = 100

	// DefaultBatchSize is the number of processed indexes between progress events.
	DefaultBatchSize = 250

	// DefaultRequestTimeout bounds each probe, including reading the excerpt.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultBackoffDelay is the first pause after a blocked response.
	// It doubles on each consecutive block of the same index.
	DefaultBackoffDelay = 5 * time.Second

	// DefaultErrorBackoff is the first pause after a transport error.
	// It is shorter than the block backoff: most transport errors are transient.
	DefaultErrorBackoff = 1 * time.Second

	// DefaultMaxBackoff caps both backoff sequences.
	DefaultMaxBackoff = 1 * time.Minute

	// DefaultMaxRetries is the number of consecutive transport failures after
	// which an index is recorded as undetermined.
	DefaultMaxRetries = 3

	// DefaultMaxBlockedRetries is the number of consecutive blocked responses
	// after which an index is recorded as undetermined.
	DefaultMaxBlockedRetries = 3

	// DefaultExcerptSize is the number of leading body bytes inspected for
	// signatures and block markers.
	DefaultExcerptSize = 800

	// DefaultMaxBodySize limits how many bytes are counted when a response has
	// no Content-Length.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultAcceptEncoding asks for compressed bodies. Sizes are compared on
	// the wire, so compression keeps probes cheap.
	DefaultAcceptEncoding = "br, gzip, deflate"

	// DefaultUserAgent identifies pathfinder in HTTP requests.
	DefaultUserAgent = "pathfinder/1.0 (+https://github.com/nao1215/pathfinder)"

	// DefaultMaxConnsPerHost sizes the shared connection pool.
	DefaultMaxConnsPerHost = 30

	// DefaultCalibrationSamples is the number of not-found requests that must
	// agree before a baseline is accepted.
	DefaultCalibrationSamples = 2

	// DefaultReportInterval is how often the progress line is rendered.
	DefaultReportInterval = 2 * time.Second

	// DefaultFindingsFileName is the append-only findings log name inside the
	// XDG data directory.
	DefaultFindingsFileName = "found_pages.txt"
)

// DefaultBlockMarkers are excerpt substrings that indicate a challenge or
// verification page rather than the requested resource.
var DefaultBlockMarkers = []string{
	"cf-browser-verification",
	"cf-challenge",
	"challenge-platform",
	"Just a moment...",
	"Checking your browser",
	"g-recaptcha",
	"h-captcha",
}

// Config holds all configuration options for one scan.
// It is populated from CLI flags and the optional configuration file and is
// passed explicitly to the components that need it.
type Config struct {
	// Origin is the base URL every candidate path is appended to.
	Origin string

	// PathLength is the fixed number of symbols in every candidate path.
	PathLength int

	// Alphabet is the ordered symbol set.
	Alphabet string

	// StartPath is an optional resume point expressed as a path.
	// When set it takes precedence over StartIndex.
	StartPath string

	// StartIndex is the first index to probe.
	StartIndex int64

	// Workers is the number of concurrent workers.
	Workers int

	// Tolerance is the size difference in bytes tolerated by size-delta.
	Tolerance int64

	// BatchSize is the number of processed indexes between progress events.
	BatchSize int

	// RequestTimeout bounds each probe.
	RequestTimeout time.Duration

	// BackoffDelay is the first pause after a blocked response.
	BackoffDelay time.Duration

	// ErrorBackoff is the first pause after a transport error.
	ErrorBackoff time.Duration

	// MaxBackoff caps both backoff sequences.
	MaxBackoff time.Duration

	// MaxRetries is the transport failure ceiling per index.
	MaxRetries int

	// MaxBlockedRetries is the blocked response ceiling per index.
	MaxBlockedRetries int

	// Strategy is the classification strategy name.
	Strategy string

	// Method is GET or HEAD.
	Method string

	// Signature is the substring identifying the not-found page.
	// When empty, the not-found page title is used.
	Signature string

	// BlockMarkers are excerpt substrings identifying challenge pages.
	BlockMarkers []string

	// ExcerptSize is the number of leading body bytes read per probe.
	ExcerptSize int

	// MaxBodySize caps how many body bytes are counted without Content-Length.
	MaxBodySize int64

	// AcceptEncoding is sent with every probe; empty sends none.
	AcceptEncoding string

	// UserAgent is the User-Agent header.
	UserAgent string

	// Cookie is an optional Cookie header sent with every probe.
	Cookie string

	// Headers are extra headers sent with every probe.
	Headers map[string]string

	// ProxyAddress is an optional SOCKS5 proxy in host:port format.
	ProxyAddress string

	// MaxConnsPerHost sizes the shared connection pool.
	MaxConnsPerHost int

	// InsecureTLS skips certificate verification for self-signed targets.
	InsecureTLS bool

	// CalibrationSamples is the number of agreeing calibration requests.
	CalibrationSamples int

	// Recalibrate ignores any cached baseline.
	Recalibrate bool

	// ReportInterval is how often progress is rendered.
	ReportInterval time.Duration

	// FindingsFile is the append-only findings log path.
	FindingsFile string

	// DBDir is the directory of the SQLite database.
	DBDir string

	// SaveToDB enables the SQLite store (baseline cache, scan history).
	SaveToDB bool

	// ReportFormat is text, json or markdown.
	ReportFormat string

	// ReportFile is the output path of the final report; empty means stdout.
	ReportFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	ConfigFilePath string

	// Targets holds the per-origin profiles loaded from the configuration file.
	Targets *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		PathLength:         DefaultPathLength,
		Alphabet:           DefaultAlphabet,
		Workers:            runtime.NumCPU(),
		Tolerance:          DefaultTolerance,
		BatchSize:          DefaultBatchSize,
		RequestTimeout:     DefaultRequestTimeout,
		BackoffDelay:       DefaultBackoffDelay,
		ErrorBackoff:       DefaultErrorBackoff,
		MaxBackoff:         DefaultMaxBackoff,
		MaxRetries:         DefaultMaxRetries,
		MaxBlockedRetries:  DefaultMaxBlockedRetries,
		Strategy:           StrategySizeDelta,
		Method:             "GET",
		BlockMarkers:       slices.Clone(DefaultBlockMarkers),
		ExcerptSize:        DefaultExcerptSize,
		MaxBodySize:        DefaultMaxBodySize,
		AcceptEncoding:     DefaultAcceptEncoding,
		UserAgent:          DefaultUserAgent,
		MaxConnsPerHost:    DefaultMaxConnsPerHost,
		CalibrationSamples: DefaultCalibrationSamples,
		ReportInterval:     DefaultReportInterval,
		ReportFormat:       ReportText,
	}
}

// XDGDataDir returns the XDG data directory for pathfinder.
// On Linux: ~/.local/share/pathfinder
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the XDG state directory for pathfinder.
// The run lock of an active scan lives here.
// On Linux: ~/.local/state/pathfinder
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultFindingsFile returns the default findings log path.
func DefaultFindingsFile() string {
	return filepath.Join(XDGDataDir(), DefaultFindingsFileName)
}

// NormalizeOrigin validates origin and strips a trailing slash.
// A base path is kept so that candidates can live below a prefix.
func NormalizeOrigin(origin string) (string, error) {
	if origin == "" {
		return "", ErrNoOrigin
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidOrigin
	}
	if u.Host == "" || u.RawQuery != "" || u.Fragment != "" {
		return "", ErrInvalidOrigin
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// NeedsBody reports whether the configured strategy inspects the response body.
func (c *Config) NeedsBody() bool {
	return c.Strategy == StrategySignatureAbsence || c.Strategy == StrategyCombined
}

// Codec builds the path codec for the configured alphabet and length.
func (c *Config) Codec() (*keyspace.Codec, error) {
	codec, err := keyspace.NewCodec(c.Alphabet, c.PathLength)
	if err != nil {
		switch {
		case errors.Is(err, keyspace.ErrAlphabetTooSmall), errors.Is(err, keyspace.ErrDuplicateSymbol):
			return nil, fmt.Errorf("%w: %v", ErrInvalidAlphabet, err)
		case errors.Is(err, keyspace.ErrInvalidLength):
			return nil, ErrInvalidPathLength
		default:
			return nil, err
		}
	}
	return codec, nil
}

// ResolveStartIndex returns the first index to probe, derived from
// StartPath when it is set and from StartIndex otherwise.
func (c *Config) ResolveStartIndex(codec *keyspace.Codec) (int64, error) {
	if c.StartPath != "" {
		idx, err := codec.Encode(c.StartPath)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidStartPath, err)
		}
		return idx, nil
	}
	if c.StartIndex < 0 || c.StartIndex >= codec.Total() {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidStartIndex, c.StartIndex, codec.Total())
	}
	return c.StartIndex, nil
}

// ApplyTarget merges a target profile into the configuration.
// explicit reports whether an option was set on the command line; those
// values win over the profile. A nil explicit treats every option as unset.
func (c *Config) ApplyTarget(t TargetConfig, explicit func(option string) bool) {
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if t.Cookie != "" && !explicit("cookie") {
		c.Cookie = t.Cookie
	}
	if len(t.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(t.Headers))
		}
		for k, v := range t.Headers {
			if _, set := c.Headers[k]; !set {
				c.Headers[k] = v
			}
		}
	}
	if t.Signature != "" && !explicit("signature") {
		c.Signature = t.Signature
	}
	if len(t.BlockMarkers) > 0 {
		c.BlockMarkers = append(c.BlockMarkers, t.BlockMarkers...)
	}
	if t.Tolerance != nil && !explicit("tolerance") {
		c.Tolerance = *t.Tolerance
	}
	if t.Strategy != "" && !explicit("strategy") {
		c.Strategy = t.Strategy
	}
}

// Validate checks if the configuration is valid and returns the first
// problem found. It is called once after flag parsing, before calibration.
func (c *Config) Validate() error {
	if _, err := NormalizeOrigin(c.Origin); err != nil {
		return err
	}

	if c.PathLength < 1 {
		return ErrInvalidPathLength
	}

	codec, err := c.Codec()
	if err != nil {
		return err
	}

	if _, err := c.ResolveStartIndex(codec); err != nil {
		return err
	}

	if c.Workers < 1 {
		return ErrInvalidWorkers
	}

	if c.Tolerance < 0 {
		return ErrInvalidTolerance
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BackoffDelay < 0 || c.ErrorBackoff < 0 || c.MaxBackoff < c.BackoffDelay || c.MaxBackoff < c.ErrorBackoff {
		return ErrInvalidBackoff
	}

	if c.MaxRetries < 1 || c.MaxBlockedRetries < 1 {
		return ErrInvalidRetries
	}

	switch c.Strategy {
	case StrategySizeDelta, StrategySignatureAbsence, StrategyCombined:
	default:
		return ErrInvalidStrategy
	}

	switch c.Method {
	case "GET":
	case "HEAD":
		if c.NeedsBody() {
			return ErrHeadWithSignature
		}
	default:
		return ErrInvalidMethod
	}

	if c.ExcerptSize <= 0 {
		return ErrInvalidExcerptSize
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.CalibrationSamples < 1 {
		return ErrInvalidSamples
	}

	if c.MaxConnsPerHost < 1 {
		return ErrInvalidConnections
	}

	switch c.ReportFormat {
	case ReportText, ReportJSON, ReportMarkdown:
	default:
		return ErrInvalidReportFormat
	}

	return nil
}
