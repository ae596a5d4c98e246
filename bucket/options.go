package bucket

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-bucket-cache/codec"
	"github.com/goliatone/go-bucket-cache/keymaker"
)

// Span expresses a lifetime as named duration components, as an alternative
// to a single time.Duration. The zero Span means no lifetime.
type Span struct {
	Weeks        int
	Days         int
	Hours        int
	Minutes      int
	Seconds      int
	Milliseconds int
	Microseconds int
}

// Duration returns the total duration of the span.
func (s Span) Duration() time.Duration {
	return time.Duration(s.Weeks)*7*24*time.Hour +
		time.Duration(s.Days)*24*time.Hour +
		time.Duration(s.Hours)*time.Hour +
		time.Duration(s.Minutes)*time.Minute +
		time.Duration(s.Seconds)*time.Second +
		time.Duration(s.Milliseconds)*time.Millisecond +
		time.Duration(s.Microseconds)*time.Microsecond
}

func (s Span) isZero() bool {
	return s == Span{}
}

type config struct {
	codec       codec.Codec
	keymaker    keymaker.KeyMaker
	lifetime    time.Duration
	lifetimeSet bool
	span        Span
	spanSet     bool
	logger      zerolog.Logger
	now         func() time.Time
}

// Option customizes bucket construction.
type Option func(*config)

// WithCodec selects the serialization codec. Default: gob with its default
// configuration.
func WithCodec(c codec.Codec) Option {
	return func(cfg *config) { cfg.codec = c }
}

// WithKeyMaker selects the key serialization strategy. Default:
// keymaker.NewDefault().
func WithKeyMaker(km keymaker.KeyMaker) Option {
	return func(cfg *config) { cfg.keymaker = km }
}

// WithLifetime sets the entry lifetime as a single duration. Mutually
// exclusive with WithLifetimeSpan.
func WithLifetime(d time.Duration) Option {
	return func(cfg *config) {
		cfg.lifetime = d
		cfg.lifetimeSet = true
	}
}

// WithLifetimeSpan sets the entry lifetime from named duration components.
// Mutually exclusive with WithLifetime.
func WithLifetimeSpan(s Span) Option {
	return func(cfg *config) {
		cfg.span = s
		cfg.spanSet = true
	}
}

// WithLogger attaches a zerolog logger. Default: a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithClock overrides the time source used for expiration decisions. Meant
// for tests.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) { cfg.now = now }
}

func (c *config) validate() error {
	return validation.Validate(c, validation.By(func(any) error {
		if c.lifetimeSet && c.spanSet {
			return &ConfigError{Field: "lifetime", Message: "lifetime and lifetime span are mutually exclusive"}
		}
		if c.lifetimeSet && c.lifetime < 0 {
			return &ConfigError{Field: "lifetime", Message: "cannot be negative"}
		}
		if c.spanSet && c.span.Duration() < 0 {
			return &ConfigError{Field: "lifetime", Message: "span total cannot be negative"}
		}
		return nil
	}))
}

func (c *config) effectiveLifetime() time.Duration {
	if c.spanSet {
		return c.span.Duration()
	}
	return c.lifetime
}
