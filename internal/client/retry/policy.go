// Package retry decides whether and when a failed save is attempted again.
package retry

import (
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/iudanet/fieldsync/internal/syncerr"
)

// Config holds the backoff parameters.
type Config struct {
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	MaxAttempts   int           `yaml:"max_attempts"`
	JitterPercent uint64        `yaml:"jitter_percent"`
}

// DefaultConfig returns the default backoff parameters.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// Validate checks that the configuration describes a bounded backoff.
func (c Config) Validate() error {
	if c.BaseDelay <= 0 {
		return errors.New("retry base delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("retry max delay %s is less than base delay %s", c.MaxDelay, c.BaseDelay)
	}
	if c.MaxAttempts < 1 {
		return errors.New("retry max attempts must be at least 1")
	}
	if c.JitterPercent > 100 {
		return errors.New("retry jitter percent must not exceed 100")
	}
	return nil
}

// Decision is the outcome of Decide: either retry after a delay or give up.
type Decision struct {
	After time.Duration
	Retry bool
}

// GiveUp is the decision to stop retrying.
var GiveUp = Decision{}

// Policy computes bounded exponential backoff. It keeps no per-session state:
// the caller passes the attempt number, so a fresh edit restarts the sequence
// simply by starting again from attempt 1.
type Policy struct {
	cfg Config
}

// NewPolicy creates a policy from cfg.
func NewPolicy(cfg Config) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg}, nil
}

// Config returns the policy parameters.
func (p *Policy) Config() Config {
	return p.cfg
}

// Decide is called after attempt (1-based) failed with err. Only network
// failures are retried; after MaxAttempts failures the policy gives up.
func (p *Policy) Decide(attempt int, err error) Decision {
	if !syncerr.Retryable(err) {
		return GiveUp
	}
	if attempt < 1 || attempt >= p.cfg.MaxAttempts {
		return GiveUp
	}

	b := p.backoff()

	var (
		delay time.Duration
		stop  bool
	)
	// Backoff в go-retry stateful, поэтому прокручиваем его до нужной попытки
	for i := 0; i < attempt; i++ {
		delay, stop = b.Next()
		if stop {
			return GiveUp
		}
	}

	return Decision{Retry: true, After: delay}
}

func (p *Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(p.cfg.BaseDelay)
	if p.cfg.JitterPercent > 0 {
		b = goretry.WithJitterPercent(p.cfg.JitterPercent, b)
	}
	b = goretry.WithCappedDuration(p.cfg.MaxDelay, b)
	return goretry.WithMaxRetries(uint64(p.cfg.MaxAttempts-1), b)
}
