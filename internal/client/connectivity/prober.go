package connectivity

import (
	"context"
	"log/slog"
	"time"
)

//go:generate moq -out health_checker_mock.go . HealthChecker

// HealthChecker is the store endpoint polled by Prober.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Prober derives connectivity from periodic health checks against the store.
type Prober struct {
	*Monitor
	checker  HealthChecker
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a prober. It starts optimistic (online) until the first check.
func NewProber(checker HealthChecker, interval time.Duration, logger *slog.Logger) *Prober {
	timeout := interval / 2
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Prober{
		Monitor:  NewMonitor(true),
		checker:  checker,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Run checks immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe runs one health check and updates the state.
func (p *Prober) Probe(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(checkCtx)
	online := err == nil

	if online != p.Online() {
		if online {
			p.logger.Info("Store is reachable again")
		} else {
			p.logger.Warn("Store is unreachable", "error", err)
		}
	}

	p.Set(online)
	return online
}
