package infra

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is satisfied by *pgxpool.Pool and repo.StorePinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreProbe reports whether the relational store is reachable. Results are
// cached for ttl so hot endpoints do not ping on every request.
type StoreProbe struct {
	pinger  Pinger
	logger  zerolog.Logger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

// NewStoreProbe builds a probe around pinger.
func NewStoreProbe(pinger Pinger, logger zerolog.Logger) *StoreProbe {
	return &StoreProbe{
		pinger:  pinger,
		logger:  logger,
		ttl:     5 * time.Second,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Available pings the store unless a fresh result is cached.
func (p *StoreProbe) Available(ctx context.Context) bool {
	if p == nil || p.pinger == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	if !p.checkedAt.IsZero() && now.Sub(p.checkedAt) < p.ttl {
		return p.available
	}
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.pinger.Ping(pingCtx)
	available := err == nil
	if available != p.available || p.checkedAt.IsZero() {
		if available {
			p.logger.Info().Msg("database available")
		} else {
			p.logger.Warn().Err(err).Msg("database unavailable")
		}
	}
	p.available = available
	p.checkedAt = now
	return available
}

// MarkUnavailable drops the cached result after a connection-level failure.
func (p *StoreProbe) MarkUnavailable() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.available = false
	p.checkedAt = p.now()
	p.mu.Unlock()
}
