package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrPoolExhausted is returned when no slot frees up within the acquire
// timeout. Callers treat it as DependencyUnavailable, not a hard failure.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// Config bounds the pool.
type Config struct {
	MinConns       int           `yaml:"min_conns"`
	MaxConns       int           `yaml:"max_conns"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MinConns:       2,
	MaxConns:       10,
	AcquireTimeout: 2 * time.Second,
}

// Pool is a bounded checkout layer over the database handle. database/sql
// already multiplexes connections; the pool adds a hard cap with a short
// acquire timeout and occupancy accounting so exhaustion is diagnosable
// instead of a silent pile-up of blocked requests.
type Pool struct {
	db    *sqlx.DB
	slots chan struct{}
	cfg   Config
	log   *slog.Logger

	mu    sync.Mutex
	inUse int
}

// New creates a pool over db. The db's own MaxOpenConns should be >= MaxConns.
func New(db *sqlx.DB, cfg Config, log *slog.Logger) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultConfig.MaxConns
	}
	if cfg.MinConns <= 0 {
		cfg.MinConns = DefaultConfig.MinConns
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig.AcquireTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		db:    db,
		slots: make(chan struct{}, cfg.MaxConns),
		cfg:   cfg,
		log:   log,
	}
}

// Lease is a checked-out connection. Release returns it; Release is
// idempotent.
type Lease struct {
	Conn *sqlx.Conn

	pool *Pool
	once sync.Once
}

// Release returns the connection to the pool.
func (l *Lease) Release() error {
	var err error
	l.once.Do(func() {
		if l.Conn != nil {
			err = l.Conn.Close()
		}
		l.pool.free()
	})
	return err
}

// Acquire checks out a connection, waiting at most the configured acquire
// timeout (or ctx's deadline, whichever fires first) for a free slot.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		snap := p.Snapshot()
		p.log.Warn("connection pool exhausted",
			"in_use", snap.InUse,
			"available", snap.Available,
			"max", snap.Max,
		)
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn, err := p.db.Connx(ctx)
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	p.mu.Lock()
	p.inUse++
	p.mu.Unlock()

	return &Lease{Conn: conn, pool: p}, nil
}

func (p *Pool) free() {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	<-p.slots
}

// Snapshot is a point-in-time occupancy view for operators.
type Snapshot struct {
	Healthy   bool `json:"healthy"`
	Min       int  `json:"min"`
	Max       int  `json:"max"`
	InUse     int  `json:"in_use"`
	Available int  `json:"available"`
}

// Snapshot returns current occupancy. Healthy means at least one slot is
// free.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	inUse := p.inUse
	p.mu.Unlock()

	return Snapshot{
		Healthy:   inUse < p.cfg.MaxConns,
		Min:       p.cfg.MinConns,
		Max:       p.cfg.MaxConns,
		InUse:     inUse,
		Available: p.cfg.MaxConns - inUse,
	}
}

// Ping verifies the underlying database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
