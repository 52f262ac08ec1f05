package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker position for one failure category.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned when a call is short-circuited without being attempted.
var ErrOpen = errors.New("circuit open: dependency temporarily unavailable")

// Config defines breaker behavior.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive server-side failures before opening
	Cooldown         time.Duration `yaml:"cooldown"`          // open duration before a half-open probe
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	FailureThreshold: 4,
	Cooldown:         60 * time.Second,
}

// Breaker guards one failure category. Created lazily by the Registry;
// state transitions are atomic under the mutex.
type Breaker struct {
	mu sync.Mutex

	category      string
	cfg           Config
	state         State
	failures      int
	lastFailure   time.Time
	probeInFlight bool

	now func() time.Time // injectable for tests
}

// NewBreaker creates a closed breaker for a category.
func NewBreaker(category string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig.Cooldown
	}
	return &Breaker{
		category: category,
		cfg:      cfg,
		state:    StateClosed,
		now:      time.Now,
	}
}

// Do runs fn under the breaker. When the breaker is open the call is not
// attempted and ErrOpen is returned. Only server-side errors (per Classify)
// move the breaker toward open; client errors prove the dependency is
// reachable and reset it like a success.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

// allow decides whether a call may proceed, performing the open→half-open
// transition once the cooldown has elapsed. In half-open exactly one probe
// is admitted regardless of concurrent callers.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || Classify(err) == ClassClient {
		b.state = StateClosed
		b.failures = 0
		b.probeInFlight = false
		return
	}

	b.failures++
	b.lastFailure = b.now()
	b.probeInFlight = false

	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// Snapshot is a point-in-time view of one breaker for operators.
type Snapshot struct {
	Category    string    `json:"category"`
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	NextRetry   time.Time `json:"next_retry,omitempty"`
}

// Snapshot returns the breaker's current state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Category:    b.category,
		State:       b.state,
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
	if b.state == StateOpen {
		s.NextRetry = b.lastFailure.Add(b.cfg.Cooldown)
	}
	return s
}
