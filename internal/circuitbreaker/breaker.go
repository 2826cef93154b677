// Package circuitbreaker stops calling an upstream source after it keeps
// failing, so cache misses fail fast instead of piling up on a dead backend.
//
// The breaker has three states:
//
//	Closed ──(error rate ≥ threshold)──► Open ──(OpenDuration elapsed)──► HalfOpen
//	  ▲                                                                        │
//	  └──────────────(all probes succeed)───────────────────────────────────────┘
//	                  (any probe fails) ──────────────────────────────────► Open
//
// The error rate is computed over a sliding window of outcomes. All methods
// are safe for concurrent use.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned instead of calling the upstream while the breaker is
// open or out of half-open probes.
var ErrOpen = errors.New("circuit breaker open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, calls pass through
	StateOpen                  // Calls are rejected
	StateHalfOpen              // Limited probe calls are allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker configuration. A zero ErrorPct,
// WindowDuration or OpenDuration disables the breaker; see Enabled.
type Config struct {
	ErrorPct       float64       `yaml:"error_pct"`        // Error percentage threshold (0-100)
	MinRequests    int           `yaml:"min_requests"`     // Outcomes in the window before the rate is checked
	WindowDuration time.Duration `yaml:"window"`           // Sliding window for the error rate
	OpenDuration   time.Duration `yaml:"open_duration"`    // Time spent open before probing
	HalfOpenProbes int           `yaml:"half_open_probes"` // Probes allowed in half-open
}

// Enabled reports whether cfg describes a working breaker.
func (c Config) Enabled() bool {
	return c.ErrorPct > 0 && c.WindowDuration > 0 && c.OpenDuration > 0
}

// Permit is handed out by Allow and passed back with the call's outcome.
// Outcomes of permits issued before the last state change are ignored.
type Permit struct {
	gen   uint64
	probe bool
}

// Breaker guards a single upstream.
type Breaker struct {
	mu             sync.Mutex
	cfg            Config
	now            func() time.Time
	state          State
	gen            uint64 // bumped on every state change
	successes      []time.Time // outcomes within the window
	failures       []time.Time
	openedAt       time.Time
	halfOpenProbes int // probes dispatched since entering half-open
	halfOpenOK     int // probes that succeeded
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may go through and returns the permit to
// hand back with its outcome. In half-open it hands out at most
// HalfOpenProbes permits.
func (b *Breaker) Allow() (Permit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(b.now())
	switch b.state {
	case StateOpen:
		return Permit{}, false
	case StateHalfOpen:
		if b.halfOpenProbes < b.cfg.HalfOpenProbes {
			b.halfOpenProbes++
			return Permit{gen: b.gen, probe: true}, true
		}
		return Permit{}, false
	}
	return Permit{gen: b.gen}, true
}

// RecordSuccess records a call that reached the upstream and got an answer.
func (b *Breaker) RecordSuccess(p Permit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.advanceLocked(now)
	if p.gen != b.gen {
		return
	}
	switch b.state {
	case StateClosed:
		b.successes = append(b.successes, now)
		b.trimWindow(now)
	case StateHalfOpen:
		b.halfOpenOK++
		if b.halfOpenOK >= b.cfg.HalfOpenProbes {
			b.setState(StateClosed)
			b.successes = b.successes[:0]
			b.failures = b.failures[:0]
		}
	}
}

// RecordFailure records a call that failed upstream.
func (b *Breaker) RecordFailure(p Permit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.advanceLocked(now)
	if p.gen != b.gen {
		return
	}
	switch b.state {
	case StateClosed:
		b.failures = append(b.failures, now)
		b.trimWindow(now)
		b.checkThreshold(now)
	case StateHalfOpen:
		b.setState(StateOpen)
		b.openedAt = now
	}
}

// Release gives back a probe permit whose call ended without a verdict, such
// as one abandoned by its caller. Other permits need no release.
func (b *Breaker) Release(p Permit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.probe && p.gen == b.gen && b.state == StateHalfOpen && b.halfOpenProbes > b.halfOpenOK {
		b.halfOpenProbes--
	}
}

// State returns the current state, moving from open to half-open once
// OpenDuration has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked(b.now())
	return b.state
}

func (b *Breaker) advanceLocked(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.OpenDuration {
		b.setState(StateHalfOpen)
		b.halfOpenProbes = 0
		b.halfOpenOK = 0
	}
}

func (b *Breaker) setState(s State) {
	b.state = s
	b.gen++
}

// maxWindowEntries caps each outcome slice.
const maxWindowEntries = 10000

func (b *Breaker) trimWindow(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowDuration)
	b.successes = trimBefore(b.successes, cutoff)
	b.failures = trimBefore(b.failures, cutoff)

	if len(b.successes) > maxWindowEntries {
		b.successes = b.successes[len(b.successes)-maxWindowEntries:]
	}
	if len(b.failures) > maxWindowEntries {
		b.failures = b.failures[len(b.failures)-maxWindowEntries:]
	}
}

func (b *Breaker) checkThreshold(now time.Time) {
	total := len(b.successes) + len(b.failures)
	if total < b.cfg.MinRequests {
		return
	}
	errorPct := float64(len(b.failures)) / float64(total) * 100
	if errorPct >= b.cfg.ErrorPct {
		b.setState(StateOpen)
		b.openedAt = now
	}
}

// trimBefore drops the timestamps older than cutoff. times is sorted.
func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	copy(times, times[i:])
	return times[:len(times)-i]
}
