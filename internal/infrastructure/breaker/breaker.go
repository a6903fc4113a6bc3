package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// callerFault is implemented by errors that reflect a bad request rather than
// an unhealthy upstream. They are returned to the caller but never trip the circuit.
type callerFault interface {
	CallerFault() bool
}

func isCallerFault(err error) bool {
	var cf callerFault
	return errors.As(err, &cf) && cf.CallerFault()
}

type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// StateObserver is notified on every state transition.
type StateObserver interface {
	SetCircuitBreakerState(target string, state float64)
}

// Breaker fast-fails calls to an upstream after MaxFailures consecutive errors.
// After ResetTimeout a single trial call is let through; its result closes or re-opens the circuit.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	obs    StateObserver
	now    func() time.Time

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
	trialActive bool
}

func New(name string, cfg Config, obs StateObserver, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("component", "breaker", "target", name),
		obs:    obs,
		now:    time.Now,
		state:  Closed,
	}
	b.publish(Closed)
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the circuit is open. Context cancellation by the caller
// and caller-fault errors are not counted as upstream failures; the latter prove
// the upstream answered.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)
	switch {
	case err == nil:
		b.onSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release()
	case isCallerFault(err):
		b.onSuccess()
	default:
		b.onFailure(err)
	}
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrOpen
		}
		b.setState(HalfOpen)
		b.trialActive = true
		b.logger.Info("breaker trial call")
		return nil
	case HalfOpen:
		if b.trialActive {
			return ErrOpen
		}
		b.trialActive = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
	b.recentFails = 0
	if b.state != Closed {
		b.logger.Info("breaker closed")
		b.setState(Closed)
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
	b.recentFails++

	if b.state == HalfOpen || b.recentFails >= b.cfg.MaxFailures {
		if b.state != Open {
			b.logger.Warn("breaker opened", "failures", b.recentFails, "error", err)
		}
		b.openedAt = b.now()
		b.setState(Open)
		return
	}
	b.logger.Debug("upstream failure", "failures", b.recentFails, "error", err)
}

// setState requires b.mu.
func (b *Breaker) setState(s State) {
	b.state = s
	b.publish(s)
}

func (b *Breaker) publish(s State) {
	if b.obs != nil {
		b.obs.SetCircuitBreakerState(b.name, float64(s))
	}
}
