package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the remote service while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker 远程调用熔断器
type CircuitBreaker struct {
	name             string
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration

	state           int32
	probing         int32
	failureCount    int32
	successCount    int32
	lastFailureTime time.Time
	mu              sync.RWMutex
}

// NewCircuitBreaker opens after failureThreshold consecutive failures and lets a
// probe through once timeout has passed. successThreshold probes close it again.
func NewCircuitBreaker(name string, failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: int32(failureThreshold),
		successThreshold: int32(successThreshold),
		timeout:          timeout,
		state:            int32(BreakerClosed),
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// State 当前状态
func (cb *CircuitBreaker) State() BreakerState {
	return BreakerState(atomic.LoadInt32(&cb.state))
}

// Call runs fn unless the breaker is open. While half-open only one call at a time
// reaches fn, the rest fail fast. Cancellation by the caller is not counted as a
// failure of the remote side.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	ok, probe := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}
	if probe {
		defer atomic.StoreInt32(&cb.probing, 0)
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.onSuccess()
	case errors.Is(err, context.Canceled):
	default:
		cb.onFailure()
	}
	return err
}

// allow reports whether a call may proceed and whether it holds the half-open probe slot.
func (cb *CircuitBreaker) allow() (ok, probe bool) {
	switch cb.State() {
	case BreakerClosed:
		return true, false
	case BreakerOpen:
		cb.mu.RLock()
		expired := time.Since(cb.lastFailureTime) >= cb.timeout
		cb.mu.RUnlock()
		if !expired {
			return false, false
		}
		if atomic.CompareAndSwapInt32(&cb.state, int32(BreakerOpen), int32(BreakerHalfOpen)) {
			atomic.StoreInt32(&cb.successCount, 0)
		}
		fallthrough
	case BreakerHalfOpen:
		if atomic.CompareAndSwapInt32(&cb.probing, 0, 1) {
			return true, true
		}
		return false, false
	default:
		return false, false
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.State() {
	case BreakerHalfOpen:
		if atomic.AddInt32(&cb.successCount, 1) >= cb.successThreshold {
			atomic.StoreInt32(&cb.failureCount, 0)
			atomic.StoreInt32(&cb.state, int32(BreakerClosed))
		}
	case BreakerClosed:
		atomic.StoreInt32(&cb.failureCount, 0)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	cb.lastFailureTime = time.Now()
	cb.mu.Unlock()

	switch cb.State() {
	case BreakerHalfOpen:
		// 半开状态下失败直接重新打开
		atomic.StoreInt32(&cb.successCount, 0)
		atomic.StoreInt32(&cb.state, int32(BreakerOpen))
	case BreakerClosed:
		if atomic.AddInt32(&cb.failureCount, 1) >= cb.failureThreshold {
			atomic.StoreInt32(&cb.state, int32(BreakerOpen))
		}
	}
}

// Stats 熔断器统计，用于健康检查输出
func (cb *CircuitBreaker) Stats() map[string]any {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return map[string]any{
		"name":              cb.name,
		"state":             cb.State().String(),
		"failure_count":     atomic.LoadInt32(&cb.failureCount),
		"failure_threshold": cb.failureThreshold,
		"timeout":           cb.timeout.String(),
		"last_failure_time": cb.lastFailureTime,
	}
}

// BreakerEmbedder guards an Embedder. An open breaker fails fast with
// ErrEmbeddingService so callers classify it like any other embedding outage.
type BreakerEmbedder struct {
	next    Embedder
	breaker *CircuitBreaker
}

func NewBreakerEmbedder(next Embedder, breaker *CircuitBreaker) *BreakerEmbedder {
	return &BreakerEmbedder{next: next, breaker: breaker}
}

func (e *BreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vector, err = e.next.Embed(ctx, text)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %s: %w", ErrEmbeddingService, e.breaker.Name(), err)
	}
	return vector, err
}

func (e *BreakerEmbedder) Dimensions() int { return e.next.Dimensions() }

// BreakerCompleter guards a Completer.
type BreakerCompleter struct {
	next    Completer
	breaker *CircuitBreaker
}

func NewBreakerCompleter(next Completer, breaker *CircuitBreaker) *BreakerCompleter {
	return &BreakerCompleter{next: next, breaker: breaker}
}

func (c *BreakerCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	var answer string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		answer, err = c.next.Complete(ctx, system, user)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return "", fmt.Errorf("%w: %s: %w", ErrCompletionService, c.breaker.Name(), err)
	}
	return answer, err
}
