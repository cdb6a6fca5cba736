package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cbmock/cbmock-go/pkg/errmap"
	"github.com/cbmock/cbmock-go/pkg/protocol"
)

// Backoff computes retry delays from an error map retry specification.
//
// Attempt n (1-based) waits After before the first retry, then:
// constant waits Interval, linear waits n*Interval, exponential waits
// Interval*2^(n-1). A positive Ceil caps every delay and a positive
// MaxDuration caps the sum of all delays.
type Backoff struct {
	mu sync.Mutex

	spec     errmap.RetrySpec
	attempts int
	waited   time.Duration
}

// NewBackoff creates a backoff for spec.
func NewBackoff(spec errmap.RetrySpec) *Backoff {
	return &Backoff{spec: spec}
}

// Next returns the delay before the next retry and advances the backoff.
// It returns false once the retry budget is exhausted.
func (b *Backoff) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	d := b.delay(b.attempts)
	if limit := ms(b.spec.MaxDuration()); limit > 0 && b.waited+d > limit {
		return 0, false
	}
	b.waited += d
	return d, true
}

func (b *Backoff) delay(n int) time.Duration {
	interval := ms(b.spec.Interval())
	var d time.Duration
	switch b.spec.Strategy() {
	case errmap.StrategyLinear:
		d = time.Duration(n) * interval
	case errmap.StrategyExponential:
		d = interval
		for i := 1; i < n && (b.spec.Ceil() <= 0 || d < ms(b.spec.Ceil())); i++ {
			d *= 2
		}
	default:
		d = interval
	}
	if ceil := ms(b.spec.Ceil()); ceil > 0 && d > ceil {
		d = ceil
	}
	if n == 1 {
		d += ms(b.spec.After())
	}
	return d
}

// Reset starts over, e.g. after a success.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
	b.waited = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ErrorMap fetches and parses the node's error map. The result is cached
// for the lifetime of the connection.
func (c *DataClient) ErrorMap() (*errmap.ErrorMap, error) {
	c.mu.Lock()
	cached := c.errMap
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := c.Do(protocol.OpGetErrorMap, "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("get error map: %s", resp.Status)
	}
	m, err := errmap.Parse(resp.Value)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.errMap = m
	c.mu.Unlock()
	return m, nil
}

// DoRetry sends a request and retries it while m assigns the response
// status a retry specification and its budget lasts. It returns the last
// response and the number of requests sent.
func (c *DataClient) DoRetry(ctx context.Context, m *errmap.ErrorMap, op protocol.Opcode, key string, value []byte) (*protocol.Response, int, error) {
	var b *Backoff
	for sent := 1; ; sent++ {
		resp, err := c.Do(op, key, value)
		if err != nil {
			return nil, sent, err
		}
		info, ok := m.Lookup(resp.Status)
		if !ok || info.Retry == nil {
			return resp, sent, nil
		}
		if b == nil {
			b = NewBackoff(*info.Retry)
		}
		d, ok := b.Next()
		if !ok {
			return resp, sent, nil
		}

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return resp, sent, ctx.Err()
		case <-t.C:
		}
	}
}
