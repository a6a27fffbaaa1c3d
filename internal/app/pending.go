package app

import (
	"errors"
	"sync"
	"time"
)

// ErrRequestPending is returned when a round-trip request is issued while
// a previous one of the same kind is still outstanding.
var ErrRequestPending = errors.New("app: request already pending")

// pendingRequest is a one-shot reply slot for a frontend round trip.
// Only one request may be outstanding at a time; a second Arm is rejected
// instead of silently replacing the first.
type pendingRequest struct {
	mu sync.Mutex
	ch chan string
}

// Arm reserves the slot and returns the reply channel.
func (p *pendingRequest) Arm() (<-chan string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return nil, ErrRequestPending
	}
	p.ch = make(chan string, 1)
	return p.ch, nil
}

// Resolve delivers the reply and frees the slot. Replies with no
// outstanding request are dropped.
func (p *pendingRequest) Resolve(value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return false
	}
	p.ch <- value
	p.ch = nil
	return true
}

// Abort frees the slot without delivering a reply. Waiters fall through
// to their timeout.
func (p *pendingRequest) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = nil
}

// Wait blocks for a reply or the timeout. ok reports whether a reply
// arrived; on timeout the slot is freed so the next request can proceed.
func (p *pendingRequest) Wait(ch <-chan string, timeout time.Duration) (string, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		p.mu.Lock()
		p.ch = nil
		p.mu.Unlock()
		return "", false
	}
}
