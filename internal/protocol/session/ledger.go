package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PendingRequest tracks one request whose reply or error has not been seen.
type PendingRequest struct {
	Sequence     uint16
	Request      string
	SentAt       time.Time
	ExpectsReply bool

	ordinal uint64
}

// Ledger assigns 16-bit sequence numbers to requests in send order and
// matches replies and errors back to the request that caused them.
type Ledger struct {
	mu      sync.RWMutex
	next    uint64
	items   map[uint16]PendingRequest
	now     func() time.Time
	dropped int
}

func NewLedger() *Ledger {
	return &Ledger{
		items: make(map[uint16]PendingRequest),
		now:   time.Now,
	}
}

// Record registers a sent request and returns its sequence number. The first
// request is sequence 1 and numbering wraps at 16 bits.
func (l *Ledger) Record(request string, expectsReply bool) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	seq := uint16(l.next)
	if _, ok := l.items[seq]; ok {
		l.dropped++
	}
	l.items[seq] = PendingRequest{
		Sequence:     seq,
		Request:      strings.TrimSpace(request),
		SentAt:       l.now(),
		ExpectsReply: expectsReply,
		ordinal:      l.next,
	}
	return seq
}

// Last returns the sequence number of the most recently recorded request.
func (l *Ledger) Last() uint16 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint16(l.next)
}

func (l *Ledger) Resolve(seq uint16) (PendingRequest, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.items[seq]
	return item, ok
}

// Complete removes the request with the given sequence number. Requests sent
// before it that never expected a reply are settled as well, since the server
// handles requests in order.
func (l *Ledger) Complete(seq uint16) (PendingRequest, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[seq]
	if !ok {
		return PendingRequest{}, false
	}
	delete(l.items, seq)
	for key, other := range l.items {
		if !other.ExpectsReply && other.ordinal < item.ordinal {
			delete(l.items, key)
		}
	}
	return item, true
}

// Pending lists outstanding requests in send order.
func (l *Ledger) Pending() []PendingRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]PendingRequest, 0, len(l.items))
	for _, item := range l.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ordinal < out[j].ordinal
	})
	return out
}

// Overwritten reports how many pending entries were replaced because the
// sequence space wrapped before they completed.
func (l *Ledger) Overwritten() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
