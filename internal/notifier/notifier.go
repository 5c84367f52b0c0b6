// Package notifier broadcasts state revisions to listeners such as the
// dashboard event stream.
package notifier

import "sync"

// Notifier hands out monotonically increasing revision numbers and delivers
// the latest one to every subscriber. Slow subscribers never block a publish:
// a pending revision they have not read yet is replaced by the newer one.
type Notifier struct {
	mu        sync.Mutex
	listeners map[chan uint64]struct{}
	revision  uint64
	closed    bool
}

// New creates a notifier at revision 0.
func New() *Notifier {
	return &Notifier{listeners: make(map[chan uint64]struct{})}
}

// Subscribe returns a channel of revisions and a cancel function. Cancel is
// safe to call more than once. After Close the returned channel is already
// closed.
func (n *Notifier) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { n.remove(ch) })
	}
}

func (n *Notifier) remove(ch chan uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Publish bumps the revision and delivers it to all subscribers.
func (n *Notifier) Publish() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.revision++
	for ch := range n.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- n.revision
	}
	return n.revision
}

// Revision returns the last published revision.
func (n *Notifier) Revision() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.revision
}

// Len returns the number of active subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Close closes every subscriber channel. Later publishes still bump the
// revision but reach nobody.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners {
		delete(n.listeners, ch)
		close(ch)
	}
	n.closed = true
}
