package lattice

// This file implements the Mailbox and selective receive: an unbounded,
// single-consumer FIFO of heterogeneous typed envelopes, where Receive
// can pick the first message matching any of several handlers rather
// than always taking the head of the queue. A naive implementation would
// rescan the whole queue from the front every time a Receive call has to
// block and wait for new mail; instead, each wait only rescans the tail
// that arrived since the last scan, since everything before it has
// already been checked against the current handler set and rejected.

import (
	"sync"
	"time"
)

// envelope is one queued message.
type envelope struct {
	value interface{}
}

// Handler pairs a predicate over a mailbox's message type with the body
// to run once a matching message is dequeued.
type Handler struct {
	// Match reports whether this handler accepts v. A common Match is a
	// type assertion:
	//
	//	func(v interface{}) bool { _, ok := v.(MyType); return ok }
	Match func(v interface{}) bool
	// Run is invoked with the matched value once it has been removed
	// from the mailbox.
	Run func(v interface{})
}

// MatchType returns a Handler that matches any value of the same
// concrete type as T and passes it to run.
func MatchType[T any](run func(T)) Handler {
	return Handler{
		Match: func(v interface{}) bool {
			_, ok := v.(T)
			return ok
		},
		Run: func(v interface{}) {
			run(v.(T))
		},
	}
}

// Mailbox is the per-process FIFO of heterogeneous typed envelopes. There
// is exactly one consumer: the owning process. Producers are any process
// on any node, reached indirectly through a ProcessID and the send
// router (router.go).
type Mailbox struct {
	id         ProcessID
	mu         sync.Mutex
	cond       *sync.Cond
	messages   []envelope
	terminated bool

	// notify holds the ProcessIDs that asked to be told when this
	// mailbox terminates.
	notify map[ProcessID]struct{}

	node *Node
}

func newMailbox(node *Node, id ProcessID) *Mailbox {
	m := &Mailbox{id: id, node: node}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// deliver appends msg to the mailbox. It is not exported: all producers
// go through the send router (router.go) so that local and remote
// delivery share one code path.
func (m *Mailbox) deliver(msg interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return ErrMailboxTerminated
	}

	m.messages = append(m.messages, envelope{value: msg})
	m.cond.Broadcast()
	return nil
}

// Len reports the number of queued, undelivered messages. It returns 0 if
// the mailbox has been terminated.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		return 0
	}
	return len(m.messages)
}

// scanFrom looks for the first message, starting at index from, accepted
// by any handler. It returns the matched index, the handler that
// accepted it, and true, or (0, Handler{}, false) if nothing in
// m.messages[from:] matches. Caller must hold m.mu.
func (m *Mailbox) scanFrom(from int, handlers []Handler) (int, Handler, bool) {
	for i := from; i < len(m.messages); i++ {
		for _, h := range handlers {
			if h.Match(m.messages[i].value) {
				return i, h, true
			}
		}
	}
	return 0, Handler{}, false
}

func (m *Mailbox) removeAt(i int) envelope {
	v := m.messages[i]
	m.messages = append(m.messages[:i], m.messages[i+1:]...)
	return v
}

// Receive scans the mailbox head-to-tail for the first message accepted
// by any of handlers, removes it, and invokes its Run. Messages that
// don't match any handler are left in place, to be observed by a later
// Receive whose handlers accept them, in original order. If nothing
// matches, Receive blocks until a new message arrives, then rescans only
// the newly-arrived tail rather than the whole queue again.
//
// Receive assumes it is the only goroutine receiving from this mailbox;
// receiving concurrently from multiple goroutines will cause messages to
// be missed by one or the other.
func (m *Mailbox) Receive(handlers ...Handler) (interface{}, error) {
	return m.receive(handlers, nil)
}

// ReceiveTimeout works like Receive, but returns ErrReceiveTimeout,
// without consuming any message, if no match arrives before timeout
// elapses.
func (m *Mailbox) ReceiveTimeout(timeout time.Duration, handlers ...Handler) (interface{}, error) {
	deadline := time.Now().Add(timeout)
	return m.receive(handlers, &deadline)
}

// receive is the shared implementation behind Receive and ReceiveTimeout.
// It holds m.mu for its entire execution, so there is never a second
// goroutine racing it for the same message: a nil deadline blocks
// forever, a non-nil one merely has time.AfterFunc wake the waiter on
// expiry, the way terminate and deliver already do.
func (m *Mailbox) receive(handlers []Handler, deadline *time.Time) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return nil, ErrMailboxTerminated
	}

	if i, h, ok := m.scanFrom(0, handlers); ok {
		v := m.removeAt(i)
		h.Run(v.value)
		return v.value, nil
	}

	var timedOut bool
	if deadline != nil {
		timer := time.AfterFunc(time.Until(*deadline), func() {
			m.mu.Lock()
			timedOut = true
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}

	lastLen := len(m.messages)
	for {
		for len(m.messages) == lastLen && !m.terminated && !timedOut {
			m.cond.Wait()
		}
		if m.terminated {
			return nil, ErrMailboxTerminated
		}
		if i, h, ok := m.scanFrom(lastLen, handlers); ok {
			v := m.removeAt(i)
			h.Run(v.value)
			return v.value, nil
		}
		if timedOut {
			return nil, ErrReceiveTimeout
		}
		lastLen = len(m.messages)
	}
}

// ReceiveNext dequeues the oldest message regardless of type, blocking if
// the mailbox is empty. It is the non-selective fast path used by
// channels (channel.go) and by processes that don't need selective
// matching.
func (m *Mailbox) ReceiveNext() (interface{}, error) {
	return m.receiveNext(nil)
}

// ReceiveNextTimeout works like ReceiveNext but returns ErrReceiveTimeout
// if no message arrives before timeout elapses.
func (m *Mailbox) ReceiveNextTimeout(timeout time.Duration) (interface{}, error) {
	deadline := time.Now().Add(timeout)
	return m.receiveNext(&deadline)
}

func (m *Mailbox) receiveNext(deadline *time.Time) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.terminated {
		return nil, ErrMailboxTerminated
	}

	var timedOut bool
	if deadline != nil {
		timer := time.AfterFunc(time.Until(*deadline), func() {
			m.mu.Lock()
			timedOut = true
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}

	for len(m.messages) == 0 && !m.terminated && !timedOut {
		m.cond.Wait()
	}
	if m.terminated {
		return nil, ErrMailboxTerminated
	}
	if timedOut && len(m.messages) == 0 {
		return nil, ErrReceiveTimeout
	}
	v := m.removeAt(0)
	return v.value, nil
}

// notifyOnTerminate registers target to receive a ProcessTerminated
// message when m's owning process terminates.
func (m *Mailbox) notifyOnTerminate(target ProcessID) {
	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		m.node.Send(target, ProcessTerminated{Process: m.id})
		return
	}
	if m.notify == nil {
		m.notify = make(map[ProcessID]struct{})
	}
	m.notify[target] = struct{}{}
	m.mu.Unlock()
}

func (m *Mailbox) removeNotify(target ProcessID) {
	m.mu.Lock()
	delete(m.notify, target)
	m.mu.Unlock()
}

// ProcessTerminated is delivered to any process that asked to be notified
// of a process's termination via notifyOnTerminate.
type ProcessTerminated struct {
	Process ProcessID
}

func init() {
	RegisterType(ProcessTerminated{})
}

// terminate marks the mailbox terminated, wakes any blocked receivers
// (who will observe ErrMailboxTerminated), and notifies linked/monitoring
// processes. It is idempotent.
func (m *Mailbox) terminate() {
	m.mu.Lock()
	if m.terminated {
		m.mu.Unlock()
		return
	}
	m.terminated = true
	notify := m.notify
	m.notify = nil
	m.messages = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	for target := range notify {
		m.node.Send(target, ProcessTerminated{Process: m.id})
	}
}
