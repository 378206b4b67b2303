// Package chain implements the CCC runtime: a bidirectional, typed
// message-passing graph connecting fetch-pipeline producers to consumers.
package chain

import "sync"

// Op is a message sent along one direction of a Link.
type Op int

const (
	// Start establishes the stream and carries initial parameters.
	Start Op = iota
	// Send delivers a data chunk.
	Send
	// End signals normal completion.
	End
	// Abort signals error or cancellation.
	Abort
	// Stop requests the producer to pause. Unused by the core; kept for
	// contract completeness (spec.md §4.B).
	Stop
)

func (op Op) String() string {
	switch op {
	case Start:
		return "Start"
	case Send:
		return "Send"
	case End:
		return "End"
	case Abort:
		return "Abort"
	case Stop:
		return "Stop"
	default:
		return "Op(?)"
	}
}

func terminal(op Op) bool { return op == End || op == Abort }

// Direction distinguishes the two message paths a Link carries.
type Direction int

const (
	// Fwd carries data producer→consumer.
	Fwd Direction = iota
	// Bck carries control and status consumer→producer.
	Bck
)

// Callback handles one message on a Link's edge. The branch tag lets a
// single target link multiplex several producers (e.g. a cache entry's
// many clients). Its return value is the "did I run" signal SendForward/
// SendBackward report back to the caller.
type Callback func(op Op, branch int, data []byte) bool

// edge is one direction of a Link: where messages go, how they are
// multiplexed at the target, and whether this direction has already
// delivered its one allowed terminal message.
type edge struct {
	target       *Link
	branch       int
	callback     Callback
	gaveTerminal bool
}

// Link is a node in the CCC graph. Stopped/Ended/Aborted are monotonic:
// once either direction delivers End or Abort the link as a whole stops
// being Operative, even though each direction tracks its own terminal
// delivery independently (spec.md §4.B tie-break: both directions still
// fire on Abort, backward before forward).
type Link struct {
	mu       sync.Mutex
	localKey int

	fwd edge
	bck edge

	stopped bool
}

// NewLink creates a Link identified by the given opaque local key.
func NewLink(localKey int) *Link {
	return &Link{localKey: localKey}
}

// LocalKey returns the opaque key this link was constructed with.
func (l *Link) LocalKey() int { return l.localKey }

// SetForward wires this link's forward edge to target, multiplexed under
// branch, invoking fn on every forward message.
func (l *Link) SetForward(target *Link, branch int, fn Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fwd.target, l.fwd.branch, l.fwd.callback = target, branch, fn
}

// SetBackward wires this link's backward edge, symmetric to SetForward.
func (l *Link) SetBackward(target *Link, branch int, fn Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bck.target, l.bck.branch, l.bck.callback = target, branch, fn
}

// Unlink clears the callback on the given direction so further sends on it
// are inert. It does not affect the opposite direction.
func (l *Link) Unlink(dir Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch dir {
	case Fwd:
		l.fwd.callback = nil
	case Bck:
		l.bck.callback = nil
	}
}

// Operative reports whether the link can still carry messages: neither
// direction has yet delivered an End or an Abort.
func (l *Link) Operative() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.fwd.gaveTerminal && !l.bck.gaveTerminal
}

// Stopped reports whether a Stop has been requested on this link.
func (l *Link) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// claim marks e's terminal delivery (if op is terminal) and snapshots its
// callback under the link's mutex, so the callback itself can be invoked
// outside the lock — a re-entrant SendForward/SendBackward from within the
// callback must not deadlock on l.mu.
func claim(e *edge, op Op) (cb Callback, branch int, ok bool) {
	if terminal(op) && e.gaveTerminal {
		return nil, 0, false
	}
	if terminal(op) {
		e.gaveTerminal = true
	}
	if e.callback == nil {
		return nil, 0, false
	}
	return e.callback, e.branch, true
}

// SendForward delivers op along the forward edge. For End or Abort it sets
// the corresponding flag before invoking the callback, so a re-entrant call
// observes completion — the idempotence guarantee of spec.md §8 property 1.
func (l *Link) SendForward(op Op, data []byte) bool {
	l.mu.Lock()
	if op == Stop {
		l.stopped = true
	}
	cb, branch, ok := claim(&l.fwd, op)
	l.mu.Unlock()
	if !ok {
		return false
	}
	return cb(op, branch, data)
}

// SendBackward delivers op along the backward edge.
func (l *Link) SendBackward(op Op, data []byte) bool {
	l.mu.Lock()
	if op == Stop {
		l.stopped = true
	}
	cb, branch, ok := claim(&l.bck, op)
	l.mu.Unlock()
	if !ok {
		return false
	}
	return cb(op, branch, data)
}

// AbortBoth aborts both directions of the link in producer-cleans-up-after-
// consumer order: backward first, then forward (spec.md §4.B tie-break
// rule). Returns whether either delivered.
func (l *Link) AbortBoth(data []byte) bool {
	b := l.SendBackward(Abort, data)
	f := l.SendForward(Abort, data)
	return b || f
}
