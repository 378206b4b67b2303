// Package widget implements the resize protocol shared by every layout
// node (spec.md §4.J/§4.L): the invalidation flags, the deferred queue
// that walks from an invalidated subtree up to the first ancestor already
// carrying the same flags, and the idle-phase drain that performs
// allocation in one leaves-first sweep.
//
// Grounded directly on original_source/dw/widget.cc's Widget::queueResize:
// the ancestor walk, the "already carries the flag" stop condition, and
// the NEEDS_RESIZE/RESIZE_QUEUED vs. EXTREMES_CHANGED/EXTREMES_QUEUED flag
// pairing (a widget not yet attached to a layout sets the *_CHANGED
// flags directly; once attached to a layout's idle queue it sets the
// *_QUEUED flags instead, and the deferred sweep resolves them) are a
// line-for-line port of that method's control flow, generalized from a
// single C++ base class hierarchy to a Go capability interface (spec.md
// §9's design note: "dynamic dispatch ... becomes a capability set").
package widget

import "sort"

// Flag is one bit of a Resizable's invalidation state.
type Flag uint8

const (
	NeedsResize Flag = 1 << iota
	ExtremesChanged
	NeedsAllocate
	ResizeQueued
	ExtremesQueued
	WasAllocated
)

func (f Flag) has(bit Flag) bool { return f&bit != 0 }

// Resizable is the capability every layout node exposes to the resize
// protocol, standing in for dw::core::Widget's resize-related fields and
// methods (spec.md §9: dynamic dispatch over a single base class becomes
// a capability set of small interfaces in Go).
type Resizable interface {
	// Parent returns the enclosing widget, or nil at the root.
	Parent() Resizable
	// Flags returns the widget's current invalidation bits.
	Flags() Flag
	// SetFlags ORs the given bits into the widget's invalidation state.
	SetFlags(f Flag)
	// ClearFlags ANDs the given bits out of the widget's invalidation
	// state.
	ClearFlags(f Flag)
	// Depth returns the widget's distance from the root (0 at the root).
	// Used only to order the idle-phase drain leaves-first; a widget tree
	// with no notion of depth can always return 0 for everything, at the
	// cost of an arbitrary allocation order within one sweep.
	Depth() int
}

// Sizer is implemented by a Resizable that can actually compute and apply
// its own layout; Queue.Drain calls these during the allocation sweep.
// Kept separate from Resizable so pure bookkeeping tests can exercise the
// queue without a real size-request/get-extremes/size-allocate
// implementation behind it.
type Sizer interface {
	Resizable
	SizeAllocate()
}

// Queue is one layout's deferred resize/extremes queue (spec.md's
// RESIZE_QUEUED-gated list, Layout::queueResizeList in the original).
// A Queue is not safe for concurrent use; spec.md §5 runs the whole core
// single-threaded.
type Queue struct {
	pending []Resizable
}

// QueueResize marks w (and, per the ancestor walk below, every affected
// ancestor) as needing a resize — and, if extremesChanged, as needing its
// extremes recomputed too. It mirrors Widget::queueResize's non-fast path:
// starting at w's parent, each ancestor is added to the queue (if not
// already queued) and flagged, and the walk stops at the first ancestor
// whose flags already subsume what this call would set, since everything
// above it is already known to be invalidated.
func (q *Queue) QueueResize(w Resizable, extremesChanged bool) {
	// The flag choice is made before enqueue, which sets ResizeQueued.
	total := resizeFlagFor(w)
	if extremesChanged {
		total |= extremesFlagFor(w)
	}
	q.enqueue(w)
	w.SetFlags(total | NeedsAllocate)

	for cur := w.Parent(); cur != nil; cur = cur.Parent() {
		already := cur.Flags()&total == total

		set := resizeFlagFor(cur) | NeedsAllocate
		if extremesChanged {
			set |= extremesFlagFor(cur)
		}
		q.enqueue(cur)
		cur.SetFlags(set)

		if already {
			break
		}
	}
}

// resizeFlagFor reports RESIZE_QUEUED if w is already in a queue
// (tracked by the ResizeQueued bit persisting across calls), NEEDS_RESIZE
// otherwise — Widget::queueResize's resizeFlag selection, generalized
// since this package has no separate "attached to a layout" concept: a
// widget counts as queued once it has ever been enqueued.
func resizeFlagFor(w Resizable) Flag {
	if w.Flags().has(ResizeQueued) {
		return ResizeQueued
	}
	return NeedsResize
}

func extremesFlagFor(w Resizable) Flag {
	if w.Flags().has(ExtremesQueued) {
		return ExtremesQueued
	}
	return ExtremesChanged
}

func (q *Queue) enqueue(w Resizable) {
	if w.Flags().has(ResizeQueued) {
		return
	}
	w.SetFlags(ResizeQueued)
	q.pending = append(q.pending, w)
}

// Pending returns every widget currently queued for allocation, in
// enqueue order.
func (q *Queue) Pending() []Resizable { return q.pending }

// Drain performs the idle-phase allocation sweep (spec.md §4.L): every
// queued widget is visited leaves-first (deepest first), so a child's
// SizeAllocate always runs before the ancestor relying on its resolved
// size, and the queue is emptied.
func (q *Queue) Drain() {
	ordered := make([]Resizable, len(q.pending))
	copy(ordered, q.pending)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Depth() > ordered[j].Depth()
	})

	for _, w := range ordered {
		if sizer, ok := w.(Sizer); ok {
			sizer.SizeAllocate()
		}
		w.ClearFlags(NeedsResize | ExtremesChanged | NeedsAllocate | ResizeQueued | ExtremesQueued)
		w.SetFlags(WasAllocated)
	}
	q.pending = q.pending[:0]
}
