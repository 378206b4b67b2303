// Package outofflow implements the per-container float/absolute-box
// manager (spec.md §4.K): it places boxes taken out of the normal text
// flow and tells the flow when a placement invalidates lines already laid
// out.
//
// original_source/dw/ does not carry the actual OutOfFlowMgr
// implementation (oof.hh/outofflowmgr.cc never made it into the retrieved
// pack) — only original_source/dw/textblock.cc's call sites into it
// (getGeneratorX/getGeneratorY/getGeneratorWidth/getGeneratorRest, and the
// getClearPosition calls visible in its float-handling code). This
// package is grounded on the *contract* those call sites establish rather
// than a transcription of the manager's internals: a generator (the
// textblock that introduced the float) is queried for its reference
// position, floats stack per side from that reference downward, and
// in-flow content queries available width at a given vertical position.
// The real implementation's full CSS box model (per-side horizontal
// stacking before wrapping to a new row, margins, clearance rules beyond
// simple per-side floors) is reduced to the single-column-per-side model
// spec.md's prose describes; see DESIGN.md for the scoping decision.
package outofflow

// Side designates which margin of the container a float is anchored to.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

// Generator is the in-flow widget that introduced an out-of-flow box.
// The manager queries it for the position a new box is placed relative
// to (original_source/dw/textblock.cc's getGeneratorX/getGeneratorY/
// getGeneratorWidth).
type Generator interface {
	GeneratorX() int
	GeneratorY() int
	GeneratorWidth() int
}

// WrapInvalidator is notified when a float placement changes the width
// available to in-flow content at or below a vertical position, so
// already-broken lines there must be re-wrapped (spec.md: "floats trigger
// reflow of affected lines by invalidating wrapRefLines"). Translating a
// Y position back into a line index is the flow layer's job, not this
// package's — it only knows pixel geometry.
type WrapInvalidator interface {
	InvalidateFromY(y int)
}

// Kind distinguishes a float, which narrows the space available to
// in-flow content around it, from an absolute box, which is positioned
// independently and never affects line wrapping.
type Kind int

const (
	KindFloat Kind = iota
	KindAbsolute
)

// Box is one out-of-flow box tracked by a Manager.
type Box struct {
	Kind      Kind
	WordIndex int // textflow word position that introduced this box
	Side      Side
	Width     int
	Height    int
	X, Y      int // resolved position, relative to the container
}

// Manager places floats and absolute boxes for one container. Floats
// stack top-down per side, independently of the opposite side, the way
// CSS stacks same-side floats before any wrap around them is considered;
// see the package doc for what this simplifies away from the original.
type Manager struct {
	containerWidth int
	invalidator    WrapInvalidator

	boxes []Box
	floor map[Side]int // next available y per side
}

// NewManager creates a manager for a container of the given width.
// invalidator may be nil, in which case float placement never triggers
// reflow (useful for layout that only needs final positions, e.g. tests).
func NewManager(containerWidth int, invalidator WrapInvalidator) *Manager {
	return &Manager{
		containerWidth: containerWidth,
		invalidator:    invalidator,
		floor:          make(map[Side]int),
	}
}

// AddFloat places a new float box relative to its generator's current
// position and this side's existing floats, records it, and invalidates
// line wrapping from its top edge downward.
func (m *Manager) AddFloat(gen Generator, wordIndex int, side Side, width, height int) Box {
	y := gen.GeneratorY()
	if f := m.floor[side]; f > y {
		y = f
	}

	var x int
	if side == SideRight {
		x = m.containerWidth - width
		if x < 0 {
			x = 0
		}
	}

	b := Box{Kind: KindFloat, WordIndex: wordIndex, Side: side, Width: width, Height: height, X: x, Y: y}
	m.boxes = append(m.boxes, b)
	m.floor[side] = y + height

	if m.invalidator != nil {
		m.invalidator.InvalidateFromY(y)
	}
	return b
}

// AddAbsolute places an absolute box at an explicit position, independent
// of any float stacking; it never triggers a wrap invalidation, since
// absolute boxes are taken out of flow entirely.
func (m *Manager) AddAbsolute(wordIndex, x, y, width, height int) Box {
	b := Box{Kind: KindAbsolute, WordIndex: wordIndex, X: x, Y: y, Width: width, Height: height}
	m.boxes = append(m.boxes, b)
	return b
}

// GetClearPosition returns the y coordinate below which a new line or
// float on the given side must start: the bottom edge of every float
// currently placed on that side (original_source/dw/textblock.cc calls
// this for <br clear=...> handling and before placing the next float).
func (m *Manager) GetClearPosition(side Side) int {
	return m.floor[side]
}

// AvailWidth returns the horizontal space available to in-flow content at
// vertical position y, narrowed by any float (on either side) whose box
// spans y (spec.md's getGeneratorRest/getGeneratorWidth intent: how much
// room is left for text once floats have claimed their columns).
func (m *Manager) AvailWidth(y int) int {
	avail := m.containerWidth
	for _, b := range m.boxes {
		if b.Kind != KindFloat {
			continue
		}
		if y < b.Y || y >= b.Y+b.Height {
			continue
		}
		avail -= b.Width
	}
	if avail < 0 {
		avail = 0
	}
	return avail
}

// Boxes returns every box placed so far, in placement order.
func (m *Manager) Boxes() []Box { return m.boxes }
