package outofflow

import "testing"

type fakeGenerator struct{ x, y, width int }

func (g fakeGenerator) GeneratorX() int     { return g.x }
func (g fakeGenerator) GeneratorY() int     { return g.y }
func (g fakeGenerator) GeneratorWidth() int { return g.width }

type recordingInvalidator struct{ froms []int }

func (r *recordingInvalidator) InvalidateFromY(y int) { r.froms = append(r.froms, y) }

func TestAddFloatPlacesLeftAtGeneratorPosition(t *testing.T) {
	inv := &recordingInvalidator{}
	m := NewManager(300, inv)

	box := m.AddFloat(fakeGenerator{x: 0, y: 50, width: 300}, 4, SideLeft, 80, 40)

	if box.X != 0 || box.Y != 50 {
		t.Fatalf("expected left float at (0,50), got (%d,%d)", box.X, box.Y)
	}
	if len(inv.froms) != 1 || inv.froms[0] != 50 {
		t.Fatalf("expected one invalidation from y=50, got %v", inv.froms)
	}
}

func TestAddFloatPlacesRightAtContainerEdge(t *testing.T) {
	m := NewManager(300, nil)
	box := m.AddFloat(fakeGenerator{width: 300}, 0, SideRight, 80, 40)
	if box.X != 220 {
		t.Fatalf("expected right float flush with container edge (220), got %d", box.X)
	}
}

func TestSecondFloatOnSameSideStacksBelowTheFirst(t *testing.T) {
	m := NewManager(300, nil)
	m.AddFloat(fakeGenerator{}, 0, SideLeft, 80, 40) // occupies y in [0, 40)
	second := m.AddFloat(fakeGenerator{}, 1, SideLeft, 80, 20)

	if second.Y != 40 {
		t.Fatalf("expected second same-side float to start at the first's floor (40), got %d", second.Y)
	}
	if got := m.GetClearPosition(SideLeft); got != 60 {
		t.Fatalf("expected left clear position 60 after stacking, got %d", got)
	}
	if got := m.GetClearPosition(SideRight); got != 0 {
		t.Fatalf("expected untouched right side to stay at clear position 0, got %d", got)
	}
}

func TestFloatNeverStartsAboveItsGenerator(t *testing.T) {
	m := NewManager(300, nil)
	m.AddFloat(fakeGenerator{}, 0, SideLeft, 80, 100) // floor now at 100
	below := m.AddFloat(fakeGenerator{y: 10}, 1, SideLeft, 80, 10)
	if below.Y != 100 {
		t.Fatalf("expected the floor to win over an earlier generator position, got %d", below.Y)
	}

	above := m.AddFloat(fakeGenerator{y: 500}, 2, SideLeft, 80, 10)
	if above.Y != 500 {
		t.Fatalf("expected a later generator position to win over a lower floor, got %d", above.Y)
	}
}

func TestAvailWidthNarrowsOnlyWithinAFloatsVerticalSpan(t *testing.T) {
	m := NewManager(300, nil)
	m.AddFloat(fakeGenerator{}, 0, SideLeft, 80, 40)  // spans y [0, 40)
	m.AddFloat(fakeGenerator{}, 1, SideRight, 60, 40) // each side stacks independently, so this also spans y [0, 40)

	if got := m.AvailWidth(10); got != 300-80-60 {
		t.Fatalf("expected both floats to narrow width at y=10, got %d", got)
	}
	if got := m.AvailWidth(100); got != 300 {
		t.Fatalf("expected full width once past both floats' spans, got %d", got)
	}
}

func TestAddAbsoluteDoesNotInvalidateOrStack(t *testing.T) {
	inv := &recordingInvalidator{}
	m := NewManager(300, inv)
	m.AddFloat(fakeGenerator{}, 0, SideLeft, 80, 40)

	box := m.AddAbsolute(5, 10, 10, 50, 50)
	if box.X != 10 || box.Y != 10 {
		t.Fatalf("expected absolute box at its explicit position, got (%d,%d)", box.X, box.Y)
	}
	if len(inv.froms) != 1 {
		t.Fatalf("expected the absolute box to add no further invalidation, got %v", inv.froms)
	}
	// An absolute box must not narrow AvailWidth for in-flow content.
	if got := m.AvailWidth(20); got != 300-80 {
		t.Fatalf("expected absolute box to be excluded from AvailWidth, got %d", got)
	}
}
