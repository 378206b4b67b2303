package textflow

import "testing"

// fakeMetrics gives every character a width of 10 units and every space a
// width of 10 units, so expected widths are easy to hand-compute.
type fakeMetrics struct{}

func (fakeMetrics) TextWidth(s string) int { return len(s) * 10 }
func (fakeMetrics) SpaceWidth() int        { return 10 }

type fakeWidget struct{ w int }

func (w fakeWidget) Width() int { return w.w }

func TestAddTextSoftHyphenEndsWordWithoutAddingCharacter(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("super" + string(rune(softHyphen)) + "cali")

	if len(f.Words) != 2 {
		t.Fatalf("expected 2 words, got %d: %+v", len(f.Words), f.Words)
	}
	first := f.Words[0]
	if first.Text != "super" {
		t.Fatalf("expected first word %q, got %q", "super", first.Text)
	}
	if !first.CanBreakAfter || first.Penalty != PenaltyHyphen || !first.Hyphenatable {
		t.Fatalf("expected first word to carry a breakable hyphen penalty, got %+v", first)
	}
	if !first.DrawHyphenAfter {
		t.Fatal("expected soft hyphen to request a drawn hyphen glyph")
	}
	if f.Words[1].Text != "cali" {
		t.Fatalf("expected second word %q, got %q", "cali", f.Words[1].Text)
	}
}

func TestAddTextHyphenMinusStaysInWordAndBreaksAfter(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("well-known")

	if len(f.Words) != 2 {
		t.Fatalf("expected 2 words, got %d: %+v", len(f.Words), f.Words)
	}
	first := f.Words[0]
	if first.Text != "well-" {
		t.Fatalf("expected the hyphen to stay attached to the first word, got %q", first.Text)
	}
	if !first.CanBreakAfter || first.Penalty != PenaltyHyphen {
		t.Fatalf("expected a breakable hyphen penalty after %q, got %+v", first.Text, first)
	}
	if first.DrawHyphenAfter {
		t.Fatal("a literal hyphen-minus is already visible; it should not draw an extra one")
	}
	if f.Words[1].Text != "known" {
		t.Fatalf("expected second word %q, got %q", "known", f.Words[1].Text)
	}
}

func TestAddTextEmDashSplitsIntoItsOwnWord(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("a" + string(rune(emDash)) + "b")

	if len(f.Words) != 3 {
		t.Fatalf("expected 3 words, got %d: %+v", len(f.Words), f.Words)
	}
	if f.Words[0].Text != "a" || f.Words[0].Penalty != PenaltyEmDashLeft {
		t.Fatalf("unexpected first word: %+v", f.Words[0])
	}
	if f.Words[1].Text != string(rune(emDash)) || f.Words[1].Penalty != PenaltyEmDashRight {
		t.Fatalf("unexpected dash word: %+v", f.Words[1])
	}
	if !f.Words[0].CanBreakAfter || !f.Words[1].CanBreakAfter {
		t.Fatal("expected both sides of an em dash to be breakable")
	}
	if f.Words[1].Hyphenatable {
		t.Fatal("an em dash is not hyphenatable")
	}
	if f.Words[2].Text != "b" {
		t.Fatalf("unexpected trailing word: %+v", f.Words[2])
	}
}

func TestAddSpaceWidgetAndBreakOption(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("x")
	f.AddSpace()
	f.AddWidget(fakeWidget{w: 42})
	f.AddBreakOption()
	f.AddText("y")

	if len(f.Words) != 5 {
		t.Fatalf("expected 5 words, got %d: %+v", len(f.Words), f.Words)
	}
	if f.Words[1].Kind != KindSpace || f.Words[1].Width != 10 || !f.Words[1].CanBreakAfter {
		t.Fatalf("unexpected space word: %+v", f.Words[1])
	}
	if f.Words[2].Kind != KindWidget || f.Words[2].Width != 42 {
		t.Fatalf("unexpected widget word: %+v", f.Words[2])
	}
	if f.Words[3].Kind != KindBreakOption || !f.Words[3].CanBreakAfter || f.Words[3].Penalty != PenaltyNone {
		t.Fatalf("unexpected break-option word: %+v", f.Words[3])
	}
}

func TestAddBreakStartsNewParagraphOnlyWhenRequested(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("one")
	f.AddBreak(false) // plain <br>, same paragraph
	f.AddText("two")
	f.AddBreak(true) // paragraph boundary
	f.AddText("three")

	if len(f.paragraphWordStart) != 2 {
		t.Fatalf("expected 2 paragraphs, got starts=%v", f.paragraphWordStart)
	}
	// words: [one, <br>, two, <br>, three] -> second paragraph starts at
	// the word right after the paragraph-ending break.
	if f.paragraphWordStart[0] != 0 || f.paragraphWordStart[1] != 4 {
		t.Fatalf("unexpected paragraph boundaries: %v", f.paragraphWordStart)
	}
}

func TestAddAnchorResolvesToWordPosition(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("intro")
	f.AddAnchor("section-2")
	f.AddText("body")

	idx, ok := f.AnchorWordIndex("section-2")
	if !ok || idx != 1 {
		t.Fatalf("expected anchor at word 1, got idx=%d ok=%v", idx, ok)
	}
	if _, ok := f.AnchorWordIndex("missing"); ok {
		t.Fatal("expected unknown anchor to report not-found")
	}
}

func TestAddOutOfFlowRefRecordsGeneratorPosition(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("before")
	f.AddOutOfFlowRef("float-left")

	refs := f.OutOfFlowRefs()
	if len(refs) != 1 || refs[0].WordIndex != 1 || refs[0].Kind != "float-left" {
		t.Fatalf("unexpected out-of-flow refs: %+v", refs)
	}
}
