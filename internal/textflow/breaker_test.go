package textflow

import "testing"

func TestBadnessAtDocumentedAnchors(t *testing.T) {
	// 150% stretch -> badness 100 (ratio = target/actual = 1.5).
	if b := badness(100, 150); b < 90 || b > 110 {
		t.Fatalf("150%% stretch: expected badness near 100, got %d", b)
	}
	// 200% stretch -> badness 800.
	if b := badness(100, 200); b < 750 || b > 850 {
		t.Fatalf("200%% stretch: expected badness near 800, got %d", b)
	}
	// 67% shrink -> badness 100 (ratio = target/actual = 0.67).
	if b := badness(100, 67); b < 85 || b > 115 {
		t.Fatalf("67%% shrink: expected badness near 100, got %d", b)
	}
	if b := badness(100, 100); b != 0 {
		t.Fatalf("exact fit: expected badness 0, got %d", b)
	}
}

func TestBadnessWorsensMonotonicallyWithDeviation(t *testing.T) {
	near := badness(95, 100)
	far := badness(50, 100)
	if !(near < far) {
		t.Fatalf("expected badness to grow with deviation: near=%d far=%d", near, far)
	}
}

// buildWords directly injects words bypassing AddText, so tests can set
// exact widths and flags without fighting fakeMetrics rounding.
func buildWords(words ...Word) *Flow {
	f := New(fakeMetrics{})
	f.Words = append(f.Words, words...)
	f.paragraphWordStart = []int{0}
	return f
}

func TestBreakLinesBreaksOnlyAtBreakableWords(t *testing.T) {
	// "aa" space "bb" space "cc" space "dd", every word 20 wide, every
	// space 10 wide. Breakable points (after a space) sit at cumulative
	// widths 30, 60, 90. Target 65 should close the line at the space
	// closest to, but not over, target: width 60.
	f := buildWords(
		Word{Kind: KindText, Text: "aa", Width: 20},
		Word{Kind: KindSpace, Width: 10, CanBreakAfter: true},
		Word{Kind: KindText, Text: "bb", Width: 20},
		Word{Kind: KindSpace, Width: 10, CanBreakAfter: true},
		Word{Kind: KindText, Text: "cc", Width: 20},
		Word{Kind: KindSpace, Width: 10, CanBreakAfter: true},
		Word{Kind: KindText, Text: "dd", Width: 20},
	)
	lines := f.BreakLines(65)
	if len(lines) == 0 {
		t.Fatal("expected at least one line")
	}
	if lines[0].LastWord != 3 || lines[0].Width != 60 {
		t.Fatalf("expected first line to end at word 3 (width 60), got %+v", lines[0])
	}
}

func TestBreakLinesForcedBreakBypassesScoring(t *testing.T) {
	f := buildWords(
		Word{Kind: KindText, Text: "a", Width: 10},
		Word{Kind: KindForcedBreak, CanBreakAfter: true, Penalty: PenaltyForce},
		Word{Kind: KindText, Text: "b", Width: 10},
	)
	lines := f.BreakLines(1000) // plenty of room, forced break still applies
	if len(lines) != 2 {
		t.Fatalf("expected forced break to split into 2 lines regardless of width, got %d: %+v", len(lines), lines)
	}
	if lines[0].LastWord != 1 || lines[1].FirstWord != 2 {
		t.Fatalf("unexpected line split points: %+v", lines)
	}
}

func TestBreakLinesOverflowsWhenSingleWordExceedsTarget(t *testing.T) {
	f := buildWords(
		Word{Kind: KindText, Text: "unbreakablyLongWord", Width: 500},
	)
	lines := f.BreakLines(100)
	if len(lines) != 1 {
		t.Fatalf("expected the oversized word to still form one line, got %d", len(lines))
	}
	if lines[0].Width != 500 {
		t.Fatalf("expected overflow line width 500, got %d", lines[0].Width)
	}
}

func TestBreakLinesPrefersHyphenPenaltyEscalationAfterConsecutiveHyphenBreaks(t *testing.T) {
	// Two candidate break points at the same line: a plain space (penalty
	// 0) just short of target, and a hyphen break slightly closer to
	// target. On a fresh line the hyphen's first-choice penalty (100) is
	// low enough that the closer-to-target hyphen break wins; forcing
	// afterHyphenLine=true (passed straight to scanLine, as if the previous
	// line had ended on a hyphen) raises its penalty to 800, so scoring must still pick sensibly.
	hyphenWord := Word{Kind: KindText, Text: "wrap-", Width: 40, CanBreakAfter: true, Penalty: PenaltyHyphen}
	spaceWord := Word{Kind: KindSpace, Width: 50, CanBreakAfter: true}

	fresh := buildWords(
		Word{Kind: KindText, Text: "x", Width: 5},
		spaceWord,
		hyphenWord,
	)
	freshLine := fresh.scanLine(0, 100, false)
	if freshLine.wordIndex != 2 {
		t.Fatalf("expected the closer hyphen break to win on a fresh line, got %+v", freshLine)
	}

	afterHyphen := buildWords(
		Word{Kind: KindText, Text: "x", Width: 5},
		spaceWord,
		hyphenWord,
	)
	afterHyphenLine := afterHyphen.scanLine(0, 100, true)
	if afterHyphenLine.wordIndex != 1 {
		t.Fatalf("expected the plain space to win once the hyphen penalty escalates, got %+v", afterHyphenLine)
	}
}

func TestBreakLinesParagraphExtremes(t *testing.T) {
	f := New(fakeMetrics{})
	f.AddText("aa") // 20
	f.AddSpace()    // 10
	f.AddText("bb") // 20
	f.AddBreak(true)
	f.AddText("ccccccccccc") // 110, single unbreakable word

	lines := f.BreakLines(35)
	if len(f.Paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %+v", len(f.Paragraphs), f.Paragraphs)
	}

	p0 := f.Paragraphs[0]
	if p0.MaxWidth != 50 { // "aa" + space + "bb" laid out on one unconstrained line
		t.Fatalf("expected paragraph 0 intrinsic max width 50, got %d", p0.MaxWidth)
	}
	if p0.MinWidth > p0.MaxWidth {
		t.Fatalf("min width must not exceed intrinsic max width: %+v", p0)
	}

	p1 := f.Paragraphs[1]
	if p1.MaxWidth != 110 || p1.MinWidth != 110 {
		t.Fatalf("expected the unbreakable word to force min==max==110, got %+v", p1)
	}
	if p1.AdjustmentWidth != 0 {
		t.Fatalf("expected zero adjustment room for an unbreakable paragraph, got %d", p1.AdjustmentWidth)
	}

	if len(lines) == 0 {
		t.Fatal("expected at least one line to be produced")
	}
}
