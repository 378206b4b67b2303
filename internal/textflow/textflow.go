// Package textflow implements the text-flow engine (spec.md §4.J): the
// incremental word/line/paragraph model a textblock widget uses to lay out
// inline content, plus the badness+penalty line breaker.
//
// The dividing-character table and penalty constants are grounded on
// original_source/dw/textblock.cc's Textblock::divChars/Textblock::penalties
// (soft hyphen U+00AD, hyphen-minus, hyphen U+2010, em dash U+2014, and the
// ×100 penalty units 100/800/800/800/100/800). The line-breaking search
// itself is not: textblock.cc's actual word-wrap loop lives in a
// translation unit the retrieval pack didn't carry, so the scoring function
// below is this package's own reasonable reading of spec.md's prose
// ("badness ... a function of how far the justified spacing deviates from
// ideal") rather than a transcription — see badness's doc comment and
// DESIGN.md for the two anchor points it was built to satisfy.
//
// No third-party text-shaping or line-breaking library appears anywhere in
// the corpus (nor is one a commodity concern the way an HTTP client or a
// gzip reader is); this package is standard-library-only (unicode/utf8),
// as SPEC_FULL.md §4.J calls for.
package textflow

import "unicode/utf8"

// Metrics measures text and space widths in layout units. Real font
// metrics are outside this package's scope (spec.md §1 non-goals exclude
// font shaping); callers supply whatever measurer backs their widget tree.
type Metrics interface {
	TextWidth(s string) int
	SpaceWidth() int
}

// InlineWidget is an embedded non-text box participating in line breaking
// (spec.md's add_widget).
type InlineWidget interface {
	Width() int
}

// WordKind classifies one entry in Flow's word array.
type WordKind int

const (
	KindText WordKind = iota
	KindSpace
	KindWidget
	KindBreakOption
	KindForcedBreak
)

// PenaltyKind names why a break is possible (or required) after a word,
// driving which row of the penalty table applies.
type PenaltyKind int

const (
	PenaltyNone PenaltyKind = iota
	PenaltyHyphen
	PenaltyEmDashLeft
	PenaltyEmDashRight
	PenaltyForce // bypasses scoring entirely: a forced break.
)

// penalties holds, per kind, {first-choice, after a hyphen/dash break on
// the previous line} in ×100 units (spec.md §4.J's standard penalty
// table; original_source/dw/textblock.cc's Textblock::penalties).
var penalties = map[PenaltyKind][2]int{
	PenaltyHyphen:      {100, 800},
	PenaltyEmDashLeft:  {800, 800},
	PenaltyEmDashRight: {100, 800},
}

func penaltyFor(kind PenaltyKind, afterHyphenLine bool) int {
	row, ok := penalties[kind]
	if !ok {
		return 0
	}
	if afterHyphenLine {
		return row[1]
	}
	return row[0]
}

// Word is one entry in Flow's word array: a run of text, a space, an
// embedded widget, or a zero-width break marker.
type Word struct {
	Kind  WordKind
	Text  string // set for KindText and the rendered em-dash character
	Width int

	CanBreakAfter   bool
	Penalty         PenaltyKind
	DrawHyphenAfter bool // soft-hyphen break: draw a hyphen glyph if taken

	// Hyphenatable marks a word fragment an automatic hyphenation pass
	// (spec.md's CAN_BE_HYPHENATED word flag, original_source/dw/
	// hyphenator.cc) could still split further. No dictionary-based
	// hyphenator is implemented (see DESIGN.md); the flag is carried so
	// one can be wired in later without changing the word model.
	Hyphenatable bool
}

// Line is a contiguous range of words rendered on one output line.
type Line struct {
	FirstWord, LastWord int // inclusive
	Width               int
	EndedOnHyphenBreak  bool
}

// Paragraph tracks the running extremes spec.md §4.J names. MinWidth is
// the widest line as broken at the last BreakLines target; MaxWidth is
// the width the paragraph needs with only forced breaks, ignoring the
// target. MinWidthIntrinsic and MaxWidthIntrinsic carry the same two
// values, and AdjustmentWidth is MaxWidth minus MinWidth.
type Paragraph struct {
	FirstLine int
	LastLine  int

	MinWidth          int
	MaxWidth          int
	MinWidthIntrinsic int
	MaxWidthIntrinsic int
	AdjustmentWidth   int
}

// OutOfFlowRef anchors a float or absolute box to the word position that
// introduced it (spec.md §4.K's getGeneratorWidth/X/Y queries need to find
// this position).
type OutOfFlowRef struct {
	WordIndex int
	Kind      string
}

// Flow is one textblock's incremental word/line/paragraph state
// (spec.md §4.J).
type Flow struct {
	metrics Metrics

	Words      []Word
	Lines      []Line
	Paragraphs []Paragraph

	anchors   map[string]int // anchor name -> word index
	outOfFlow []OutOfFlowRef

	// paragraphWordStart[i] is the word index where paragraph i begins;
	// it ends where paragraph i+1 begins, or at len(Words) for the last
	// one. Built as AddBreak(true) calls arrive, consumed by BreakLines
	// once word positions have been mapped to line numbers.
	paragraphWordStart []int
	pendingText        []byte // accumulates KindText runs between dividing chars
}

// New creates an empty flow measured by m.
func New(m Metrics) *Flow {
	f := &Flow{
		metrics:            m,
		anchors:            make(map[string]int),
		paragraphWordStart: []int{0},
	}
	return f
}

// divChar describes one dividing character (spec.md §4.J's table).
type divChar struct {
	removedAtEOL bool
	leftBreak    bool
	rightBreak   bool
	hyphenatable bool
	leftPenalty  PenaltyKind
	rightPenalty PenaltyKind
}

const (
	softHyphen  = '­'
	hyphenMinus = '-'
	hyphen      = '‐'
	emDash      = '—'
)

var divChars = map[rune]divChar{
	softHyphen:  {removedAtEOL: true, leftBreak: true, hyphenatable: true, leftPenalty: PenaltyHyphen},
	hyphenMinus: {rightBreak: true, hyphenatable: true, rightPenalty: PenaltyHyphen},
	hyphen:      {rightBreak: true, hyphenatable: true, rightPenalty: PenaltyHyphen},
	emDash:      {leftBreak: true, rightBreak: true, leftPenalty: PenaltyEmDashLeft, rightPenalty: PenaltyEmDashRight},
}

// flushPendingWord closes the text accumulated in pendingText into a word,
// if any.
func (f *Flow) flushPendingWord() {
	if len(f.pendingText) == 0 {
		return
	}
	text := string(f.pendingText)
	f.pendingText = f.pendingText[:0]
	f.Words = append(f.Words, Word{
		Kind:  KindText,
		Text:  text,
		Width: f.metrics.TextWidth(text),
	})
}

// lastWord returns a pointer to the most recently pushed word, or nil.
func (f *Flow) lastWord() *Word {
	if len(f.Words) == 0 {
		return nil
	}
	return &f.Words[len(f.Words)-1]
}

// AddText scans s for dividing characters (spec.md §4.J) and appends the
// resulting words, driven entirely by the divChars table: a left break
// closes the word before the divider (so a soft hyphen, whose only break
// is to its left, ends the preceding word without itself being added); a
// right break closes the word the divider's own character was appended
// to (so a hyphen-minus, not removed at EOL, ends up inside the word it
// terminates, while an em dash — a left break followed immediately by a
// right break — lands in a single-character word of its own between the
// two neighboring words).
func (f *Flow) AddText(s string) {
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		dc, isDiv := divChars[r]
		if !isDiv {
			f.pendingText = append(f.pendingText, s[:size]...)
			s = s[size:]
			continue
		}

		if dc.leftBreak {
			f.flushPendingWord()
			if w := f.lastWord(); w != nil {
				w.CanBreakAfter = true
				w.Penalty = dc.leftPenalty
				w.Hyphenatable = dc.hyphenatable
			}
		}
		if !dc.removedAtEOL {
			f.pendingText = append(f.pendingText, s[:size]...)
		}
		if dc.rightBreak {
			f.flushPendingWord()
			if w := f.lastWord(); w != nil {
				w.CanBreakAfter = true
				w.Penalty = dc.rightPenalty
				w.Hyphenatable = dc.hyphenatable
			}
		}
		if dc.removedAtEOL {
			if w := f.lastWord(); w != nil {
				w.DrawHyphenAfter = true
			}
		}
		s = s[size:]
	}
	f.flushPendingWord()
}

// AddSpace appends an ordinary breakable space (spec.md's add_space).
func (f *Flow) AddSpace() {
	f.flushPendingWord()
	f.Words = append(f.Words, Word{
		Kind:          KindSpace,
		Width:         f.metrics.SpaceWidth(),
		CanBreakAfter: true,
		Penalty:       PenaltyNone,
	})
}

// AddWidget appends an embedded inline widget (spec.md's add_widget). The
// widget is not itself a break point; follow it with AddBreakOption if one
// is needed.
func (f *Flow) AddWidget(w InlineWidget) {
	f.flushPendingWord()
	f.Words = append(f.Words, Word{Kind: KindWidget, Width: w.Width()})
}

// AddBreakOption appends a zero-width, zero-penalty break point
// (spec.md's add_break_option) — an opportunity with no visible
// character and no preference either way.
func (f *Flow) AddBreakOption() {
	f.flushPendingWord()
	f.Words = append(f.Words, Word{Kind: KindBreakOption, CanBreakAfter: true, Penalty: PenaltyNone})
}

// AddBreak appends a forced line break (spec.md's add_break): an explicit
// <br>, or a paragraph boundary when newParagraph is true. A forced break
// bypasses badness/penalty scoring entirely.
func (f *Flow) AddBreak(newParagraph bool) {
	f.flushPendingWord()
	f.Words = append(f.Words, Word{Kind: KindForcedBreak, CanBreakAfter: true, Penalty: PenaltyForce})
	if newParagraph {
		f.paragraphWordStart = append(f.paragraphWordStart, len(f.Words))
	}
}

// AddAnchor records word index len(f.Words) under name, the position a
// fragment scroll (nav.ScrollPort.ScrollToFragment) resolves against.
// spec.md's "bitset of anchors" becomes a name->position map here: Go has
// no equivalent to a C bit-vector keyed by small sequential ids, and
// anchors are looked up by name, not iterated by position.
func (f *Flow) AddAnchor(name string) {
	f.anchors[name] = len(f.Words)
}

// AnchorWordIndex returns the word position of a named anchor.
func (f *Flow) AnchorWordIndex(name string) (int, bool) {
	idx, ok := f.anchors[name]
	return idx, ok
}

// AddOutOfFlowRef records a float/absolute box anchored at the current
// word position (spec.md §4.K).
func (f *Flow) AddOutOfFlowRef(kind string) {
	f.outOfFlow = append(f.outOfFlow, OutOfFlowRef{WordIndex: len(f.Words), Kind: kind})
}

// OutOfFlowRefs returns the recorded float/absolute box positions.
func (f *Flow) OutOfFlowRefs() []OutOfFlowRef { return f.outOfFlow }
