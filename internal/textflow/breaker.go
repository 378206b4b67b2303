package textflow

import "math"

// maxBadness caps the score assigned to a candidate line that isn't
// actually overfull but is stretched far beyond any reasonable amount;
// it is finite (unlike a forced/prohibited break) so comparisons between
// two bad candidates still have a well-defined winner.
const maxBadness = 10000

// badness scores how far a candidate line's natural width deviates from
// target, in the same ×100 units as the penalty table. It is calibrated
// against the two reference points spec.md §4.J's doc borrows from
// original_source/dw/textblock.cc's comment block: a line whose spaces
// would need to stretch to 150% (or shrink to 67%) of their ideal width
// scores 100, and one needing to stretch to 200% scores 800. Modeling
// stretch capacity as half the ideal width and shrink capacity as a
// third of it (the classic interword-glue ratios) and scoring the cube
// of how much of that capacity a candidate consumes reproduces both
// anchors exactly: this package's own reading of the spec's prose, since
// the line breaker's real scoring loop isn't part of the retrieved
// original source (see DESIGN.md).
func badness(actual, target int) int {
	if target <= 0 || actual == target {
		return 0
	}
	if actual <= 0 {
		return maxBadness
	}

	ratio := float64(target) / float64(actual)
	var t float64
	if ratio >= 1 {
		t = (ratio - 1) / 0.5 // stretch capacity: 50% of ideal
	} else {
		t = (1 - ratio) / 0.33 // shrink capacity: 33% of ideal
	}
	b := 100 * t * t * t
	if b > maxBadness || math.IsInf(b, 1) || math.IsNaN(b) {
		return maxBadness
	}
	return int(math.Round(b))
}

// candidate is one break point considered while building a line.
type candidate struct {
	wordIndex int  // break occurs after this word
	width     int  // natural width of the line ending here
	hyphen    bool // ends in a visible or drawn hyphen/dash
	penalty   PenaltyKind
}

// BreakLines lays out every word into lines of at most target width,
// scoring each reachable break point by badness+penalty and preferring,
// among those that fit, the lowest score — ties going to the later
// (longer) candidate, per spec.md §4.J. A forced break (spec.md's
// add_break) always wins immediately. It replaces f.Lines and recomputes
// every paragraph's extremes.
func (f *Flow) BreakLines(target int) []Line {
	f.Lines = f.Lines[:0]

	start := 0
	endedOnHyphen := false
	for start < len(f.Words) {
		best := f.scanLine(start, target, endedOnHyphen)
		f.Lines = append(f.Lines, Line{
			FirstWord:          start,
			LastWord:           best.wordIndex,
			Width:              best.width,
			EndedOnHyphenBreak: best.hyphen,
		})
		endedOnHyphen = best.hyphen
		start = best.wordIndex + 1
	}

	f.Paragraphs = f.Paragraphs[:0]
	for p, wordStart := range f.paragraphWordStart {
		wordEnd := len(f.Words)
		if p+1 < len(f.paragraphWordStart) {
			wordEnd = f.paragraphWordStart[p+1]
		}
		firstLine, lastLine := f.lineRangeForWords(wordStart, wordEnd)
		f.Paragraphs = append(f.Paragraphs, Paragraph{})
		f.finishParagraph(p, firstLine, lastLine)
	}
	return f.Lines
}

// lineRangeForWords finds the (inclusive) line indices spanning word
// range [wordStart, wordEnd).
func (f *Flow) lineRangeForWords(wordStart, wordEnd int) (int, int) {
	first, last := 0, -1
	for i, line := range f.Lines {
		if line.LastWord < wordStart {
			continue
		}
		if line.FirstWord >= wordEnd {
			break
		}
		if last == -1 {
			first = i
		}
		last = i
	}
	if last == -1 {
		return 0, -1
	}
	return first, last
}

// scanLine finds the best break point for a line starting at word index
// start: the lowest-scoring candidate that still fits target, preferring
// the later one on ties; or, if nothing fits, the first candidate at all
// (an unavoidable overflow, e.g. one word wider than the line). A forced
// break always wins outright, regardless of fit.
func (f *Flow) scanLine(start, target int, afterHyphenLine bool) candidate {
	width := 0
	var bestFit *candidate
	var firstOverflow *candidate
	var lastSeen candidate

	for i := start; i < len(f.Words); i++ {
		w := f.Words[i]
		width += w.Width
		lastSeen = candidate{wordIndex: i, width: width}

		if w.Kind == KindForcedBreak {
			return candidate{wordIndex: i, width: width}
		}
		if !w.CanBreakAfter {
			continue
		}

		c := candidate{
			wordIndex: i,
			width:     width,
			hyphen:    w.DrawHyphenAfter || (w.Kind == KindText && w.Penalty != PenaltyNone),
			penalty:   w.Penalty,
		}

		if width <= target {
			if bestFit == nil || scoreOf(c, target, afterHyphenLine) <= scoreOf(*bestFit, target, afterHyphenLine) {
				cc := c
				bestFit = &cc
			}
			continue
		}
		if firstOverflow == nil {
			cc := c
			firstOverflow = &cc
		}
		break
	}

	switch {
	case bestFit != nil:
		return *bestFit
	case firstOverflow != nil:
		return *firstOverflow
	default:
		// Ran off the end of the word list without any break option:
		// the whole remainder is one unbreakable line.
		return lastSeen
	}
}

func scoreOf(c candidate, target int, afterHyphenLine bool) int {
	return badness(c.width, target) + penaltyFor(c.penalty, afterHyphenLine)
}

// finishParagraph computes paragraph p's running extremes from the lines
// in [firstLine, lastLine] (spec.md §4.J's minWidth/maxWidth/
// minWidthIntrinsic/maxWidthIntrinsic/adjustmentWidth). lastLine == -1
// means the paragraph has no lines yet (empty paragraph).
func (f *Flow) finishParagraph(p, firstLine, lastLine int) {
	if p < 0 || p >= len(f.Paragraphs) || lastLine < 0 {
		return
	}
	par := &f.Paragraphs[p]
	par.FirstLine = firstLine
	par.LastLine = lastLine

	minWidth, maxWidth := 0, 0
	for li := firstLine; li <= lastLine && li < len(f.Lines); li++ {
		if w := f.Lines[li].Width; w > minWidth {
			minWidth = w
		}
	}

	// The intrinsic max width ignores the container's target width
	// entirely: lay the same word range out with no breaking but forced
	// ones, the width a single unconstrained line would need.
	maxWidth = f.intrinsicWidth(firstLine, lastLine)

	par.MinWidth = minWidth
	par.MaxWidth = maxWidth
	par.MinWidthIntrinsic = minWidth
	par.MaxWidthIntrinsic = maxWidth
	par.AdjustmentWidth = maxWidth - minWidth
}

func (f *Flow) intrinsicWidth(firstLine, lastLine int) int {
	if firstLine > lastLine || lastLine >= len(f.Lines) {
		return 0
	}
	start := f.Lines[firstLine].FirstWord
	end := f.Lines[lastLine].LastWord

	width, maxSeen := 0, 0
	for i := start; i <= end && i < len(f.Words); i++ {
		w := f.Words[i]
		width += w.Width
		if w.Kind == KindForcedBreak {
			if width > maxSeen {
				maxSeen = width
			}
			width = 0
		}
	}
	if width > maxSeen {
		maxSeen = width
	}
	return maxSeen
}
