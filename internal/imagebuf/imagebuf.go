// Package imagebuf implements the root/scaled image buffer tree (spec.md
// §4.K): a decoded image keeps one full-resolution root, and any number of
// scaled children computed lazily, row by row, as source data arrives.
//
// The row-scaling algorithm (scaledY/backscaledY, the upscale/downscale
// split, gamma-correct averaging, the copiedRows bitset guarding against
// rescaling) is grounded directly on
// original_source/dw/fltkimgbuf.cc's FltkImgbuf::scaleRowBeautiful/
// scaleBuffer and the ref/unref destruction rules in FltkImgbuf::unref/
// detachScaledBuf. Pixel storage itself is built on image.RGBA and
// image/color the way _examples/WALL-E-go-httpbin/handlers.go builds
// synthetic images with image.NewRGBA/image.NewPaletted and color.RGBA —
// the only image-producing code anywhere in the corpus. No third-party
// image library is grounded anywhere in the pack, so this package stays on
// the standard library.
package imagebuf

import (
	"image"
	"image/color"
	"math"
)

// Root owns the full-resolution decoded pixels and the list of scaled
// buffers derived from it. Rows are appended incrementally as the decoder
// (internal/decode) produces them; each append lazily advances every live
// child (FltkImgbuf::copyRow).
type Root struct {
	img        *image.RGBA
	copiedRows []bool // which source rows have arrived

	refCount int
	dead     bool // Unref'd to 0 while scaled children remain live

	children []*Scaled
}

// NewRoot allocates an empty root buffer of the given pixel dimensions.
func NewRoot(width, height int) *Root {
	return &Root{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		copiedRows: make([]bool, height),
	}
}

// Bounds reports the root's pixel dimensions.
func (r *Root) Bounds() (width, height int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Ref increments the root's reference count (FltkImgbuf::ref).
func (r *Root) Ref() { r.refCount++ }

// Unref decrements the root's reference count (FltkImgbuf::unref). Per
// spec.md §4.K: unreffing a root with live children only marks it dead,
// deferring the actual free to the last child's destruction; a root with
// no children frees immediately.
func (r *Root) Unref() {
	r.refCount--
	if r.refCount > 0 {
		return
	}
	if len(r.children) == 0 {
		r.free()
		return
	}
	r.dead = true
}

func (r *Root) free() {
	r.img = nil
	r.children = nil
}

// Freed reports whether the root has released its pixel storage.
func (r *Root) Freed() bool { return r.img == nil }

// SetRowRGBA writes one fully decoded source row (row in [0, height)),
// flags it in copiedRows, and advances every live scaled child
// (FltkImgbuf::copyRow).
func (r *Root) SetRowRGBA(row int, pixels []color.RGBA) {
	if row < 0 || row >= len(r.copiedRows) {
		return
	}
	b := r.img.Bounds()
	for x := 0; x < b.Dx() && x < len(pixels); x++ {
		r.img.SetRGBA(x, row, pixels[x])
	}
	r.copiedRows[row] = true
	for _, c := range r.children {
		c.scaleRow(row)
	}
}

// At returns the root's pixel at (x, y).
func (r *Root) At(x, y int) color.RGBA { return r.img.RGBAAt(x, y) }

// NewScaled creates a scaled buffer of the given target dimensions,
// weakly referencing root (spec.md: "scaled children hold a weak back
// reference to the root" — Go's GC makes an explicit weak-pointer type
// unnecessary here: Scaled keeps a plain pointer and never calls Ref on
// it, so it does not extend root's lifetime). Gamma, when > 0, enables
// sRGB-style gamma-correct averaging (source pixels are raised to gamma,
// averaged, then returned to linear via 1/gamma, per scaleBuffer's
// gammaMap1/gammaMap2); gamma == 0 averages channel values directly.
// Any source rows already present in root are scaled in immediately.
func (r *Root) NewScaled(width, height int, gamma float64) *Scaled {
	srcW, srcH := r.Bounds()
	s := &Scaled{
		root:       r,
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		copiedRows: make([]bool, height),
		srcW:       srcW,
		srcH:       srcH,
		gamma:      gamma,
	}
	r.children = append(r.children, s)
	for row := 0; row < srcH; row++ {
		if r.copiedRows[row] {
			s.scaleRow(row)
		}
	}
	return s
}

// Scaled is one scaled view of a Root, computed by averaging source
// rectangles into each destination pixel.
type Scaled struct {
	root *Root
	img  *image.RGBA

	// copiedRows[y] is set once destination row y has been fully computed
	// from the source rows it depends on (spec.md's copiedRows bitset:
	// "prevents redundant work").
	copiedRows []bool

	srcW, srcH int
	gamma      float64

	refCount int
	freed    bool
}

// Bounds reports the scaled buffer's pixel dimensions.
func (s *Scaled) Bounds() (width, height int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// CopiedRows reports which destination rows have been computed so far.
func (s *Scaled) CopiedRows() []bool { return s.copiedRows }

// At returns the scaled buffer's pixel at (x, y).
func (s *Scaled) At(x, y int) color.RGBA { return s.img.RGBAAt(x, y) }

// scaledY maps a root row to the first destination row it contributes to
// (FltkImgbuf::scaledY).
func (s *Scaled) scaledY(row int) int {
	_, destH := s.Bounds()
	return row * destH / s.srcH
}

// backscaledY maps a destination row to the first root row it depends on
// (FltkImgbuf::backscaledY).
func (s *Scaled) backscaledY(destRow int) int {
	_, destH := s.Bounds()
	return destRow * s.srcH / destH
}

// scaleRow is called once per arriving root row (FltkImgbuf::scaleRowBeautiful):
// upscaling computes the newly available destination rows directly from
// that one source row; downscaling only computes a destination row once
// every root row it depends on has arrived.
func (s *Scaled) scaleRow(row int) {
	if s.freed || s.srcH == 0 {
		return
	}
	_, destH := s.Bounds()
	if destH == 0 {
		return
	}

	sr1 := s.scaledY(row)
	sr2 := s.scaledY(row + 1)
	if sr1 == sr2 && sr2 < destH {
		sr2 = sr1 + 1
	}

	if destH > s.srcH {
		// Upscaling: this one root row supplies every destination row in
		// [sr1, sr2) on its own.
		for dy := sr1; dy < sr2 && dy < destH; dy++ {
			if s.copiedRows[dy] {
				continue
			}
			s.computeRow(dy, row, row+1)
			s.copiedRows[dy] = true
		}
		return
	}

	// Downscaling (or 1:1): destination row sr1 depends on root rows
	// [backscaledY(sr1), backscaledY(sr1+1)), all of which must have
	// arrived before it can be computed.
	if sr1 >= destH || s.copiedRows[sr1] {
		return
	}
	rowStart, rowEnd := s.backscaledY(sr1), s.backscaledY(sr1+1)
	if rowEnd <= rowStart {
		rowEnd = rowStart + 1
	}
	for r := rowStart; r < rowEnd; r++ {
		if r >= len(s.root.copiedRows) || !s.root.copiedRows[r] {
			return // not all dependent root rows have arrived yet
		}
	}
	s.computeRow(sr1, rowStart, rowEnd)
	s.copiedRows[sr1] = true
}

func (s *Scaled) computeRow(dy, y0, y1 int) {
	destW, _ := s.Bounds()
	for dx := 0; dx < destW; dx++ {
		x0 := dx * s.srcW / destW
		x1 := (dx + 1) * s.srcW / destW
		if x1 <= x0 {
			x1 = x0 + 1
		}
		if x1 > s.srcW {
			x1 = s.srcW
		}
		s.img.SetRGBA(dx, dy, s.averageBlock(x0, x1, y0, y1))
	}
}

// averageBlock averages the source rectangle [x0,x1)x[y0,y1), applying
// gamma correction if configured (spec.md: "map source pixels through γ,
// average, map back through 1/γ").
func (s *Scaled) averageBlock(x0, x1, y0, y1 int) color.RGBA {
	var rSum, gSum, bSum, aSum float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			p := s.root.At(x, y)
			rSum += gammaEncode(float64(p.R)/255, s.gamma)
			gSum += gammaEncode(float64(p.G)/255, s.gamma)
			bSum += gammaEncode(float64(p.B)/255, s.gamma)
			aSum += float64(p.A) / 255 // alpha is never gamma-weighted
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	fn := float64(n)
	return color.RGBA{
		R: toByte(gammaDecode(rSum/fn, s.gamma)),
		G: toByte(gammaDecode(gSum/fn, s.gamma)),
		B: toByte(gammaDecode(bSum/fn, s.gamma)),
		A: toByte(aSum / fn),
	}
}

func gammaEncode(v, gamma float64) float64 {
	if gamma <= 0 {
		return v
	}
	return math.Pow(v, gamma)
}

func gammaDecode(v, gamma float64) float64 {
	if gamma <= 0 {
		return v
	}
	return math.Pow(v, 1/gamma)
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Ref increments the scaled buffer's reference count.
func (s *Scaled) Ref() { s.refCount++ }

// Unref decrements the scaled buffer's reference count
// (FltkImgbuf::unref). Per spec.md §4.K: reaching zero frees the buffer
// and detaches it from root; if it was the root's last child and the root
// is already dead (its own refCount was zero), the root is freed too.
func (s *Scaled) Unref() {
	s.refCount--
	if s.refCount > 0 {
		return
	}
	s.detach()
}

func (s *Scaled) detach() {
	if s.freed {
		return
	}
	s.freed = true
	s.img = nil

	r := s.root
	for i, c := range r.children {
		if c == s {
			r.children = append(r.children[:i], r.children[i+1:]...)
			break
		}
	}
	if r.dead && len(r.children) == 0 {
		r.free()
	}
}

// Freed reports whether the scaled buffer has released its pixel storage.
func (s *Scaled) Freed() bool { return s.freed }
