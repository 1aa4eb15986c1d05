package receipts

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Face is a font face together with its nominal pixel size.
type Face struct {
	Face font.Face
	Size float64
}

// Size is a measured text extent in whole pixels.
type Size struct {
	W int
	H int
}

// MeasureStage is one way of measuring text. A stage declines by returning
// ok=false; a panicking stage is treated as declining.
type MeasureStage interface {
	Name() string
	Measure(text string, face Face) (Size, bool)
}

// MeasureChain tries its stages in order and falls back to a nominal
// approximation that never fails.
type MeasureChain struct {
	stages []MeasureStage
}

// DefaultMeasureChain orders stages from most to least precise.
func DefaultMeasureChain() *MeasureChain {
	return NewMeasureChain(InkBounds{}, ContextAdvance{}, FaceAdvance{}, GlyphSum{})
}

func NewMeasureChain(stages ...MeasureStage) *MeasureChain {
	return &MeasureChain{stages: stages}
}

// Measure returns the first answer a stage gives, and the stage's name.
func (c *MeasureChain) Measure(text string, face Face) (Size, string) {
	if c != nil {
		for _, stage := range c.stages {
			if size, ok := tryStage(stage, text, face); ok {
				return size, stage.Name()
			}
		}
	}
	return Approximate(text, face), ApproximateStage
}

// Width is Measure without the stage name.
func (c *MeasureChain) Width(text string, face Face) int {
	size, _ := c.Measure(text, face)
	return size.W
}

// Height is Measure without the stage name.
func (c *MeasureChain) Height(text string, face Face) int {
	size, _ := c.Measure(text, face)
	return size.H
}

func tryStage(stage MeasureStage, text string, face Face) (size Size, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			size, ok = Size{}, false
		}
	}()
	size, ok = stage.Measure(text, face)
	if ok && (size.W < 0 || size.H < 0) {
		return Size{}, false
	}
	return size, ok
}

// ApproximateStage names the terminal fallback.
const ApproximateStage = "approximate"

// Approximate assumes glyphs 0.6 of the nominal size wide and lines 1.2 tall.
func Approximate(text string, face Face) Size {
	size := face.Size
	if size <= 0 {
		size = 12
	}
	n := utf8.RuneCountInString(text)
	return Size{
		W: int(float64(n) * size * 0.6),
		H: int(size * 1.2),
	}
}

// InkBounds measures the drawn pixels of the string.
type InkBounds struct{}

func (InkBounds) Name() string { return "ink_bounds" }

func (InkBounds) Measure(text string, face Face) (Size, bool) {
	if face.Face == nil {
		return Size{}, false
	}
	bounds, _ := font.BoundString(face.Face, text)
	return Size{
		W: (bounds.Max.X - bounds.Min.X).Ceil(),
		H: (bounds.Max.Y - bounds.Min.Y).Ceil(),
	}, true
}

// ContextAdvance measures with a drawing context, which reports the advance
// width and the face's line height.
type ContextAdvance struct{}

func (ContextAdvance) Name() string { return "context_advance" }

func (ContextAdvance) Measure(text string, face Face) (Size, bool) {
	if face.Face == nil {
		return Size{}, false
	}
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face.Face)
	w, h := dc.MeasureString(text)
	return Size{W: int(math.Ceil(w)), H: int(math.Ceil(h))}, true
}

// FaceAdvance uses the face's own advance and metrics.
type FaceAdvance struct{}

func (FaceAdvance) Name() string { return "face_advance" }

func (FaceAdvance) Measure(text string, face Face) (Size, bool) {
	if face.Face == nil {
		return Size{}, false
	}
	w := font.MeasureString(face.Face, text)
	return Size{W: w.Ceil(), H: face.Face.Metrics().Height.Ceil()}, true
}

// GlyphSum adds glyph advances one rune at a time and declines when a glyph
// is missing from the face.
type GlyphSum struct{}

func (GlyphSum) Name() string { return "glyph_sum" }

func (GlyphSum) Measure(text string, face Face) (Size, bool) {
	if face.Face == nil {
		return Size{}, false
	}
	var total fixed.Int26_6
	for _, r := range text {
		adv, ok := face.Face.GlyphAdvance(r)
		if !ok {
			return Size{}, false
		}
		total += adv
	}
	return Size{W: total.Ceil(), H: int(math.Ceil(face.Size * 1.2))}, true
}

// stageFunc adapts a function to MeasureStage.
type stageFunc struct {
	name string
	fn   func(text string, face Face) (Size, bool)
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Measure(text string, face Face) (Size, bool) {
	return s.fn(text, face)
}

// StageFunc wraps fn as a named stage.
func StageFunc(name string, fn func(text string, face Face) (Size, bool)) MeasureStage {
	if fn == nil {
		panic(fmt.Sprintf("receipts: nil measure func for stage %s", name))
	}
	return stageFunc{name: name, fn: fn}
}
