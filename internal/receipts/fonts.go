package receipts

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Type sizes in pixels at 72 DPI.
const (
	SizeBrand = 34
	SizeTitle = 26
	SizeBold  = 22
	SizeBody  = 20
	SizeSmall = 18
)

// Faces holds one face per type tier.
type Faces struct {
	Brand Face
	Title Face
	Bold  Face
	Body  Face
	Small Face
}

// FontSet keeps parsed fonts. Faces are created per render since opentype
// faces carry per-face buffers.
type FontSet struct {
	regular *opentype.Font
	bold    *opentype.Font
	Source  string
}

// LoadFonts tries the configured TTF files first, then the embedded Go fonts.
// When no outline font can be parsed the set falls back to a bitmap face.
func LoadFonts(regularPaths, boldPaths []string) (*FontSet, []string) {
	var warnings []string
	set := &FontSet{}

	regular, source, err := firstFont(regularPaths)
	if err != nil {
		warnings = append(warnings, err.Error())
	}
	bold, _, err := firstFont(boldPaths)
	if err != nil {
		warnings = append(warnings, err.Error())
	}

	if regular == nil {
		if regular, err = opentype.Parse(goregular.TTF); err != nil {
			warnings = append(warnings, fmt.Sprintf("embedded regular font: %v", err))
			regular = nil
		} else {
			source = "gofont"
		}
	}
	if bold == nil {
		if bold, err = opentype.Parse(gobold.TTF); err != nil {
			warnings = append(warnings, fmt.Sprintf("embedded bold font: %v", err))
			bold = regular
		}
	}

	set.regular = regular
	set.bold = bold
	set.Source = source
	if regular == nil {
		set.Source = "bitmap"
	}
	return set, warnings
}

func firstFont(paths []string) (*opentype.Font, string, error) {
	var failures []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		f, err := opentype.Parse(raw)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		return f, path, nil
	}
	if len(failures) > 0 {
		return nil, "", fmt.Errorf("font candidates unusable: %s", strings.Join(failures, "; "))
	}
	return nil, "", nil
}

// Faces builds fresh faces for one render. Tiers that cannot be built use the
// 7x13 bitmap face.
func (s *FontSet) Faces() (Faces, []string) {
	var warnings []string
	build := func(f *opentype.Font, size float64) Face {
		if s == nil || f == nil {
			return bitmapFace()
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("face %.0fpx: %v", size, err))
			return bitmapFace()
		}
		return Face{Face: face, Size: size}
	}

	var regular, bold *opentype.Font
	if s != nil {
		regular, bold = s.regular, s.bold
	}
	faces := Faces{
		Brand: build(bold, SizeBrand),
		Title: build(bold, SizeTitle),
		Bold:  build(bold, SizeBold),
		Body:  build(regular, SizeBody),
		Small: build(regular, SizeSmall),
	}
	return faces, warnings
}

// Close releases the faces' resources.
func (f Faces) Close() {
	for _, face := range []Face{f.Brand, f.Title, f.Bold, f.Body, f.Small} {
		if face.Face != nil {
			_ = face.Face.Close()
		}
	}
}

func bitmapFace() Face {
	return Face{Face: basicfont.Face7x13, Size: 13}
}
