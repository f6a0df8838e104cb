package render

import (
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// Annotation typeface sizes in points at 72 DPI. The small face is used for
// the timestamp, the large one for the note and channel labels.
const (
	smallFontSize = 12
	largeFontSize = 16
)

// FontSet holds the two faces the annotation engine draws with.
type FontSet struct {
	Small font.Face
	Large font.Face
}

// LoadFonts builds the annotation faces. With an empty path the embedded
// Go Mono face is used; otherwise the TTF at path overrides it. Text
// annotation is a required capability, so any failure here is fatal.
func LoadFonts(path string) (*FontSet, error) {
	data := gomono.TTF
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeFontLoad, "read font %q", path)
		}
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFontLoad, "parse font")
	}

	small, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: smallFontSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFontLoad, "build small face")
	}
	large, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: largeFontSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFontLoad, "build large face")
	}

	return &FontSet{Small: small, Large: large}, nil
}
