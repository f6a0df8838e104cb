package render

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// Spec carries the annotation strings for one capture. Empty strings
// contribute no drawing operation.
type Spec struct {
	Timestamp time.Time // capture moment; drawn always
	Note      string
	Labels    [4]string // channel labels, index 0 = CH1
}

const timestampLayout = "2006-01-02 15:04:05"

// Annotation palette: white timestamp, gray note, and the instrument's
// trace-legend colors for the channel labels.
var (
	timestampColor = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	noteColor      = color.RGBA{0xB0, 0xB0, 0xB0, 0xFF}
	channelColors  = [4]color.RGBA{
		{0xF7, 0xFA, 0x52, 0xFF}, // CH1 yellow
		{0x00, 0xE1, 0xDD, 0xFF}, // CH2 cyan
		{0xDD, 0x00, 0xDD, 0xFF}, // CH3 magenta
		{0x00, 0x7F, 0xF5, 0xFF}, // CH4 blue
	}
)

// Annotate draws the timestamp and the optional note and channel labels
// onto the bitmap in place. Each string is clipped to its anchor box, so
// pixels outside the anchors are never touched. Draw order is fixed
// (timestamp, note, CH1..CH4); overlapping anchors resolve as
// last-write-wins, by draw order, with no repositioning.
func Annotate(img *image.RGBA, spec Spec, cat Catalog, fonts *FontSet) error {
	if fonts == nil || fonts.Small == nil || fonts.Large == nil {
		return apperrors.New(apperrors.CodeFontLoad, "annotation fonts not loaded")
	}
	if err := cat.CheckImage(img.Bounds()); err != nil {
		return err
	}

	ts := spec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := drawAnchor(img, cat, AnchorTimestamp, fonts.Small, timestampColor, ts.Format(timestampLayout)); err != nil {
		return err
	}

	if spec.Note != "" {
		if err := drawAnchor(img, cat, AnchorNote, fonts.Large, noteColor, spec.Note); err != nil {
			return err
		}
	}

	for i, label := range spec.Labels {
		if label == "" {
			continue
		}
		text := fmt.Sprintf("CH%d: %s", i+1, label)
		if err := drawAnchor(img, cat, ChannelAnchor(i+1), fonts.Large, channelColors[i], text); err != nil {
			return err
		}
	}
	return nil
}

func drawAnchor(img *image.RGBA, cat Catalog, name string, face font.Face, col color.RGBA, text string) error {
	region, ok := cat.Anchor(name)
	if !ok {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "catalog has no %q anchor", name)
	}

	// Drawing into the sub-image clips the glyphs to the anchor box; a
	// too-long string is cut off rather than spilling into the trace area.
	rect := region.Rect.Add(img.Bounds().Min)
	clip := img.SubImage(rect).(*image.RGBA)

	d := font.Drawer{
		Dst:  clip,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(rect.Min.X),
			Y: fixed.I(rect.Min.Y) + face.Metrics().Ascent,
		},
	}
	d.DrawString(text)
	return nil
}
