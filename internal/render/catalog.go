// Package render implements the screenshot post-processing pipeline:
// decluttering of fixed on-screen chrome and annotation overlay.
package render

import (
	"fmt"
	"image"
	"image/color"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// RegionKind tags what a region is used for.
type RegionKind uint8

const (
	// KindClutter marks instrument chrome to be erased.
	KindClutter RegionKind = iota
	// KindAnchor marks a drawing target for one annotation string.
	KindAnchor
)

// Region is a named rectangle on the captured bitmap. Immutable once the
// catalog is built.
type Region struct {
	Name string
	Rect image.Rectangle
	Kind RegionKind
}

// Anchor names.
const (
	AnchorTimestamp = "timestamp"
	AnchorNote      = "note"
)

// ChannelAnchor returns the anchor name for channel n (1..4).
func ChannelAnchor(n int) string {
	return fmt.Sprintf("ch%d", n)
}

// Catalog is the static region table for one instrument model's screen
// layout. It is built once at startup and passed into the engines; a future
// model with a different layout supplies a different catalog.
type Catalog struct {
	Width, Height int
	// Background is the nominal screen background, used when the probe
	// patch cannot be sampled.
	Background color.RGBA
	// Probe is a patch inside the graticule sampled for the fill color.
	Probe   image.Rectangle
	Regions []Region
}

// Bounds returns the screen rectangle the catalog is calibrated for.
func (c Catalog) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// Clutter returns the clutter-tagged regions.
func (c Catalog) Clutter() []Region {
	var out []Region
	for _, r := range c.Regions {
		if r.Kind == KindClutter {
			out = append(out, r)
		}
	}
	return out
}

// Anchor looks up an anchor region by name.
func (c Catalog) Anchor(name string) (Region, bool) {
	for _, r := range c.Regions {
		if r.Kind == KindAnchor && r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Validate checks every region against the catalog resolution. A region
// outside the screen is a calibration defect, not a runtime condition.
func (c Catalog) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "bad catalog resolution %dx%d", c.Width, c.Height)
	}
	bounds := c.Bounds()
	for _, r := range c.Regions {
		if r.Rect.Empty() || !r.Rect.In(bounds) {
			return apperrors.Newf(apperrors.CodeRegionBounds,
				"region %q %v exceeds %dx%d", r.Name, r.Rect, c.Width, c.Height).
				WithMetadata("region", r.Name)
		}
	}
	if !c.Probe.Empty() && !c.Probe.In(bounds) {
		return apperrors.Newf(apperrors.CodeRegionBounds,
			"probe patch %v exceeds %dx%d", c.Probe, c.Width, c.Height)
	}
	return nil
}

// CheckImage verifies the bitmap matches the calibrated resolution. Drawing
// at wrong offsets silently is worse than a hard stop.
func (c Catalog) CheckImage(b image.Rectangle) error {
	if b.Dx() != c.Width || b.Dy() != c.Height {
		return apperrors.Newf(apperrors.CodeInputMismatch,
			"bitmap is %dx%d, catalog expects %dx%d", b.Dx(), b.Dy(), c.Width, c.Height)
	}
	return nil
}

// DS1000Z returns the region catalog for the Rigol DS1000Z series 800x480
// screen. Clutter rectangles were calibrated against the stock firmware UI.
func DS1000Z() Catalog {
	return Catalog{
		Width:      800,
		Height:     480,
		Background: color.RGBA{A: 0xFF}, // black
		Probe:      image.Rect(65, 42, 81, 58),
		Regions: []Region{
			// Instrument chrome.
			{Name: "logo", Rect: image.Rect(3, 8, 81, 29), Kind: KindClutter},
			{Name: "left-menu", Rect: image.Rect(0, 37, 60, 451), Kind: KindClutter},
			{Name: "right-menu", Rect: image.Rect(705, 38, 800, 437), Kind: KindClutter},
			{Name: "right-menu-tab", Rect: image.Rect(690, 39, 705, 118), Kind: KindClutter},
			{Name: "speaker-icon", Rect: image.Rect(762, 456, 800, 480), Kind: KindClutter},

			// Annotation anchors. The timestamp sits over the erased logo,
			// channel labels over each channel's legend slot in the bottom
			// status bar. None of them intrude on the graticule.
			{Name: AnchorTimestamp, Rect: image.Rect(4, 2, 168, 20), Kind: KindAnchor},
			{Name: AnchorNote, Rect: image.Rect(300, 2, 660, 22), Kind: KindAnchor},
			{Name: "ch1", Rect: image.Rect(60, 458, 210, 478), Kind: KindAnchor},
			{Name: "ch2", Rect: image.Rect(220, 458, 370, 478), Kind: KindAnchor},
			{Name: "ch3", Rect: image.Rect(380, 458, 530, 478), Kind: KindAnchor},
			{Name: "ch4", Rect: image.Rect(540, 458, 690, 478), Kind: KindAnchor},
		},
	}
}
