package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

// Shared fixtures for the render tests.

var testGray = color.RGBA{0x50, 0x50, 0x50, 0xFF}

// grayScreen builds an 800x480 bitmap with a solid gray background.
func grayScreen() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 800, 480))
	draw.Draw(img, img.Bounds(), image.NewUniform(testGray), image.Point{}, draw.Src)
	return img
}

// clutteredScreen is a gray screen with red "chrome" painted into every
// clutter region, so decluttering has something visible to erase.
func clutteredScreen(t *testing.T, cat Catalog) *image.RGBA {
	t.Helper()
	img := grayScreen()
	red := image.NewUniform(color.RGBA{0xFF, 0, 0, 0xFF})
	for _, r := range cat.Clutter() {
		draw.Draw(img, r.Rect, red, image.Point{}, draw.Src)
	}
	return img
}

func cloneImage(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

func samePix(a, b *image.RGBA) bool {
	if len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

func inAny(p image.Point, rects []image.Rectangle) bool {
	for _, r := range rects {
		if p.In(r) {
			return true
		}
	}
	return false
}

// changedOutside reports the first pixel that differs between before and
// after while lying outside all the given rectangles.
func changedOutside(t *testing.T, before, after *image.RGBA, allowed []image.Rectangle) (image.Point, bool) {
	t.Helper()
	b := before.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if inAny(p, allowed) {
				continue
			}
			if before.RGBAAt(x, y) != after.RGBAAt(x, y) {
				return p, true
			}
		}
	}
	return image.Point{}, false
}

func testFonts(t *testing.T) *FontSet {
	t.Helper()
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts = %v", err)
	}
	return fonts
}
