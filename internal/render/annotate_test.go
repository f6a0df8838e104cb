package render

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

var testStamp = time.Date(2021, 4, 14, 9, 53, 13, 0, time.UTC)

func anchorRect(t *testing.T, cat Catalog, name string) image.Rectangle {
	t.Helper()
	r, ok := cat.Anchor(name)
	if !ok {
		t.Fatalf("anchor %q missing", name)
	}
	return r.Rect
}

func TestAnnotateTimestampOnly(t *testing.T) {
	cat := DS1000Z()
	img := grayScreen()
	before := cloneImage(img)

	err := Annotate(img, Spec{Timestamp: testStamp}, cat, testFonts(t))
	if err != nil {
		t.Fatalf("Annotate = %v", err)
	}

	tsRect := anchorRect(t, cat, AnchorTimestamp)
	if p, changed := changedOutside(t, before, img, []image.Rectangle{tsRect}); changed {
		t.Errorf("pixel %v outside the timestamp anchor was modified", p)
	}
	if samePix(before, img) {
		t.Error("timestamp should have been drawn")
	}
}

func TestAnnotateFullSpec(t *testing.T) {
	cat := DS1000Z()
	img := grayScreen()
	before := cloneImage(img)

	spec := Spec{
		Timestamp: testStamp,
		Note:      "Test Capture",
		Labels:    [4]string{"probe A", "probe B", "trigger", "clock"},
	}
	if err := Annotate(img, spec, cat, testFonts(t)); err != nil {
		t.Fatalf("Annotate = %v", err)
	}

	anchors := []string{AnchorTimestamp, AnchorNote, "ch1", "ch2", "ch3", "ch4"}
	var rects []image.Rectangle
	for _, name := range anchors {
		rects = append(rects, anchorRect(t, cat, name))
	}

	// Additive within anchor boxes only.
	if p, changed := changedOutside(t, before, img, rects); changed {
		t.Errorf("pixel %v outside every anchor box was modified", p)
	}

	// And every annotation actually drew something into its own box.
	for i, rect := range rects {
		drewInside := false
		for y := rect.Min.Y; y < rect.Max.Y && !drewInside; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				if before.RGBAAt(x, y) != img.RGBAAt(x, y) {
					drewInside = true
					break
				}
			}
		}
		if !drewInside {
			t.Errorf("anchor %q: nothing drawn", anchors[i])
		}
	}
}

func TestAnnotateSkipsAbsentStrings(t *testing.T) {
	cat := DS1000Z()
	img := grayScreen()
	before := cloneImage(img)

	spec := Spec{Timestamp: testStamp, Labels: [4]string{"", "only ch2", "", ""}}
	if err := Annotate(img, spec, cat, testFonts(t)); err != nil {
		t.Fatalf("Annotate = %v", err)
	}

	for _, name := range []string{"ch1", "ch3", "ch4"} {
		rect := anchorRect(t, cat, name)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				if before.RGBAAt(x, y) != img.RGBAAt(x, y) {
					t.Fatalf("anchor %q for absent label was drawn into", name)
				}
			}
		}
	}
}

func TestAnnotateLongNoteClipped(t *testing.T) {
	cat := DS1000Z()
	img := grayScreen()
	before := cloneImage(img)

	long := "this note is far longer than the anchor box can possibly hold, repeated: " +
		"this note is far longer than the anchor box can possibly hold"
	spec := Spec{Timestamp: testStamp, Note: long}
	if err := Annotate(img, spec, cat, testFonts(t)); err != nil {
		t.Fatalf("Annotate = %v", err)
	}

	rects := []image.Rectangle{
		anchorRect(t, cat, AnchorTimestamp),
		anchorRect(t, cat, AnchorNote),
	}
	if p, changed := changedOutside(t, before, img, rects); changed {
		t.Errorf("overlong note leaked outside its anchor at %v", p)
	}
}

func TestAnnotateSizeMismatch(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	err := Annotate(img, Spec{Timestamp: testStamp}, DS1000Z(), testFonts(t))
	if !apperrors.IsCode(err, apperrors.CodeInputMismatch) {
		t.Errorf("Annotate = %v, want INPUT_MISMATCH", err)
	}
}

func TestAnnotateMissingFonts(t *testing.T) {
	img := grayScreen()
	err := Annotate(img, Spec{Timestamp: testStamp}, DS1000Z(), nil)
	if !apperrors.IsCode(err, apperrors.CodeFontLoad) {
		t.Errorf("Annotate = %v, want FONT_LOAD", err)
	}
}

func TestLoadFontsEmbedded(t *testing.T) {
	fonts, err := LoadFonts("")
	if err != nil {
		t.Fatalf("LoadFonts = %v", err)
	}
	if fonts.Small == nil || fonts.Large == nil {
		t.Error("both faces should be built")
	}
}

func TestLoadFontsMissingFile(t *testing.T) {
	_, err := LoadFonts(filepath.Join(t.TempDir(), "nope.ttf"))
	if !apperrors.IsCode(err, apperrors.CodeFontLoad) {
		t.Errorf("LoadFonts = %v, want FONT_LOAD", err)
	}
}

func TestLoadFontsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ttf")
	if err := os.WriteFile(path, []byte("definitely not a font"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFonts(path); !apperrors.IsCode(err, apperrors.CodeFontLoad) {
		t.Errorf("LoadFonts = %v, want FONT_LOAD", err)
	}
}
