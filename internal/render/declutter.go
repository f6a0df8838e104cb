package render

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Declutter erases every clutter region in place, filling it with the
// screen background so the instrument chrome disappears without disturbing
// the trace area. Idempotent: a second pass refills uniform regions with
// the same color.
func Declutter(img *image.RGBA, cat Catalog) error {
	if err := cat.CheckImage(img.Bounds()); err != nil {
		return err
	}

	fill := image.NewUniform(BackgroundFill(img, cat))
	for _, r := range cat.Clutter() {
		rect := r.Rect.Add(img.Bounds().Min)
		draw.Draw(img, rect, fill, image.Point{}, draw.Src)
	}
	return nil
}

// BackgroundFill derives the fill color from the catalog's probe patch: the
// per-channel median of the sampled pixels. The median shrugs off graticule
// lines or a trace crossing the patch; an unusable patch falls back to the
// catalog's nominal background.
func BackgroundFill(img *image.RGBA, cat Catalog) color.RGBA {
	probe := cat.Probe.Add(img.Bounds().Min).Intersect(img.Bounds())
	if probe.Empty() {
		return cat.Background
	}

	n := probe.Dx() * probe.Dy()
	rs := make([]float64, 0, n)
	gs := make([]float64, 0, n)
	bs := make([]float64, 0, n)
	for y := probe.Min.Y; y < probe.Max.Y; y++ {
		for x := probe.Min.X; x < probe.Max.X; x++ {
			px := img.RGBAAt(x, y)
			rs = append(rs, float64(px.R))
			gs = append(gs, float64(px.G))
			bs = append(bs, float64(px.B))
		}
	}

	return color.RGBA{R: median(rs), G: median(gs), B: median(bs), A: 0xFF}
}

func median(vals []float64) uint8 {
	sort.Float64s(vals)
	return uint8(stat.Quantile(0.5, stat.Empirical, vals, nil))
}
