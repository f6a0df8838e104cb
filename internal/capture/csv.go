package capture

import (
	"context"
	"strings"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
	"github.com/scopegrab/scopegrab/internal/trace"
)

// WaveformCSV exports the displayed data points of every active source as
// CSV, one column per source, header row first. Sources with fewer points
// leave their cells empty.
func (g *Grabber) WaveformCSV(ctx context.Context) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "waveform_csv")
	defer span.End()

	sources, err := g.inst.ActiveSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, apperrors.New(apperrors.CodeInputMismatch, "no displayed sources to export")
	}
	span.SetAttr("sources", strings.Join(sources, ","))

	if err := g.inst.PrepareWaveform(ctx); err != nil {
		return nil, err
	}

	columns := make([][]string, 0, len(sources))
	rows := 0
	for _, src := range sources {
		points, err := g.inst.WaveformPoints(ctx, src)
		if err != nil {
			return nil, err
		}
		columns = append(columns, points)
		if len(points) > rows {
			rows = len(points)
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(sources, ","))
	b.WriteByte('\n')
	for row := 0; row < rows; row++ {
		for col := range columns {
			if col > 0 {
				b.WriteByte(',')
			}
			if row < len(columns[col]) {
				b.WriteString(columns[col][row])
			}
		}
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}
