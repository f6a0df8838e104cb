package scpi

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// Identity is the parsed *IDN? reply.
type Identity struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
}

// IsDS1000Z reports whether the instrument is a Rigol DS1000Z-series scope,
// the model family the region catalog is calibrated for.
func (id Identity) IsDS1000Z() bool {
	return id.Vendor == "RIGOL TECHNOLOGIES" &&
		strings.HasPrefix(id.Model, "DS1") &&
		strings.HasSuffix(id.Model, "Z")
}

// Identify queries and parses the instrument identification string.
func (c *Client) Identify(ctx context.Context) (Identity, error) {
	reply, err := c.Query(ctx, "*IDN?")
	if err != nil {
		return Identity{}, err
	}
	return parseIdentity(reply)
}

func parseIdentity(reply string) (Identity, error) {
	fields := strings.Split(strings.TrimSpace(reply), ",")
	if len(fields) < 2 {
		// A scope with LAN remote control disabled answers with garbage
		// (Utility -> IO Setting -> RemoteIO -> LAN must be ON).
		return Identity{}, apperrors.Newf(apperrors.CodeProtocol, "unparseable *IDN? reply %q", reply)
	}
	id := Identity{Vendor: fields[0], Model: fields[1]}
	if len(fields) > 2 {
		id.Serial = fields[2]
	}
	if len(fields) > 3 {
		id.Firmware = fields[3]
	}
	return id, nil
}

// DisplayData fetches the on-screen image in the given wire format
// (PNG, BMP8 or BMP24).
func (c *Client) DisplayData(ctx context.Context, format string) ([]byte, error) {
	return c.QueryBlock(ctx, ":DISP:DATA? ON,OFF,"+format)
}

// WaveformSources lists every source the scope can export.
var WaveformSources = []string{"CHAN1", "CHAN2", "CHAN3", "CHAN4", "MATH"}

// ActiveSources returns the sources currently displayed on screen.
func (c *Client) ActiveSources(ctx context.Context) ([]string, error) {
	var active []string
	for _, src := range WaveformSources {
		reply, err := c.Query(ctx, ":"+src+":DISP?")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(reply) == "1" {
			active = append(active, src)
		}
	}
	return active, nil
}

// PrepareWaveform puts the waveform subsystem in the mode used for export.
func (c *Client) PrepareWaveform(ctx context.Context) error {
	for _, cmd := range []string{":WAV:MODE NORM", ":WAV:STAR 0", ":WAV:MODE NORM"} {
		if err := c.Send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// WaveformPoints reads the displayed data points for one source as ASCII
// values. MATH does not accept START/STOP; it always exports 0..1200.
func (c *Client) WaveformPoints(ctx context.Context, src string) ([]string, error) {
	setup := []string{":WAV:SOUR " + src, ":WAV:FORM ASC"}
	if src != "MATH" {
		setup = append(setup, ":WAV:STAR 1", ":WAV:STOP 1200")
	}
	for _, cmd := range setup {
		if err := c.Send(ctx, cmd); err != nil {
			return nil, err
		}
	}

	payload, err := c.QueryBlock(ctx, ":WAV:DATA?")
	if err != nil {
		return nil, err
	}

	raw := strings.Split(strings.TrimSpace(string(payload)), ",")
	points := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	return points, nil
}

// MemoryDepth returns the acquisition memory depth in points. When the scope
// reports AUTO, the depth is derived from sample rate and timebase across
// the 12 horizontal divisions.
func (c *Client) MemoryDepth(ctx context.Context) (int, error) {
	const hDivisions = 12

	reply, err := c.Query(ctx, ":ACQ:MDEP?")
	if err != nil {
		return 0, err
	}
	reply = strings.TrimSpace(reply)

	if reply != "AUTO" {
		depth, err := strconv.ParseFloat(reply, 64)
		if err != nil {
			return 0, apperrors.Wrapf(err, apperrors.CodeProtocol, "bad memory depth %q", reply)
		}
		return int(depth), nil
	}

	srateStr, err := c.Query(ctx, ":ACQ:SRAT?")
	if err != nil {
		return 0, err
	}
	scaleStr, err := c.Query(ctx, ":TIM:SCAL?")
	if err != nil {
		return 0, err
	}
	srate, err := strconv.ParseFloat(strings.TrimSpace(srateStr), 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeProtocol, "bad sample rate %q", srateStr)
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(scaleStr), 64)
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeProtocol, "bad timebase %q", scaleStr)
	}
	return int(hDivisions * scale * srate), nil
}
