// Package scpi speaks SCPI over a raw TCP socket, the LXI transport exposed
// by Rigol DS1000Z-series oscilloscopes on port 5555.
package scpi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

const (
	// DefaultPort is the instrument's SCPI-over-TCP port.
	DefaultPort = 5555

	// readyMaxAttempts bounds the *OPC? handshake loop. The instrument
	// answers "1" once all pending operations have completed.
	readyMaxAttempts = 10
)

// Client owns a single instrument connection. Not safe for concurrent use;
// callers serialize captures (one capture is processed fully before the next).
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration // per-response wait
}

// Dial connects to the instrument at addr ("host:port").
func Dial(ctx context.Context, addr string, connectTimeout, commandTimeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeUnavailable, "dial %s", addr)
	}
	return &Client{
		conn:    conn,
		r:       bufio.NewReaderSize(conn, 64<<10),
		timeout: commandTimeout,
	}, nil
}

// Close closes the instrument connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send issues a command that produces no reply (":WAV:MODE NORM" and friends).
func (c *Client) Send(ctx context.Context, cmd string) error {
	if err := c.waitReady(ctx); err != nil {
		return err
	}
	return c.write(cmd)
}

// Query issues a command and returns its single-line reply with the
// terminating newline stripped.
func (c *Client) Query(ctx context.Context, cmd string) (string, error) {
	if err := c.waitReady(ctx); err != nil {
		return "", err
	}
	if err := c.write(cmd); err != nil {
		return "", err
	}
	line, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// QueryBlock issues a command whose reply is a TMC definite-length block
// ("#<n><len><payload>\n") and returns the payload. Short reads are topped
// up until the advertised byte count arrives, as transfers of a full screen
// routinely straddle several TCP segments.
func (c *Client) QueryBlock(ctx context.Context, cmd string) ([]byte, error) {
	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}
	if err := c.write(cmd); err != nil {
		return nil, err
	}

	header := make([]byte, 2)
	if err := c.readFull(ctx, header); err != nil {
		return nil, err
	}
	if header[0] != '#' {
		return nil, apperrors.Newf(apperrors.CodeProtocol, "bad TMC header: got %q, want '#'", header[0])
	}
	nDigits := int(header[1] - '0')
	if nDigits < 1 || nDigits > 9 {
		return nil, apperrors.Newf(apperrors.CodeProtocol, "bad TMC digit count %q", header[1])
	}

	digits := make([]byte, nDigits)
	if err := c.readFull(ctx, digits); err != nil {
		return nil, err
	}
	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeProtocol, "bad TMC length %q", digits)
	}

	payload := make([]byte, length)
	if err := c.readFull(ctx, payload); err != nil {
		return nil, err
	}

	// Trailing newline terminator; tolerate its absence.
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, _ = c.r.ReadByte()

	return payload, nil
}

// waitReady gates every command on the instrument reporting pending
// operations complete. Sending while the scope is busy drops bytes.
func (c *Client) waitReady(ctx context.Context) error {
	for attempt := 0; attempt < readyMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.write("*OPC?"); err != nil {
			return err
		}
		line, err := c.readLine(ctx)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeTimeout) {
				continue
			}
			return err
		}
		if strings.TrimSpace(line) == "1" {
			return nil
		}
		slog.Debug("instrument busy", "opc", strings.TrimSpace(line))
	}
	return apperrors.New(apperrors.CodeTimeout, "instrument did not report ready")
}

func (c *Client) write(cmd string) error {
	slog.Debug("send SCPI", "cmd", cmd)
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeUnavailable, "write %q", cmd)
	}
	return nil
}

func (c *Client) readLine(ctx context.Context) (string, error) {
	c.applyDeadline(ctx)
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", c.readErr(err)
	}
	return line, nil
}

// readFull fills buf, extending the deadline whenever bytes keep arriving.
func (c *Client) readFull(ctx context.Context, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.applyDeadline(ctx)
		n, err := c.r.Read(buf[read:])
		read += n
		if err != nil {
			if isTimeout(err) && n > 0 {
				continue // still making progress
			}
			return apperrors.Wrap(c.readErr(err), apperrors.CodeProtocol,
				fmt.Sprintf("short block read: %d of %d bytes", read, len(buf)))
		}
	}
	return nil
}

func (c *Client) applyDeadline(ctx context.Context) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
}

func (c *Client) readErr(err error) error {
	if isTimeout(err) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, "instrument did not answer in time")
	}
	return apperrors.Wrap(err, apperrors.CodeUnavailable, "connection lost")
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
