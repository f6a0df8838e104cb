package scpi

import (
	"strconv"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// TMC definite-length block: '#', one digit giving the length-field width,
// that many ASCII digits giving the payload byte count, the payload, and a
// terminating newline.

// TMCHeaderLen returns the length of the block header in buff.
func TMCHeaderLen(buff []byte) (int, error) {
	if len(buff) < 2 || buff[0] != '#' {
		return 0, apperrors.New(apperrors.CodeProtocol, "not a TMC block")
	}
	n := int(buff[1] - '0')
	if n < 1 || n > 9 {
		return 0, apperrors.Newf(apperrors.CodeProtocol, "bad TMC digit count %q", buff[1])
	}
	return 2 + n, nil
}

// TMCPayloadLen returns the advertised payload byte count.
func TMCPayloadLen(buff []byte) (int, error) {
	h, err := TMCHeaderLen(buff)
	if err != nil {
		return 0, err
	}
	if len(buff) < h {
		return 0, apperrors.New(apperrors.CodeProtocol, "truncated TMC header")
	}
	n, err := strconv.Atoi(string(buff[2:h]))
	if err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeProtocol, "bad TMC length %q", buff[2:h])
	}
	return n, nil
}

// TMCExpectedLen returns the total expected buffer length including the
// header and the trailing newline.
func TMCExpectedLen(buff []byte) (int, error) {
	h, err := TMCHeaderLen(buff)
	if err != nil {
		return 0, err
	}
	p, err := TMCPayloadLen(buff)
	if err != nil {
		return 0, err
	}
	return h + p + 1, nil
}

// TMCPayload strips the header and terminator, returning only the data.
func TMCPayload(buff []byte) ([]byte, error) {
	h, err := TMCHeaderLen(buff)
	if err != nil {
		return nil, err
	}
	p, err := TMCPayloadLen(buff)
	if err != nil {
		return nil, err
	}
	if len(buff) < h+p {
		return nil, apperrors.Newf(apperrors.CodeProtocol,
			"truncated TMC block: %d of %d payload bytes", len(buff)-h, p)
	}
	return buff[h : h+p], nil
}
