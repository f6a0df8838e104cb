package scpi

import (
	"testing"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

func TestTMCHelpers(t *testing.T) {
	// "#9000000005" header, 5 payload bytes, newline terminator.
	block := []byte("#9000000005hello\n")

	h, err := TMCHeaderLen(block)
	if err != nil {
		t.Fatalf("TMCHeaderLen = %v", err)
	}
	if h != 11 {
		t.Errorf("header len = %d, want 11", h)
	}

	p, err := TMCPayloadLen(block)
	if err != nil {
		t.Fatalf("TMCPayloadLen = %v", err)
	}
	if p != 5 {
		t.Errorf("payload len = %d, want 5", p)
	}

	total, err := TMCExpectedLen(block)
	if err != nil {
		t.Fatalf("TMCExpectedLen = %v", err)
	}
	if total != len(block) {
		t.Errorf("expected len = %d, want %d", total, len(block))
	}

	payload, err := TMCPayload(block)
	if err != nil {
		t.Fatalf("TMCPayload = %v", err)
	}
	if string(payload) != "hello" {
		t.Errorf("payload = %q, want hello", payload)
	}
}

func TestTMCShortLengthField(t *testing.T) {
	block := []byte("#16foobar\n")

	payload, err := TMCPayload(block)
	if err != nil {
		t.Fatalf("TMCPayload = %v", err)
	}
	if string(payload) != "foobar" {
		t.Errorf("payload = %q, want foobar", payload)
	}
}

func TestTMCMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("#"),
		[]byte("no block here"),
		[]byte("#x123"),
		[]byte("#0"),
		[]byte("#3ab5xxx"),   // non-numeric length field
		[]byte("#9000000099"), // truncated header/payload
	}
	for _, buff := range cases {
		if _, err := TMCPayload(buff); !apperrors.IsCode(err, apperrors.CodeProtocol) {
			t.Errorf("TMCPayload(%q) err = %v, want PROTOCOL", buff, err)
		}
	}
}
