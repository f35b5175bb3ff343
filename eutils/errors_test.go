package eutils

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorKinds(t *testing.T) {

	err := kindWrap(SOURCEUNAVAILABLE, io.ErrUnexpectedEOF, "read failed after %d bytes", 42)

	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("kind not matched")
	}
	if errors.Is(err, ErrMalformedSource) {
		t.Errorf("matched the wrong kind")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("cause not reachable")
	}
	if KindOf(err) != SOURCEUNAVAILABLE {
		t.Errorf("KindOf = %v", KindOf(err))
	}
	if err.Error() != "source unavailable: read failed after 42 bytes: unexpected EOF" {
		t.Errorf("message = %s", err.Error())
	}

	// an error that already has a kind keeps it
	again := kindWrap(SINKWRITEERROR, err, "outer")
	if KindOf(again) != SOURCEUNAVAILABLE {
		t.Errorf("rewrapped kind = %v", KindOf(again))
	}

	if kindWrap(SINKWRITEERROR, nil, "nothing") != nil {
		t.Errorf("nil cause produced an error")
	}
	if KindOf(io.EOF) != 0 {
		t.Errorf("plain error has a kind")
	}
}

func TestErrorStackTrace(t *testing.T) {

	err := kindError(MALFORMEDSOURCE, "unexpected end tag at byte %d", 17)

	plain := fmt.Sprintf("%v", err)
	if plain != "malformed source: unexpected end tag at byte 17" {
		t.Errorf("%%v = %s", plain)
	}

	verbose := fmt.Sprintf("%+v", err)
	if !strings.Contains(verbose, "TestErrorStackTrace") {
		t.Errorf("%%+v has no stack trace: %s", verbose)
	}
}
