package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestReportError_Verbatim(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = os.Stdout }()

	reportError(errors.New("bad pattern %d%s 100%"))

	out := buf.String()
	if !strings.Contains(out, "bad pattern %d%s 100%") {
		t.Fatalf("expected the error text verbatim - got %q", out)
	}
	if strings.Contains(out, "MISSING") || strings.Contains(out, "EXTRA") {
		t.Fatalf("error text was used as a format string: %q", out)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected an [ERROR] prefix - got %q", out)
	}
}
