package process

import (
	"bytes"
	"unicode/utf8"
)

const (
	// nameBufferSize matches the fixed buffers the OS name queries
	// are given.
	nameBufferSize = 256

	placeholderModuleName = "<module name>"
)

// NormalizeName decodes a nul terminated name buffer, as returned by
// the OS, into a lowercase string suitable for comparison. Bytes after
// the first nul are ignored. Only ASCII letters are folded.
func NormalizeName(raw []byte) (string, error) {
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		return "", ErrNoTerminator
	}

	if !utf8.Valid(raw[:end]) {
		return "", ErrInvalidEncoding
	}

	return asciiLower(raw[:end]), nil
}

func asciiLower(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
