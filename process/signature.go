package process

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	maskExact    = 'x'
	maskWildcard = '?'
)

// Signature is a byte pattern with a per-byte mask. A mask position of
// 'x' must match exactly; any other mask byte is a wildcard.
type Signature struct {
	Bytes []byte
	Mask  string
}

func NewSignature(b []byte, mask string) (Signature, error) {
	sig := Signature{
		Bytes: b,
		Mask:  mask,
	}
	return sig, sig.validate()
}

func (o Signature) validate() error {
	if len(o.Mask) == 0 {
		return errors.Wrap(ErrInvalidSignature, "mask is empty")
	}

	if len(o.Bytes) < len(o.Mask) {
		return errors.Wrapf(ErrInvalidSignature, "mask is %d bytes long but the pattern is only %d",
			len(o.Mask), len(o.Bytes))
	}

	return nil
}

// Len is the length of the comparison window.
func (o Signature) Len() int {
	return len(o.Mask)
}

func (o Signature) String() string {
	var b strings.Builder
	for i := 0; i < len(o.Mask); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if o.Mask[i] != maskExact {
			b.WriteString("??")
			continue
		}
		b.WriteString(strings.ToUpper(hex.EncodeToString(o.Bytes[i : i+1])))
	}
	return b.String()
}

// ParseSignature parses the common text form of a signature, e.g.
// "48 8B 05 ?? ?? ?? ?? C3". Tokens are hex bytes; "?" and "??" are
// wildcards.
func ParseSignature(s string) (Signature, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Signature{}, errors.Wrap(ErrInvalidSignature, "signature is empty")
	}

	sig := Signature{
		Bytes: make([]byte, len(fields)),
	}
	mask := make([]byte, len(fields))

	for i, field := range fields {
		if field == "?" || field == "??" {
			mask[i] = maskWildcard
			continue
		}

		if len(field) != 2 {
			return Signature{}, errors.Wrapf(ErrInvalidSignature, "token %d (%q) is not a byte", i, field)
		}

		_, err := hex.Decode(sig.Bytes[i:i+1], []byte(field))
		if err != nil {
			return Signature{}, errors.Wrapf(ErrInvalidSignature, "token %d (%q) - %s", i, field, err)
		}
		mask[i] = maskExact
	}

	sig.Mask = string(mask)
	return sig, nil
}

// DataCompare reports whether data matches sign at every position mask
// marks with 'x'. It is false when data or sign is shorter than mask.
func DataCompare(data []byte, sign []byte, mask string) bool {
	if len(data) < len(mask) || len(sign) < len(mask) {
		return false
	}

	for i := 0; i < len(mask); i++ {
		if mask[i] == maskExact && data[i] != sign[i] {
			return false
		}
	}

	return true
}

// index returns the offset of the first match of sig in buf, or -1.
func (o Signature) index(buf []byte) int {
	window := len(o.Mask)
	if window == 0 || len(buf) < window {
		return -1
	}

	// With an exact first byte, jump between its occurrences.
	anchored := o.Mask[0] == maskExact
	last := len(buf) - window

	for i := 0; i <= last; i++ {
		if anchored {
			next := bytes.IndexByte(buf[i:last+1], o.Bytes[0])
			if next < 0 {
				return -1
			}
			i += next
		}

		if DataCompare(buf[i:], o.Bytes, o.Mask) {
			return i
		}
	}

	return -1
}
