package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	dumpRowSize = 16

	// maxDumpSize caps a single db/dd/dq in bytes.
	maxDumpSize = 1 << 20
)

// dumpArgs parses "<addr> [count]" and returns the address and the
// size in bytes. count is in units of unit bytes, def if absent.
func dumpArgs(args []string, unit int, def uint64) (uintptr, uint, error) {
	addr, err := parseAddr(args[2])
	if err != nil {
		return 0, 0, err
	}

	n := def
	if len(args) > 3 && args[3] != "" {
		n, err = strconv.ParseUint(args[3], 0, 64)
		if err != nil {
			return 0, 0, err
		}
	}

	if n > maxDumpSize/uint64(unit) {
		return 0, 0, errors.Errorf("cannot dump %d units of %d bytes (at most 0x%x bytes)", n, unit, maxDumpSize)
	}
	return addr, uint(n) * uint(unit), nil
}

func (s *TypeSession) dump(args []string, unit int, def uint64) error {
	addr, size, err := dumpArgs(args, unit, def)
	if err != nil {
		return err
	}

	data, err := s.GetMemory(size, addr)
	if len(data) > 0 {
		hexdump(os.Stdout, addr, data, unit)
	}
	return err
}

func (s *TypeSession) cmdDumpByte(args []string) error {
	return s.dump(args, 1, 64)
}

func (s *TypeSession) cmdDumpDword(args []string) error {
	return s.dump(args, 4, 16)
}

func (s *TypeSession) cmdDumpQword(args []string) error {
	return s.dump(args, 8, 8)
}

// hexdump writes data in rows of 16 bytes, grouped into little endian
// words of unit bytes, followed by the printable characters.
func hexdump(w io.Writer, addr uintptr, data []byte, unit int) {
	cell := 2*unit + 1
	if unit > 1 {
		cell += 2
	}

	for i := 0; i < len(data); i += dumpRowSize {
		fmt.Fprintf(w, "%016x: ", uint64(addr)+uint64(i))

		for j := 0; j < dumpRowSize; j += unit {
			if len(data)-(i+j) < unit {
				fmt.Fprint(w, strings.Repeat(" ", cell))
				continue
			}

			word := data[i+j : i+j+unit]
			switch unit {
			case 1:
				fmt.Fprintf(w, "%02x ", word[0])
			case 4:
				fmt.Fprintf(w, "0x%08x ", binary.LittleEndian.Uint32(word))
			case 8:
				fmt.Fprintf(w, "0x%016x ", binary.LittleEndian.Uint64(word))
			}
		}

		fmt.Fprint(w, " |")
		for j := 0; j < dumpRowSize && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprint(w, "|\n")
	}
}
