package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"procMem/process"
)

type cmdHandler struct {
	regex *regexp.Regexp
	fn    func(*TypeSession, []string) error
}

const num = `(0[xX][0-9a-fA-F]+|0[0-7]+|[1-9][0-9]*|0)`

var compiledCmds = []cmdHandler{
	{regexp.MustCompile(`^\s*(p|print|P|PRINT)\s+` + num + `$`), (*TypeSession).cmdPrint},
	{regexp.MustCompile(`^\s*(info|INFO)\s*$`), (*TypeSession).cmdInfo},
	{regexp.MustCompile(`^\s*(reload|RELOAD)\s*$`), (*TypeSession).cmdReload},
	{regexp.MustCompile(`^\s*(modules|mods|MODULES)(?:\s+(\S+))?\s*$`), (*TypeSession).cmdModules},
	{regexp.MustCompile(`^\s*(regions|vmmap|REGIONS|VMMAP)(?:\s+` + num + `\s+` + num + `)?\s*$`), (*TypeSession).cmdRegions},
	{regexp.MustCompile(`^\s*(scan|SCAN)\s+(\S+)\s+((?:[0-9a-fA-F]{2}|\?\??)(?:\s+(?:[0-9a-fA-F]{2}|\?\??))*)\s*$`), (*TypeSession).cmdScan},
	{regexp.MustCompile(`^\s*(rel|REL)\s+` + num + `$`), (*TypeSession).cmdRel},
	{regexp.MustCompile(`^\s*(chain|CHAIN)\s+` + num + `((?:\s+` + num + `)*)\s*$`), (*TypeSession).cmdChain},
	{regexp.MustCompile(`^\s*(db|xxd)\s+` + num + `(?:\s+` + num + `)?$`), (*TypeSession).cmdDumpByte},
	{regexp.MustCompile(`^\s*(dd|xxd\s+dword)\s+` + num + `(?:\s+` + num + `)?$`), (*TypeSession).cmdDumpDword},
	{regexp.MustCompile(`^\s*(dq|xxd\s+qword)\s+` + num + `(?:\s+` + num + `)?$`), (*TypeSession).cmdDumpQword},
	{regexp.MustCompile(`^\s*(set32)\s+` + num + `\s+` + num + `$`), (*TypeSession).cmdSet32},
	{regexp.MustCompile(`^\s*(set16)\s+` + num + `\s+` + num + `$`), (*TypeSession).cmdSet16},
	{regexp.MustCompile(`^\s*(set8)\s+` + num + `\s+` + num + `$`), (*TypeSession).cmdSet8},
	{regexp.MustCompile(`^\s*(set)\s+` + num + `\s+` + num + `$`), (*TypeSession).cmdSet},
}

var errUnknownCommand = errors.New("unknown command")

func (s *TypeSession) cmdExec(req string) error {
	for _, handler := range compiledCmds {
		if m := handler.regex.FindStringSubmatch(req); m != nil {
			return handler.fn(s, m)
		}
	}
	return errUnknownCommand
}

func parseAddr(arg string) (uintptr, error) {
	v, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		return 0, err
	}
	return uintptr(v), nil
}

func (s *TypeSession) cmdPrint(args []string) error {
	val, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	fmt.Printf("HEX: %s0x%x%s DEC: %s%d%s OCT: %s%o%s BIN: %s%b%s\n",
		ColorCyan, val, ColorReset,
		ColorCyan, val, ColorReset,
		ColorCyan, val, ColorReset,
		ColorCyan, val, ColorReset)
	return nil
}

func (s *TypeSession) cmdInfo(_ []string) error {
	ptrSize, err := s.proc.PointerSize()
	if err != nil {
		return err
	}

	Printf("pid     : %d\n", s.proc.PID)
	Printf("name    : %s\n", s.proc.Name)
	Printf("pointer : %d bytes\n", ptrSize)
	Printf("modules : %d\n", len(s.mods))
	return nil
}

func (s *TypeSession) cmdReload(_ []string) error {
	err := s.Reload()
	if err != nil {
		return err
	}
	Printf("%d modules\n", len(s.mods))
	return nil
}

func (s *TypeSession) cmdModules(args []string) error {
	mods := s.mods
	if args[2] != "" {
		filter := strings.ToLower(args[2])
		mods = lo.Filter(mods, func(m process.Module, _ int) bool {
			return strings.Contains(m.Name, filter)
		})
	}

	fmt.Println("[base]               [end]              | [size]     | [name]")
	for _, m := range mods {
		fmt.Printf("%s0x%016x ~ 0x%016x%s | 0x%08x | %s%s%s\n",
			ColorCyan, m.Base, m.End(), ColorReset, m.Size, ColorGreen, m.Name, ColorReset)
	}
	return nil
}

var regionColors = map[process.RegionState]string{
	process.RegionFree:      ColorWhite,
	process.RegionReserved:  ColorYellow,
	process.RegionCommitted: ColorGreen,
}

func (s *TypeSession) cmdRegions(args []string) error {
	base, size := uintptr(0), ^uintptr(0)
	if args[2] != "" {
		var err error
		base, err = parseAddr(args[2])
		if err != nil {
			return err
		}
		size, err = parseAddr(args[3])
		if err != nil {
			return err
		}
	}

	regions, err := s.proc.Regions(base, size)
	if err != nil {
		return err
	}

	fmt.Println("[start]              [end]              | [size]             | [state]")
	for _, r := range regions {
		fmt.Printf("%s0x%016x ~ 0x%016x | 0x%016x | %-9s%s%s\n",
			regionColors[r.State], r.Base, r.End(), r.Size, r.State, ColorReset, s.addr2some(r.Base))
	}
	return nil
}

func (s *TypeSession) cmdScan(args []string) error {
	mod, err := s.module(args[2])
	if err != nil {
		return err
	}

	sig, err := process.ParseSignature(args[3])
	if err != nil {
		return err
	}

	addr, err := s.proc.FindSignatureParallel(mod.Base, uintptr(mod.Size), sig, s.opts)
	if err != nil {
		return err
	}

	Printf("%s found at 0x%016x (%s+0x%x)\n", sig.String(), addr, mod.Name, addr-mod.Base)
	return nil
}

func (s *TypeSession) cmdRel(args []string) error {
	addr, err := parseAddr(args[2])
	if err != nil {
		return err
	}

	inst, err := s.proc.DecodeInstruction(addr)
	if err != nil {
		return err
	}

	target, err := s.proc.ResolveRelative(addr)
	if err != nil {
		return err
	}

	fmt.Printf("%s0x%016x%s: %s\n", ColorCyan, addr, ColorReset, s.intelSyntax(inst, addr))
	fmt.Printf("  -> %s0x%016x%s%s\n", ColorCyan, target, ColorReset, s.addr2some(target))
	return nil
}

func (s *TypeSession) cmdChain(args []string) error {
	base, err := parseAddr(args[2])
	if err != nil {
		return err
	}

	chain := process.PointerChain{Base: base}
	for _, f := range strings.Fields(args[3]) {
		off, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return err
		}
		chain.Offsets = append(chain.Offsets, uint32(off))
	}

	addr, err := s.proc.ResolvePointerChain(chain)
	if err != nil {
		return err
	}

	Printf("0x%016x", uint64(addr))
	fmt.Println(s.addr2some(addr))
	return nil
}

func (s *TypeSession) cmdSet(args []string) error {
	return setValue[uint64](s, args, 64)
}

func (s *TypeSession) cmdSet32(args []string) error {
	return setValue[uint32](s, args, 32)
}

func (s *TypeSession) cmdSet16(args []string) error {
	return setValue[uint16](s, args, 16)
}

func (s *TypeSession) cmdSet8(args []string) error {
	return setValue[uint8](s, args, 8)
}

func setValue[T uint8 | uint16 | uint32 | uint64](s *TypeSession, args []string, bits int) error {
	addr, err := parseAddr(args[2])
	if err != nil {
		return err
	}
	val, err := strconv.ParseUint(args[3], 0, bits)
	if err != nil {
		return err
	}
	return process.Write(s.proc.Handle, addr, T(val))
}
