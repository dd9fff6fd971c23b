package main

import (
	"golang.org/x/arch/x86/x86asm"
)

// intelSyntax formats inst, naming branch and rip-relative targets
// that fall inside a module.
func (s *TypeSession) intelSyntax(inst x86asm.Inst, addr uintptr) string {
	return x86asm.IntelSyntax(inst, uint64(addr), func(target uint64) (string, uint64) {
		mod, ok := s.moduleOf(uintptr(target))
		if !ok {
			return "", 0
		}
		return mod.Name, uint64(mod.Base)
	})
}
