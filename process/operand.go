package process

import (
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

const maxInstructionLen = 15

// ResolveRelative decodes the x86 instruction at addr and returns the
// absolute address its relative operand refers to: the target of a
// RIP-relative memory operand (e.g. "mov rax, [rip+disp]") or of a
// relative branch. This turns a signature hit on an instruction into
// the address of the data or code it uses.
func (h *Handle) ResolveRelative(addr uintptr) (uintptr, error) {
	inst, err := h.DecodeInstruction(addr)
	if err != nil {
		return 0, err
	}

	return relativeTarget(inst, addr)
}

// DecodeInstruction decodes one instruction at addr, in 32 or 64-bit
// mode depending on the target's pointer size.
func (h *Handle) DecodeInstruction(addr uintptr) (x86asm.Inst, error) {
	var inst x86asm.Inst
	err := h.do(func(t Target) error {
		code := make([]byte, maxInstructionLen)
		n, err := t.ReadMemory(addr, code)
		if n == 0 {
			if err == nil {
				err = ErrShortRead
			}
			return errors.Wrapf(err, "failed to read instruction at 0x%x", addr)
		}

		inst, err = x86asm.Decode(code[:n], t.PointerSize()*8)
		if err != nil {
			return errors.Wrapf(err, "failed to decode instruction at 0x%x", addr)
		}
		return nil
	})
	return inst, err
}

func relativeTarget(inst x86asm.Inst, addr uintptr) (uintptr, error) {
	next := addr + uintptr(inst.Len)

	for _, arg := range inst.Args {
		switch a := arg.(type) {
		case nil:
			return 0, errors.Wrapf(ErrNoRelativeOperand, "%s", x86asm.IntelSyntax(inst, uint64(addr), nil))
		case x86asm.Mem:
			if a.Base == x86asm.RIP {
				return next + uintptr(a.Disp), nil
			}
		case x86asm.Rel:
			return next + uintptr(int64(a)), nil
		}
	}

	return 0, errors.Wrapf(ErrNoRelativeOperand, "%s", x86asm.IntelSyntax(inst, uint64(addr), nil))
}
