package process

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrProcessNotFound   = errors.New("process not found")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrModuleNotFound    = errors.New("module not found")

	// ErrAccessDenied is returned when the caller lacks the rights to
	// open the target, e.g. a protected or foreign-user process.
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("no such process")

	ErrNoTerminator    = errors.New("no nul byte was present")
	ErrInvalidEncoding = errors.New("name is not valid utf-8")

	// ErrIntegerOverflow is returned when a count, size or address
	// cannot be represented in the width the OS call requires.
	ErrIntegerOverflow = errors.New("integer overflow")

	// ErrEmptyInput also matches ErrProcessNotFound when it comes
	// from the locator.
	ErrEmptyInput = errors.Wrap(ErrProcessNotFound, "empty process name")

	ErrHandleClosed        = errors.New("handle is closed")
	ErrUnsupportedType     = errors.New("type cannot be copied into foreign memory")
	ErrShortRead           = errors.New("short read")
	ErrShortWrite          = errors.New("short write")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrNoRelativeOperand   = errors.New("instruction has no relative operand")
	ErrUnsupportedPlatform = errors.New("platform is not supported")
)

// ChainError reports the pointer chain step that could not be read.
// Step 0 is the read at the chain's base address.
type ChainError struct {
	Step    int
	Address uintptr
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("failed to read pointer at 0x%x (step %d) - %s", e.Address, e.Step, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}
