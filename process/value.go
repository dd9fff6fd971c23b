package process

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// Read copies a T out of the process at addr. T must be a fixed-size
// value without pointers, since its bytes come from another address
// space. It is a single attempt; on failure the zero value is returned
// along with the error.
func Read[T any](h *Handle, addr uintptr) (T, error) {
	var v T
	err := checkPlain(reflect.TypeOf(&v).Elem())
	if err != nil {
		return v, err
	}

	size := unsafe.Sizeof(v)
	if size == 0 {
		return v, nil
	}

	err = h.do(func(t Target) error {
		buf := make([]byte, size)
		n, err := t.ReadMemory(addr, buf)
		if err != nil {
			return errors.Wrapf(err, "failed to read %d bytes at 0x%x", size, addr)
		}
		if uintptr(n) != size {
			return errors.Wrapf(ErrShortRead, "read %d of %d bytes at 0x%x", n, size, addr)
		}
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), size), buf)
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return v, nil
}

// Write copies the bytes of value into the process at addr, with the
// same restrictions on T as Read.
func Write[T any](h *Handle, addr uintptr, value T) error {
	err := checkPlain(reflect.TypeOf(&value).Elem())
	if err != nil {
		return err
	}

	size := unsafe.Sizeof(value)
	if size == 0 {
		return nil
	}

	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(&value)), size))

	return h.WriteMemory(addr, data)
}

// ReadValue is Read with the error discarded.
func ReadValue[T any](h *Handle, addr uintptr) T {
	v, _ := Read[T](h, addr)
	return v
}

// WriteValue is Write with the error discarded.
func WriteValue[T any](h *Handle, addr uintptr, value T) {
	_ = Write(h, addr, value)
}

func checkPlain(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlain(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := checkPlain(t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedType, "%s", t)
	}
}
