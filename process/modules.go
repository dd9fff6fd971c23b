package process

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Module is a loaded image (main executable or library) in a process.
type Module struct {
	Name string
	Base uintptr
	Size uint
}

func (m Module) End() uintptr {
	return m.Base + uintptr(m.Size)
}

func (m Module) Contains(addr uintptr) bool {
	return addr-m.Base < uintptr(m.Size)
}

// Modules lists the process' modules in enumeration order. A module
// whose name cannot be decoded is reported as "<module name>" rather
// than failing the whole listing; a module whose load information
// cannot be queried is left out.
func (h *Handle) Modules() ([]Module, error) {
	var mods []Module
	err := h.do(func(t Target) error {
		handles, err := t.ModuleHandles()
		if err != nil {
			return errors.Wrapf(err, "failed to enumerate modules of pid %d", h.pid)
		}

		mods = make([]Module, 0, len(handles))
		for _, mh := range handles {
			name := moduleName(t, mh)

			base, size, err := t.ModuleInfo(mh)
			if err != nil {
				Log.WithFields(logrus.Fields{"pid": h.pid, "module": name, "err": err}).
					Debug("skipping module without load information")
				continue
			}

			mods = append(mods, Module{
				Name: name,
				Base: base,
				Size: size,
			})
		}

		return nil
	})
	return mods, err
}

func moduleName(t Target, mh uintptr) string {
	buf := make([]byte, nameBufferSize)
	err := t.ModuleBaseName(mh, buf)
	if err == nil {
		var name string
		name, err = NormalizeName(buf)
		if err == nil {
			return name
		}
	}

	Log.WithFields(logrus.Fields{"module": mh, "err": err}).Debug("module name could not be decoded")
	return placeholderModuleName
}

// ModuleMap keys mods by name. A later module with the same name as an
// earlier one replaces it; use the slice when every instance matters.
func ModuleMap(mods []Module) map[string]Module {
	return lo.KeyBy(mods, func(m Module) string {
		return m.Name
	})
}
