package process

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// System locates processes through a Backend. The package level
// functions use the backend for the current operating system.
type System struct {
	backend Backend
}

func NewSystem(backend Backend) *System {
	return &System{
		backend: backend,
	}
}

var defaultSystem = NewSystem(newOSBackend())

// Process is a located process. The embedded Handle must be closed
// when the caller is done with it.
type Process struct {
	PID  uint32
	Name string
	*Handle
}

func Open(pid uint32) (*Handle, error) {
	return defaultSystem.Open(pid)
}

func Find(name string) (*Process, error) {
	return defaultSystem.Find(name)
}

func FindAll(name string) ([]*Process, error) {
	return defaultSystem.FindAll(name)
}

func With(name string, fn func(*Process) error) error {
	return defaultSystem.With(name, fn)
}

// Open opens pid with full access. Failures are not retried.
func (s *System) Open(pid uint32) (*Handle, error) {
	target, err := s.backend.OpenProcess(pid)
	if err != nil {
		return nil, err
	}

	return newHandle(pid, target), nil
}

// Find returns the first running process whose executable base name
// equals name, ignoring ASCII case.
//
// When several processes share the name, the one enumerated first is
// returned. Enumeration order depends on the OS and on process churn,
// so callers that need a particular instance should use FindAll.
func (s *System) Find(name string) (*Process, error) {
	if name == "" {
		return nil, ErrEmptyInput
	}

	var found *Process
	err := s.candidates(name, func(p *Process) bool {
		found = p
		return true
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, errors.Wrapf(ErrProcessNotFound, "%q", name)
	}

	return found, nil
}

// FindAll returns every running process named name, in enumeration order.
func (s *System) FindAll(name string) ([]*Process, error) {
	if name == "" {
		return nil, ErrEmptyInput
	}

	var found []*Process
	err := s.candidates(name, func(p *Process) bool {
		found = append(found, p)
		return false
	})
	if err != nil {
		for _, p := range found {
			p.Close()
		}
		return nil, err
	}

	if len(found) == 0 {
		return nil, errors.Wrapf(ErrProcessNotFound, "%q", name)
	}

	return found, nil
}

// With finds name, calls fn and closes the process on every path.
func (s *System) With(name string, fn func(*Process) error) error {
	p, err := s.Find(name)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(p)
}

// candidates hands every process named name to visit, which takes
// ownership of it. Enumeration stops when visit returns true. Processes
// that cannot be opened or named are skipped.
func (s *System) candidates(name string, visit func(*Process) bool) error {
	want := asciiLower([]byte(name))

	pids, err := s.backend.ProcessIDs()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate processes")
	}

	for _, pid := range lo.Filter(pids, func(pid uint32, _ int) bool { return pid != 0 }) {
		target, err := s.backend.OpenProcess(pid)
		if err != nil {
			Log.WithFields(logrus.Fields{"pid": pid, "err": err}).Debug("skipping process")
			continue
		}

		got, err := targetName(target)
		if err != nil || got != want {
			if err != nil {
				Log.WithFields(logrus.Fields{"pid": pid, "err": err}).Debug("skipping unnamed process")
			}
			target.Close()
			continue
		}

		if visit(&Process{PID: pid, Name: got, Handle: newHandle(pid, target)}) {
			return nil
		}
	}

	return nil
}

func targetName(target Target) (string, error) {
	buf := make([]byte, nameBufferSize)
	err := target.BaseName(buf)
	if err != nil {
		return "", err
	}

	return NormalizeName(buf)
}

// Module looks up a module by name, ignoring ASCII case. When several
// modules share the name the last one enumerated is returned.
func (p *Process) Module(name string) (Module, error) {
	mods, err := p.Modules()
	if err != nil {
		return Module{}, err
	}

	mod, hasIt := ModuleMap(mods)[asciiLower([]byte(name))]
	if !hasIt {
		return Module{}, errors.Wrapf(ErrModuleNotFound, "%q in pid %d", name, p.PID)
	}

	return mod, nil
}
