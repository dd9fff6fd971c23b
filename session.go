package main

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"procMem/process"
)

// TypeSession is an attached process and what has been learned about it.
type TypeSession struct {
	proc *process.Process
	mods []process.Module
	opts process.ScanOptions
}

// Locator is the part of process.System a session is started from.
type Locator interface {
	Open(pid uint32) (*process.Handle, error)
	FindAll(name string) ([]*process.Process, error)
}

type systemLocator struct{}

func (systemLocator) Open(pid uint32) (*process.Handle, error) {
	return process.Open(pid)
}

func (systemLocator) FindAll(name string) ([]*process.Process, error) {
	return process.FindAll(name)
}

// AttachPid opens pid directly. The name is taken from the first
// module, which is the main executable.
func AttachPid(loc Locator, pid uint32) (*TypeSession, error) {
	h, err := loc.Open(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open pid %d", pid)
	}

	s := &TypeSession{
		proc: &process.Process{PID: pid, Handle: h},
	}
	err = s.Reload()
	if err != nil {
		h.Close()
		return nil, err
	}

	if len(s.mods) > 0 {
		s.proc.Name = s.mods[0].Name
	}
	return s, nil
}

// AttachName attaches to the process called name. When several match,
// choose picks one; the others are closed.
func AttachName(loc Locator, name string, choose func([]*process.Process) (int, error)) (*TypeSession, error) {
	procs, err := loc.FindAll(name)
	if err != nil {
		return nil, err
	}

	i := 0
	if len(procs) > 1 {
		i, err = choose(procs)
		if err != nil {
			for _, p := range procs {
				p.Close()
			}
			return nil, err
		}
	}

	for j, p := range procs {
		if j != i {
			p.Close()
		}
	}

	s := &TypeSession{
		proc: procs[i],
	}
	err = s.Reload()
	if err != nil {
		s.proc.Close()
		return nil, err
	}
	return s, nil
}

func selectProcess(procs []*process.Process) (int, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("%d processes are named %s", len(procs), procs[0].Name),
		Items: lo.Map(procs, func(p *process.Process, _ int) string {
			return fmt.Sprintf("pid %d", p.PID)
		}),
	}

	i, _, err := prompt.Run()
	return i, err
}

// Reload refreshes the module list used for $module symbols.
func (s *TypeSession) Reload() error {
	mods, err := s.proc.Modules()
	if err != nil {
		return err
	}
	s.mods = mods
	return nil
}

func (s *TypeSession) Close() error {
	return s.proc.Close()
}

func (s *TypeSession) module(name string) (process.Module, error) {
	mod, hasIt := process.ModuleMap(s.mods)[strings.ToLower(name)]
	if !hasIt {
		return process.Module{}, errors.Wrapf(process.ErrModuleNotFound, "%q", name)
	}
	return mod, nil
}

// moduleOf returns the module containing addr, if any.
func (s *TypeSession) moduleOf(addr uintptr) (process.Module, bool) {
	return lo.Find(s.mods, func(m process.Module) bool {
		return m.Contains(addr)
	})
}

// addr2some renders addr as module+offset when it falls in a module.
func (s *TypeSession) addr2some(addr uintptr) string {
	mod, ok := s.moduleOf(addr)
	if !ok {
		return ""
	}
	return fmt.Sprintf(" %s<%s+0x%x>%s", ColorYellow, mod.Name, addr-mod.Base, ColorReset)
}

// ResolveSymbol maps a module name to its base address.
func (s *TypeSession) ResolveSymbol(name string) (uint64, error) {
	mod, err := s.module(name)
	if err != nil {
		return 0, err
	}
	return uint64(mod.Base), nil
}

func (s *TypeSession) resolveSymbols(cmd string) (string, error) {
	if !strings.Contains(cmd, "$") {
		return cmd, nil
	}
	return ResolveSymbolsInCommand(cmd, s)
}
