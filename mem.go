package main

import (
	"github.com/sirupsen/logrus"

	"procMem/process"
)

// GetMemory reads n bytes at addr. On a partial read the readable
// prefix is returned along with the error.
func (s *TypeSession) GetMemory(n uint, addr uintptr) ([]byte, error) {
	mem, err := s.proc.ReadMemory(addr, n)
	if err != nil && len(mem) > 0 {
		process.Log.WithFields(logrus.Fields{"addr": addr, "read": len(mem), "want": n}).
			Debug("partial read")
	}
	return mem, err
}

func (s *TypeSession) SetMemory(data []byte, addr uintptr) error {
	return s.proc.WriteMemory(addr, data)
}
