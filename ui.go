package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
)

func historyFile() string {
	return filepath.Join(os.TempDir(), "procmem_history.txt")
}

// Exec runs one command line, resolving $module symbols first.
func (s *TypeSession) Exec(req string) error {
	resolved, err := s.resolveSymbols(req)
	if err != nil {
		return err
	}
	return s.cmdExec(resolved)
}

func (s *TypeSession) Interactive() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[procMem]$ ",
		HistoryFile:       historyFile(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			switch r {
			case readline.CharCtrlZ:
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		LogError("failed to start line editor: %v", err)
		return
	}
	defer rl.Close()

	hLine(fmt.Sprintf("%s (%d)", s.proc.Name, s.proc.PID))

	prev := ""
	for {
		rl.SetPrompt(fmt.Sprintf("[%sprocMem%s:%s%d%s]$ ", ColorCyan, ColorReset, ColorCyan, s.proc.PID, ColorReset))

		req, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			continue
		}

		if req == "" {
			if prev == "" {
				continue
			}
			req = prev
		}

		if req == "q" || req == "exit" || req == "quit" {
			break
		}

		prev = req

		err = s.Exec(req)
		if err != nil {
			reportError(err)
		}
	}
}
