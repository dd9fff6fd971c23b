package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

var stdout io.Writer = os.Stdout

func LogError(msg string, a ...interface{}) {
	fmt.Fprintf(stdout, "%s[ERROR]%s %s\n", ColorRed, ColorReset, fmt.Sprintf(msg, a...))
}

// reportError prints err verbatim; its text may contain '%'.
func reportError(err error) {
	LogError("%s", err)
}

// Printf highlights every formatted value.
func Printf(msg string, a ...interface{}) {
	msg = strings.ReplaceAll(msg, "%d", ColorCyan+"%d"+ColorReset)
	msg = strings.ReplaceAll(msg, "0x%016x", ColorCyan+"0x%016x"+ColorReset)
	msg = strings.ReplaceAll(msg, "%s", ColorGreen+"%s"+ColorReset)

	fmt.Printf(msg, a...)
}

func hLine(msg string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil && w > len(msg)+2 {
			side := strings.Repeat("-", (w-len(msg)-2)/2)
			fmt.Println(side + "[" + ColorBlue + msg + ColorReset + "]" + side)
			return
		}
	}
	fmt.Println("[" + msg + "]")
}
