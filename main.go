package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"procMem/process"
)

func main() {
	name := flag.String("n", "", "process name")
	pid := flag.Uint("p", 0, "process id")
	verbose := flag.Bool("v", false, "log skipped processes, modules and partial reads")
	workers := flag.Int("w", 0, "scan workers (0 means one per CPU)")
	execCmd := flag.String("x", "", "run one command and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if (*name == "" && *pid == 0) || (*name != "" && *pid != 0) {
		fmt.Fprintf(os.Stderr, "Invalid arguments\n")
		flag.Usage()
		os.Exit(1)
	}

	if *verbose {
		process.Log.SetLevel(logrus.DebugLevel)
	}

	var session *TypeSession
	var err error
	if *pid != 0 {
		session, err = AttachPid(systemLocator{}, uint32(*pid))
	} else {
		session, err = AttachName(systemLocator{}, *name, selectProcess)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error attaching: %s\n", err)
		os.Exit(1)
	}
	defer session.Close()

	session.opts.Workers = *workers

	if *execCmd != "" {
		err = session.Exec(*execCmd)
		if err != nil {
			reportError(err)
			session.Close()
			os.Exit(1)
		}
		return
	}

	session.Interactive()
}
