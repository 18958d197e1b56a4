//go:build linux

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"

	"github.com/example/ptracekit/pkg/config"
	"github.com/example/ptracekit/pkg/inspect"
	"github.com/example/ptracekit/pkg/recorder"
	"github.com/example/ptracekit/pkg/tracee"
	"github.com/example/ptracekit/pkg/tracer"
	"github.com/example/ptracekit/pkg/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  ptracekit trace [-o file] [-config file] <command> [args...]
  ptracekit attach [-o file] [-config file] <pid>
  ptracekit dump [-raw] <file>
  ptracekit inspect <pid>
  ptracekit version
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ptracekit: ")

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "trace":
		runTrace(os.Args[2:], false)
	case "attach":
		runTrace(os.Args[2:], true)
	case "dump":
		runDump(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "version":
		fmt.Println(version.GetVersionInfo())
	default:
		usage()
	}
}

// status prints progress to stderr, colored when it is a terminal, so
// tracer output stays distinguishable from the tracee's own output.
func status(format string, a ...interface{}) {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[36mptracekit: "+format+"\x1b[0m\n", a...)
	} else {
		fmt.Fprintf(os.Stderr, "ptracekit: "+format+"\n", a...)
	}
}

func loadConfig(configPath, output string) config.Config {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg = loaded
	}
	if output != "" {
		cfg.Output = output
	}
	return cfg
}

func openRecorder(cfg config.Config) *recorder.FileRecorder {
	if cfg.Output == "" {
		return nil
	}
	compression := recorder.NoCompression
	if cfg.Compress {
		compression = recorder.ZstdCompression
	}
	rec, err := recorder.NewFileRecorderWithOptions(cfg.Output, recorder.FileRecorderOptions{
		CompressionType: compression,
	})
	if err != nil {
		log.Fatalf("failed to open trace log: %v", err)
	}
	return rec
}

func runTrace(args []string, attach bool) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	output := fs.String("o", "", "trace log path")
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		usage()
	}
	cfg := loadConfig(*configPath, *output)

	var (
		t   *tracee.Tracee
		err error
	)
	if attach {
		pid, convErr := strconv.Atoi(fs.Arg(0))
		if convErr != nil {
			log.Fatalf("invalid pid %q", fs.Arg(0))
		}
		t, err = tracee.Attach(pid)
	} else {
		t, err = tracee.Spawn(fs.Arg(0), fs.Args()[1:])
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	status("tracing pid %d", t.Pid())

	var rec recorder.Recorder
	fileRec := openRecorder(cfg)
	if fileRec != nil {
		rec = fileRec
	}

	tr, err := tracer.New(t, tracer.NopHandler{}, rec, cfg)
	if err != nil {
		t.Kill()
		log.Fatalf("%v", err)
	}

	code, err := tr.Run()
	if err != nil {
		t.Kill()
		log.Fatalf("trace aborted: %v", err)
	}
	if fileRec != nil {
		status("recorded %d events to %s", fileRec.EventCount(), cfg.Output)
	}
	status("tracee exited with code %d", code)
	if fileRec != nil {
		fileRec.Close()
	}
	os.Exit(code)
}

func runDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	raw := fs.Bool("raw", false, "trace log is uncompressed")
	fs.Parse(args)

	if fs.NArg() != 1 {
		usage()
	}

	compression := recorder.ZstdCompression
	if *raw {
		compression = recorder.NoCompression
	}
	events, err := recorder.ReadEvents(fs.Arg(0), compression)
	if err != nil {
		log.Fatalf("%v", err)
	}

	for _, e := range events {
		switch e.Type {
		case recorder.SyscallEnter:
			fmt.Printf("[%d] pid %d %s enter sysno=%d args=%x %s\n",
				e.ID, e.Pid, e.Timestamp.Format("15:04:05.000000"), e.Sysno, e.Args, e.Comm)
		case recorder.SyscallExit:
			fmt.Printf("[%d] pid %d %s exit  sysno=%d ret=%#x\n",
				e.ID, e.Pid, e.Timestamp.Format("15:04:05.000000"), e.Sysno, e.Ret)
		case recorder.SignalDelivery:
			fmt.Printf("[%d] pid %d %s signal %d\n",
				e.ID, e.Pid, e.Timestamp.Format("15:04:05.000000"), e.Signal)
		case recorder.ProcessExit:
			fmt.Printf("[%d] pid %d %s exited with code %d\n",
				e.ID, e.Pid, e.Timestamp.Format("15:04:05.000000"), e.ExitCode)
		}
	}
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		usage()
	}
	pid, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		log.Fatalf("invalid pid %q", fs.Arg(0))
	}

	insp, err := inspect.Attach(pid)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer insp.Close()

	state, err := insp.Halt()
	if err != nil {
		log.Fatalf("failed to halt pid %d: %v", pid, err)
	}
	if state.CurrentThread != nil {
		status("pid %d stopped at %#x (%s:%d)", pid,
			state.CurrentThread.PC, state.CurrentThread.File, state.CurrentThread.Line)
	}

	goroutines, err := insp.Goroutines()
	if err != nil {
		status("no goroutine listing for pid %d (not a Go binary?)", pid)
		return
	}
	for _, g := range goroutines {
		name := ""
		if g.CurrentLoc.Function != nil {
			name = g.CurrentLoc.Function.Name()
		}
		fmt.Printf("goroutine %d: %s:%d %s\n",
			g.ID, g.CurrentLoc.File, g.CurrentLoc.Line, name)
	}
}
