//go:build linux

// Package tracer runs the syscall-interception loop: it drives a tracee
// from trap to trap, hands the captured registers to a handler for
// rewriting, commits the result, and records what happened.
package tracer

import (
	"fmt"
	"time"

	"github.com/example/ptracekit/pkg/config"
	"github.com/example/ptracekit/pkg/procinfo"
	"github.com/example/ptracekit/pkg/recorder"
	"github.com/example/ptracekit/pkg/regs"
	"github.com/example/ptracekit/pkg/tracee"
)

// Process is the tracee surface the loop needs. *tracee.Tracee
// implements it; tests substitute scripted fakes.
type Process interface {
	Pid() int
	WaitTrap() (tracee.Stop, error)
	CaptureRegs() (*regs.Registers, error)
	CommitRegs(*regs.Registers) error
	SetRedZone(size int64)
}

// Handler rewrites syscalls. Both hooks receive the register set
// captured at the trap; any mutation (argument rewrites, stack
// allocations, return-value overrides) is committed to the tracee
// before it resumes.
//
// Handlers must not assume the stack pointer survives an execve
// syscall-exit: the kernel rebuilds the stack for the new image, so
// anything staged at execve entry is gone. How to handle execve is the
// handler's policy.
type Handler interface {
	SyscallEnter(p Process, r *regs.Registers) error
	SyscallExit(p Process, r *regs.Registers) error
}

// NopHandler observes without rewriting anything.
type NopHandler struct{}

func (NopHandler) SyscallEnter(Process, *regs.Registers) error { return nil }
func (NopHandler) SyscallExit(Process, *regs.Registers) error  { return nil }

// Tracer owns one interception loop. It must run on the goroutine that
// spawned or attached the tracee, since ptrace is bound to that thread.
type Tracer struct {
	proc    Process
	handler Handler
	rec     recorder.Recorder
	procs   *procinfo.Cache
	nextID  int64
}

// New wires a tracer together. rec may be nil to skip recording.
func New(proc Process, handler Handler, rec recorder.Recorder, cfg config.Config) (*Tracer, error) {
	proc.SetRedZone(cfg.RedZoneFor(regs.HostPlatform()))

	t := &Tracer{
		proc:    proc,
		handler: handler,
		rec:     rec,
	}
	if cfg.Annotate {
		procs, err := procinfo.NewCache(procinfo.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		t.procs = procs
	}
	return t, nil
}

// Run drives the tracee until it exits, returning its exit code.
func (t *Tracer) Run() (int, error) {
	for {
		stop, err := t.proc.WaitTrap()
		if err != nil {
			return 0, err
		}

		switch stop.Kind {
		case tracee.ExitStop:
			t.record(recorder.Event{
				Type:     recorder.ProcessExit,
				Pid:      t.proc.Pid(),
				ExitCode: stop.ExitCode,
			})
			if t.procs != nil {
				t.procs.Forget(t.proc.Pid())
			}
			return stop.ExitCode, nil

		case tracee.SignalStop:
			t.record(recorder.Event{
				Type:   recorder.SignalDelivery,
				Pid:    t.proc.Pid(),
				Signal: int(stop.Signal),
			})

		case tracee.SyscallEnterStop, tracee.SyscallExitStop:
			if err := t.handleSyscallStop(stop.Kind); err != nil {
				return 0, err
			}
		}
	}
}

func (t *Tracer) handleSyscallStop(kind tracee.StopKind) error {
	r, err := t.proc.CaptureRegs()
	if err != nil {
		return err
	}

	raw := r.Original()
	event := recorder.Event{
		Pid:   r.Pid(),
		Sysno: raw.Sysno,
		Args:  raw.Args,
	}

	if kind == tracee.SyscallEnterStop {
		event.Type = recorder.SyscallEnter
		t.record(event)
		if err := t.handler.SyscallEnter(t.proc, r); err != nil {
			return fmt.Errorf("syscall-enter handler failed for pid %d: %w", r.Pid(), err)
		}
	} else {
		event.Type = recorder.SyscallExit
		event.Ret = raw.Ret
		t.record(event)
		if err := t.handler.SyscallExit(t.proc, r); err != nil {
			return fmt.Errorf("syscall-exit handler failed for pid %d: %w", r.Pid(), err)
		}
		// A successful execve replaced the process image; cached
		// process metadata is stale now.
		if t.procs != nil && raw.Sysno == tracee.ExecveSysno {
			t.procs.Forget(r.Pid())
		}
	}

	return t.proc.CommitRegs(r)
}

func (t *Tracer) record(e recorder.Event) {
	if t.rec == nil {
		return
	}
	t.nextID++
	e.ID = t.nextID
	e.Timestamp = time.Now()
	if t.procs != nil && e.Comm == "" {
		e.Comm = t.procs.Comm(e.Pid)
	}
	// Recording is best-effort; a full disk must not stall the tracee.
	_ = t.rec.RecordEvent(e)
}
