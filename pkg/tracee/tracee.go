//go:build linux

// Package tracee drives one traced process through its syscall traps
// using ptrace: spawning or attaching, waiting for stops, capturing and
// committing registers, and staging data in the tracee's memory.
//
// All ptrace operations for a tracee must come from the OS thread that
// attached it. Spawn and Attach lock the calling goroutine to its
// thread; keep driving the tracee from that goroutine.
package tracee

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/example/ptracekit/pkg/errdefs"
	"github.com/example/ptracekit/pkg/regs"
)

// StopKind says why the tracee stopped.
type StopKind int

const (
	SyscallEnterStop StopKind = iota
	SyscallExitStop
	SignalStop
	ExitStop
)

// Stop describes one tracee stop reported by WaitTrap.
type Stop struct {
	Kind     StopKind
	Signal   unix.Signal // valid for SignalStop
	ExitCode int         // valid for ExitStop
}

// Tracee is one process under ptrace control.
type Tracee struct {
	pid     int
	native  unix.PtraceRegs
	redZone int64

	// inSyscall distinguishes syscall-entry from syscall-exit stops;
	// the kernel reports both the same way.
	inSyscall bool

	// pendingSignal is delivered to the tracee on the next resume.
	pendingSignal unix.Signal

	attached bool
	exited   bool
}

// Spawn starts the command with tracing enabled and returns once the
// child is stopped at its first instruction, with syscall tracing
// options set.
func Spawn(path string, args []string) (*Tracee, error) {
	runtime.LockOSThread()

	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to start tracee %s: %v", path, err)
	}

	t := &Tracee{
		pid:     cmd.Process.Pid,
		redZone: regs.HostPlatform().RedZoneSize(),
	}

	// The child stops with SIGTRAP after exec.
	if _, err := t.wait(); err != nil {
		t.Kill()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed waiting for initial stop of pid %d: %v", t.pid, err)
	}
	if err := t.setOptions(); err != nil {
		t.Kill()
		runtime.UnlockOSThread()
		return nil, err
	}
	t.attached = true
	return t, nil
}

// Attach puts an already-running process under control and returns once
// it is stopped.
func Attach(pid int) (*Tracee, error) {
	runtime.LockOSThread()

	if err := unix.PtraceAttach(pid); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed to attach to pid %d: %v", pid, err)
	}

	t := &Tracee{
		pid:     pid,
		redZone: regs.HostPlatform().RedZoneSize(),
	}
	if _, err := t.wait(); err != nil {
		unix.PtraceDetach(pid)
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("failed waiting for attach stop of pid %d: %v", pid, err)
	}
	if err := t.setOptions(); err != nil {
		unix.PtraceDetach(pid)
		runtime.UnlockOSThread()
		return nil, err
	}
	t.attached = true
	return t, nil
}

func (t *Tracee) setOptions() error {
	// TRACESYSGOOD marks syscall stops with bit 7 of the stop signal so
	// they cannot be confused with a real SIGTRAP. EXITKILL ensures the
	// tracee does not escape control if the tracer dies.
	opts := unix.PTRACE_O_TRACESYSGOOD | unix.PTRACE_O_EXITKILL
	if err := unix.PtraceSetOptions(t.pid, opts); err != nil {
		return fmt.Errorf("failed to set ptrace options for pid %d: %v", t.pid, err)
	}
	return nil
}

// Pid returns the tracee's process id.
func (t *Tracee) Pid() int { return t.pid }

// Exited reports whether the tracee is gone.
func (t *Tracee) Exited() bool { return t.exited }

// SetRedZone overrides the ABI red-zone size used for register sets
// captured from this tracee.
func (t *Tracee) SetRedZone(size int64) { t.redZone = size }

// WaitTrap resumes the tracee and blocks until its next stop: a syscall
// boundary, a signal delivery, or process exit. Pending signals from a
// previous SignalStop are delivered on resume.
func (t *Tracee) WaitTrap() (Stop, error) {
	if t.exited {
		return Stop{}, fmt.Errorf("tracee %d has already exited", t.pid)
	}

	sig := t.pendingSignal
	t.pendingSignal = 0
	if err := unix.PtraceSyscall(t.pid, int(sig)); err != nil {
		return Stop{}, fmt.Errorf("failed to resume pid %d: %v", t.pid, err)
	}

	ws, err := t.wait()
	if err != nil {
		return Stop{}, err
	}

	switch {
	case ws.Exited():
		t.exited = true
		return Stop{Kind: ExitStop, ExitCode: ws.ExitStatus()}, nil

	case ws.Signaled():
		t.exited = true
		return Stop{Kind: ExitStop, ExitCode: 128 + int(ws.Signal())}, nil

	case ws.Stopped() && ws.StopSignal() == unix.SIGTRAP|0x80:
		// A syscall stop, thanks to TRACESYSGOOD. Entry and exit
		// alternate.
		t.inSyscall = !t.inSyscall
		if t.inSyscall {
			return Stop{Kind: SyscallEnterStop}, nil
		}
		return Stop{Kind: SyscallExitStop}, nil

	case ws.Stopped():
		// A real signal for the tracee. Queue it for re-delivery so
		// interception stays transparent.
		t.pendingSignal = ws.StopSignal()
		return Stop{Kind: SignalStop, Signal: ws.StopSignal()}, nil

	default:
		return Stop{}, fmt.Errorf("unexpected wait status %#x for pid %d", uint32(ws), t.pid)
	}
}

func (t *Tracee) wait() (unix.WaitStatus, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(t.pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return ws, errdefs.NewInterrupted(fmt.Sprintf("wait4 on pid %d", t.pid), err)
		}
		return ws, nil
	}
}

// CaptureRegs snapshots the tracee's registers at the current trap into
// a fresh register set. Call it once per stop; allocations and argument
// rewrites accumulate in the returned value until CommitRegs.
func (t *Tracee) CaptureRegs() (*regs.Registers, error) {
	if err := getRegs(t.pid, &t.native); err != nil {
		return nil, fmt.Errorf("failed to read registers of pid %d: %v", t.pid, err)
	}
	return regs.NewWithRedZone(t.pid, toRaw(&t.native), t.redZone), nil
}

// CommitRegs pushes a mutated register set back to the tracee. Only
// registers that differ from the captured snapshot are written; if
// nothing changed the kernel round trip is skipped entirely. Commit
// must happen before the tracee resumes, or staged allocations and
// rewrites are lost.
func (t *Tracee) CommitRegs(r *regs.Registers) error {
	if !r.Modified() {
		return nil
	}
	if r.Pid() != t.pid {
		return fmt.Errorf("register set belongs to pid %d, not %d", r.Pid(), t.pid)
	}
	if err := applyRaw(t.pid, &t.native, r.Current(), r.Original()); err != nil {
		return fmt.Errorf("failed to write registers of pid %d: %v", t.pid, err)
	}
	return nil
}

// Detach releases the tracee and lets it run free.
func (t *Tracee) Detach() error {
	if t.exited {
		return nil
	}
	t.attached = false
	if err := unix.PtraceDetach(t.pid); err != nil {
		return fmt.Errorf("failed to detach from pid %d: %v", t.pid, err)
	}
	return nil
}

// Kill forcibly terminates the tracee.
func (t *Tracee) Kill() error {
	if t.exited {
		return nil
	}
	return unix.Kill(t.pid, unix.SIGKILL)
}
