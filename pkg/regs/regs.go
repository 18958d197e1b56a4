// Package regs models the captured register state of a traced process
// stopped at a syscall trap, and provides the tracee stack allocator used
// to stage rewritten syscall arguments inside the tracee's own stack.
//
// The package is architecture-neutral: per-architecture mapping between
// the kernel's raw register layout and Raw lives with the ptrace calls in
// pkg/tracee, so everything here runs and tests on any host.
package regs

// Word is an unsigned, pointer-width integer representing an address in
// the tracee's virtual address space. All supported targets are 64-bit.
type Word = uint64

// Raw is the architecture-neutral view of the registers that matter at a
// syscall boundary.
type Raw struct {
	Sysno Word    // syscall number (entry value, before any return clobber)
	Args  [6]Word // syscall arguments in ABI order
	Ret   Word    // syscall return value register
	SP    Word    // stack pointer
	PC    Word    // instruction pointer
}

// Registers is the register set of one tracee at one syscall trap.
//
// The working copy is mutated by the setters and by AllocateStack; the
// original snapshot taken at trap entry never changes. A Registers value
// is owned by the single thread handling the current trap and provides no
// internal locking.
type Registers struct {
	pid      int
	current  Raw
	original Raw
	redZone  int64
	modified bool
}

// New creates a register set for the given tracee pid from registers
// captured at a syscall-entry trap, resolving the red-zone size for the
// given platform.
func New(pid int, raw Raw, platform Platform) *Registers {
	return NewWithRedZone(pid, raw, platform.RedZoneSize())
}

// NewHost is New with the platform the tracer itself runs on.
func NewHost(pid int, raw Raw) *Registers {
	return New(pid, raw, HostPlatform())
}

// NewWithRedZone creates a register set with an explicit red-zone size,
// bypassing the platform table. Used for configuration overrides and
// tests.
func NewWithRedZone(pid int, raw Raw, redZone int64) *Registers {
	return &Registers{
		pid:      pid,
		current:  raw,
		original: raw,
		redZone:  redZone,
	}
}

// Pid returns the tracee's process id.
func (r *Registers) Pid() int { return r.pid }

// Sysno returns the working syscall number.
func (r *Registers) Sysno() Word { return r.current.Sysno }

// SetSysno rewrites the syscall number.
func (r *Registers) SetSysno(v Word) {
	r.current.Sysno = v
	r.modified = true
}

// SysArg returns working syscall argument n (0 through 5).
func (r *Registers) SysArg(n int) Word { return r.current.Args[n] }

// SetSysArg rewrites syscall argument n (0 through 5).
func (r *Registers) SetSysArg(n int, v Word) {
	r.current.Args[n] = v
	r.modified = true
}

// ReturnValue returns the working syscall return value.
func (r *Registers) ReturnValue() Word { return r.current.Ret }

// SetReturnValue rewrites the syscall return value.
func (r *Registers) SetReturnValue(v Word) {
	r.current.Ret = v
	r.modified = true
}

// StackPointer returns the working stack pointer.
func (r *Registers) StackPointer() Word { return r.current.SP }

// SetStackPointer rewrites the working stack pointer directly. Most
// callers want AllocateStack instead; this exists for the execve case,
// where stack handling is the caller's own policy.
func (r *Registers) SetStackPointer(v Word) {
	r.current.SP = v
	r.modified = true
}

// OriginalStackPointer returns the stack pointer as captured at trap
// entry. It never changes for the lifetime of the Registers value.
func (r *Registers) OriginalStackPointer() Word { return r.original.SP }

// InstrPointer returns the working instruction pointer.
func (r *Registers) InstrPointer() Word { return r.current.PC }

// Modified reports whether any register differs from the captured
// snapshot. The commit path skips the PTRACE_SETREGS round trip when
// nothing changed.
func (r *Registers) Modified() bool { return r.modified }

// Current returns the working register values, for committing back to
// the tracee.
func (r *Registers) Current() Raw { return r.current }

// Original returns the snapshot captured at trap entry.
func (r *Registers) Original() Raw { return r.original }
