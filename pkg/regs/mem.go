package regs

import (
	"math"

	"github.com/example/ptracekit/pkg/errdefs"
)

// AllocateStack reserves size bytes of scratch space in the tracee's
// stack by lowering the working stack pointer (the stack grows downward;
// a negative size raises the pointer instead, giving space back). It
// returns the new stack pointer, which is the base address of the
// reserved region.
//
// Only the cached register set is touched: no tracee memory is written
// and no registers are committed. The caller must push the updated
// register set to the tracee before resuming it.
//
// This is only meaningful while the tracee is stopped at a syscall-entry
// trap, because the kernel restores the stack pointer at syscall exit.
// execve is the exception: there the stack pointer carries argc/argv/
// envp/auxv for the new image, and its handling is the caller's policy.
//
// On the first allocation of a trap the ABI red zone is carved out as
// well, so staged data cannot clobber leaf-function scratch space. If
// the adjusted pointer would wrap around the address space, a bad-address
// error is returned and the register set is left unmodified.
func (r *Registers) AllocateStack(size int64) (Word, error) {
	// The red zone is reserved once per trap: only while the working
	// stack pointer still equals the trap-entry snapshot.
	corrected := size
	if r.current.SP == r.original.SP {
		corrected += r.redZone
	}

	sp := r.current.SP
	if corrected == 0 {
		return sp, nil
	}
	if (corrected > 0 && sp <= Word(corrected)) ||
		(corrected < 0 && sp >= math.MaxUint64-Word(-corrected)) {
		return 0, errdefs.NewBadAddress("when allocating tracee stack space, under/overflow detected")
	}

	if corrected > 0 {
		sp -= Word(corrected)
	} else {
		sp += Word(-corrected)
	}

	r.current.SP = sp
	r.modified = true
	return sp, nil
}
