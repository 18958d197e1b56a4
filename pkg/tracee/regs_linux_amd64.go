//go:build linux && amd64

package tracee

import (
	"golang.org/x/sys/unix"

	"github.com/example/ptracekit/pkg/regs"
)

// https://man7.org/linux/man-pages/man2/syscall.2.html
//   Arch/ABI    arg1  arg2  arg3  arg4  arg5  arg6
//   x86-64      rdi   rsi   rdx   r10   r8    r9
//   syscall number: rax (orig_rax at a trap), return value: rax

// ExecveSysno is the native execve syscall number. execve is special:
// the kernel rebuilds the stack for the new image, so stack-pointer
// assumptions that hold for every other syscall break across it.
const ExecveSysno = 59

func getRegs(pid int, native *unix.PtraceRegs) error {
	return unix.PtraceGetRegs(pid, native)
}

func toRaw(native *unix.PtraceRegs) regs.Raw {
	return regs.Raw{
		Sysno: native.Orig_rax,
		Args: [6]regs.Word{
			native.Rdi, native.Rsi, native.Rdx,
			native.R10, native.R8, native.R9,
		},
		Ret: native.Rax,
		SP:  native.Rsp,
		PC:  native.Rip,
	}
}

// foldRaw folds the working register values into the captured native
// layout, leaving all uncaptured registers as the tracee had them.
func foldRaw(native *unix.PtraceRegs, cur, orig regs.Raw) {
	native.Orig_rax = cur.Sysno
	native.Rdi = cur.Args[0]
	native.Rsi = cur.Args[1]
	native.Rdx = cur.Args[2]
	native.R10 = cur.Args[3]
	native.R8 = cur.Args[4]
	native.R9 = cur.Args[5]
	native.Rax = cur.Ret
	native.Rsp = cur.SP
	native.Rip = cur.PC
}

func applyRaw(pid int, native *unix.PtraceRegs, cur, orig regs.Raw) error {
	foldRaw(native, cur, orig)
	return unix.PtraceSetRegs(pid, native)
}
