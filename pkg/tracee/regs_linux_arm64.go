//go:build linux && arm64

package tracee

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/example/ptracekit/pkg/regs"
)

// https://man7.org/linux/man-pages/man2/syscall.2.html
//   Arch/ABI    arg1  arg2  arg3  arg4  arg5  arg6
//   arm64       x0    x1    x2    x3    x4    x5
//   syscall number: x8, return value: x0
//
// x0 is both the first argument and the return value. applyRaw resolves
// the alias by preferring whichever side the caller changed.

const _NT_ARM_SYSTEM_CALL = 0x404

// ExecveSysno is the native execve syscall number. execve is special:
// the kernel rebuilds the stack for the new image, so stack-pointer
// assumptions that hold for every other syscall break across it.
const ExecveSysno = 221

func getRegs(pid int, native *unix.PtraceRegs) error {
	iov := unix.Iovec{
		Base: (*byte)(unsafe.Pointer(native)),
		Len:  uint64(unsafe.Sizeof(*native)),
	}
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETREGSET,
		uintptr(pid), uintptr(unix.NT_PRSTATUS),
		uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func setRegs(pid int, native *unix.PtraceRegs) error {
	iov := unix.Iovec{
		Base: (*byte)(unsafe.Pointer(native)),
		Len:  uint64(unsafe.Sizeof(*native)),
	}
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETREGSET,
		uintptr(pid), uintptr(unix.NT_PRSTATUS),
		uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// setSyscallNumber rewrites the syscall number of a stopped tracee.
// Unlike x86-64, arm64 does not expose the pending syscall number
// through the general register set; it has its own regset.
func setSyscallNumber(pid int, sysno regs.Word) error {
	n := int32(sysno)
	iov := unix.Iovec{
		Base: (*byte)(unsafe.Pointer(&n)),
		Len:  uint64(unsafe.Sizeof(n)),
	}
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETREGSET,
		uintptr(pid), uintptr(_NT_ARM_SYSTEM_CALL),
		uintptr(unsafe.Pointer(&iov)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func toRaw(native *unix.PtraceRegs) regs.Raw {
	return regs.Raw{
		Sysno: native.Regs[8],
		Args: [6]regs.Word{
			native.Regs[0], native.Regs[1], native.Regs[2],
			native.Regs[3], native.Regs[4], native.Regs[5],
		},
		Ret: native.Regs[0],
		SP:  native.Sp,
		PC:  native.Pc,
	}
}

func foldRaw(native *unix.PtraceRegs, cur, orig regs.Raw) {
	// x0 aliases the first argument and the return value; a changed
	// return value wins, since it is only set at syscall exit where
	// arguments no longer matter.
	if cur.Ret != orig.Ret {
		native.Regs[0] = cur.Ret
	} else {
		native.Regs[0] = cur.Args[0]
	}
	native.Regs[1] = cur.Args[1]
	native.Regs[2] = cur.Args[2]
	native.Regs[3] = cur.Args[3]
	native.Regs[4] = cur.Args[4]
	native.Regs[5] = cur.Args[5]
	native.Regs[8] = cur.Sysno
	native.Sp = cur.SP
	native.Pc = cur.PC
}

func applyRaw(pid int, native *unix.PtraceRegs, cur, orig regs.Raw) error {
	foldRaw(native, cur, orig)

	if err := setRegs(pid, native); err != nil {
		return err
	}
	if cur.Sysno != orig.Sysno {
		return setSyscallNumber(pid, cur.Sysno)
	}
	return nil
}
