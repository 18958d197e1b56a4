//go:build linux

package tracee

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/example/ptracekit/pkg/errdefs"
	"github.com/example/ptracekit/pkg/regs"
)

// maxStagedString bounds ReadString so a missing terminator in tracee
// memory cannot make us read forever.
const maxStagedString = 4096

// ReadMem reads len(buf) bytes of tracee memory at addr.
func (t *Tracee) ReadMem(addr regs.Word, buf []byte) error {
	n, err := unix.PtracePeekData(t.pid, uintptr(addr), buf)
	if err != nil {
		return fmt.Errorf("failed to read %d bytes at %#x from pid %d: %v", len(buf), addr, t.pid, err)
	}
	if n != len(buf) {
		return errdefs.NewBadAddress(fmt.Sprintf("short read of tracee memory at %#x", addr))
	}
	return nil
}

// WriteMem writes buf into tracee memory at addr.
func (t *Tracee) WriteMem(addr regs.Word, buf []byte) error {
	n, err := unix.PtracePokeData(t.pid, uintptr(addr), buf)
	if err != nil {
		return fmt.Errorf("failed to write %d bytes at %#x to pid %d: %v", len(buf), addr, t.pid, err)
	}
	if n != len(buf) {
		return errdefs.NewBadAddress(fmt.Sprintf("short write of tracee memory at %#x", addr))
	}
	return nil
}

// ReadString reads a NUL-terminated string from tracee memory at addr.
func (t *Tracee) ReadString(addr regs.Word) (string, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 64)
	for len(buf) < maxStagedString {
		n, err := unix.PtracePeekData(t.pid, uintptr(addr)+uintptr(len(buf)), chunk)
		if n == 0 && err != nil {
			return "", fmt.Errorf("failed to read string at %#x from pid %d: %v", addr, t.pid, err)
		}
		for i := 0; i < n; i++ {
			if chunk[i] == 0 {
				return string(append(buf, chunk[:i]...)), nil
			}
		}
		buf = append(buf, chunk[:n]...)
	}
	return "", errdefs.NewBadAddress(fmt.Sprintf("unterminated string at %#x", addr))
}

// StageBytes reserves stack space in the register set and writes data
// there, returning the tracee address of the staged copy. The register
// set still has to be committed before the tracee resumes.
func (t *Tracee) StageBytes(r *regs.Registers, data []byte) (regs.Word, error) {
	addr, err := r.AllocateStack(int64(len(data)))
	if err != nil {
		return 0, err
	}
	if err := t.WriteMem(addr, data); err != nil {
		return 0, err
	}
	return addr, nil
}

// StageString stages a NUL-terminated string, for rewriting path-style
// syscall arguments.
func (t *Tracee) StageString(r *regs.Registers, s string) (regs.Word, error) {
	return t.StageBytes(r, append([]byte(s), 0))
}
