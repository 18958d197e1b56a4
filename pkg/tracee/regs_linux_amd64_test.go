//go:build linux && amd64

package tracee

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/example/ptracekit/pkg/regs"
)

func TestToRawMapping(t *testing.T) {
	native := unix.PtraceRegs{
		Orig_rax: 257, // openat
		Rax:      0xffffffffffffffda,
		Rdi:      0xffffff9c,
		Rsi:      0x7fff0000,
		Rdx:      0,
		R10:      0o644,
		R8:       5,
		R9:       6,
		Rsp:      0x7ffffffde000,
		Rip:      0x401000,
		Rbp:      0x7ffffffde100,
	}

	raw := toRaw(&native)
	if raw.Sysno != 257 {
		t.Errorf("Expected sysno 257, got %d", raw.Sysno)
	}
	want := [6]regs.Word{0xffffff9c, 0x7fff0000, 0, 0o644, 5, 6}
	if raw.Args != want {
		t.Errorf("Args mismatch: %v != %v", raw.Args, want)
	}
	if raw.Ret != 0xffffffffffffffda {
		t.Errorf("Expected ret -38, got %#x", raw.Ret)
	}
	if raw.SP != 0x7ffffffde000 || raw.PC != 0x401000 {
		t.Errorf("SP/PC mismatch: %#x/%#x", raw.SP, raw.PC)
	}
}

func TestFoldRawPreservesUncapturedRegisters(t *testing.T) {
	native := unix.PtraceRegs{
		Orig_rax: 257,
		Rdi:      100,
		Rsp:      0x7ffffffde000,
		Rbp:      0x7ffffffde100,
		R12:      0xdead,
	}

	orig := toRaw(&native)
	cur := orig
	cur.Sysno = 2 // rewrite openat to open
	cur.Args[0] = 0x7fff2000
	cur.SP = orig.SP - 4096

	foldRaw(&native, cur, orig)

	if native.Orig_rax != 2 {
		t.Errorf("Expected sysno 2, got %d", native.Orig_rax)
	}
	if native.Rdi != 0x7fff2000 {
		t.Errorf("Expected arg0 rewrite, got %#x", native.Rdi)
	}
	if native.Rsp != 0x7ffffffde000-4096 {
		t.Errorf("Expected lowered stack pointer, got %#x", native.Rsp)
	}

	// Registers outside the syscall view must survive untouched.
	if native.Rbp != 0x7ffffffde100 || native.R12 != 0xdead {
		t.Errorf("Uncaptured registers changed: rbp=%#x r12=%#x", native.Rbp, native.R12)
	}
}

func TestFoldRoundTrip(t *testing.T) {
	native := unix.PtraceRegs{
		Orig_rax: 1,
		Rdi:      2,
		Rsi:      0x5000,
		Rdx:      11,
		Rsp:      0x7ffffffde000,
		Rip:      0x401234,
	}

	raw := toRaw(&native)
	var out unix.PtraceRegs = native
	foldRaw(&out, raw, raw)

	if out != native {
		t.Errorf("Folding an unmodified capture changed registers:\n%+v\n%+v", out, native)
	}
}
