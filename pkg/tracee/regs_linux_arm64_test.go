//go:build linux && arm64

package tracee

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestToRawMapping(t *testing.T) {
	var native unix.PtraceRegs
	native.Regs[0] = 0xffffff9c
	native.Regs[1] = 0x7fff0000
	native.Regs[3] = 0o644
	native.Regs[8] = 56 // openat
	native.Sp = 0x7ffffffde000
	native.Pc = 0x401000

	raw := toRaw(&native)
	if raw.Sysno != 56 {
		t.Errorf("Expected sysno 56, got %d", raw.Sysno)
	}
	if raw.Args[0] != 0xffffff9c || raw.Args[1] != 0x7fff0000 || raw.Args[3] != 0o644 {
		t.Errorf("Args mismatch: %v", raw.Args)
	}
	// x0 is visible as both arg0 and the return value.
	if raw.Ret != raw.Args[0] {
		t.Errorf("Expected ret to alias arg0: %#x != %#x", raw.Ret, raw.Args[0])
	}
	if raw.SP != 0x7ffffffde000 || raw.PC != 0x401000 {
		t.Errorf("SP/PC mismatch: %#x/%#x", raw.SP, raw.PC)
	}
}

func TestFoldRawX0Alias(t *testing.T) {
	var native unix.PtraceRegs
	native.Regs[0] = 3
	native.Regs[8] = 56
	native.Sp = 0x7ffffffde000

	orig := toRaw(&native)

	// A rewritten argument lands in x0.
	cur := orig
	cur.Args[0] = 0x7fff2000
	foldRaw(&native, cur, orig)
	if native.Regs[0] != 0x7fff2000 {
		t.Errorf("Expected arg0 rewrite in x0, got %#x", native.Regs[0])
	}

	// A rewritten return value wins over the stale argument.
	native.Regs[0] = 3
	orig = toRaw(&native)
	cur = orig
	cur.Ret = 0xfffffffffffffff2 // -ENOENT
	foldRaw(&native, cur, orig)
	if native.Regs[0] != 0xfffffffffffffff2 {
		t.Errorf("Expected return-value rewrite in x0, got %#x", native.Regs[0])
	}
}
