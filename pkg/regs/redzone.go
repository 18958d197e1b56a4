package regs

import "runtime"

// Platform identifies an (operating system, architecture) pair, the key
// for ABI-dependent constants.
type Platform struct {
	OS   string // GOOS-style name, e.g. "linux"
	Arch string // GOARCH-style name, e.g. "amd64"
}

// HostPlatform returns the platform the tracer is running on.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// redZoneSizes maps platforms to the number of bytes below the stack
// pointer that the ABI reserves for leaf-function scratch use. The
// x86-64 System V ABI reserves 128 bytes; everything else we trace
// reserves nothing.
var redZoneSizes = map[Platform]int64{
	{OS: "linux", Arch: "amd64"}: 128,
}

// RedZoneSize returns the ABI red-zone size in bytes for the platform,
// or 0 if the platform reserves none.
func (p Platform) RedZoneSize() int64 {
	return redZoneSizes[p]
}
