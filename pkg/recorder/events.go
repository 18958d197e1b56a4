package recorder

import "time"

type EventType int

const (
	SyscallEnter EventType = iota
	SyscallExit
	SignalDelivery
	ProcessExit
)

// Event is one observation of a tracee at a trap boundary. Register
// values are recorded as captured, before any rewriting.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Pid       int       `json:"pid"`
	Sysno     uint64    `json:"sysno,omitempty"`
	Args      [6]uint64 `json:"args,omitempty"`
	Ret       uint64    `json:"ret,omitempty"`
	Signal    int       `json:"signal,omitempty"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Comm      string    `json:"comm,omitempty"` // tracee executable name, if known
	Details   string    `json:"details,omitempty"`
}

// String returns the string representation of the EventType
func (et EventType) String() string {
	switch et {
	case SyscallEnter:
		return "SyscallEnter"
	case SyscallExit:
		return "SyscallExit"
	case SignalDelivery:
		return "SignalDelivery"
	case ProcessExit:
		return "ProcessExit"
	default:
		return "Unknown"
	}
}
