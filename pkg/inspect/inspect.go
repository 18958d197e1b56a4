// Package inspect drops a stopped process into a real debugger: it
// launches a headless Delve attached to the pid and connects over RPC.
//
// A process can have only one ptrace tracer, so the tracing loop must
// detach before Delve can attach. Inspection is for post-mortem poking
// at a tracee, not for use mid-trap.
package inspect

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-delve/delve/service/api"
	"github.com/go-delve/delve/service/rpc2"
)

// Inspector wraps a Delve RPC client session attached to a running
// process, managing the underlying dlv process.
type Inspector struct {
	client    *rpc2.RPCClient
	pid       int       // Target process id
	dlvCmd    *exec.Cmd // The running 'dlv attach' command
	dlvListen string    // The address dlv is listening on (e.g., "localhost:12345")
}

// findFreePort finds an available TCP port on localhost
func findFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Attach launches a Delve headless server attached to pid and connects
// via RPC.
func Attach(pid int) (*Inspector, error) {
	port, err := findFreePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find free port for delve: %v", err)
	}
	dlvListenAddr := "localhost:" + strconv.Itoa(port)

	// Ensure dlv executable is in PATH or provide full path
	cmdArgs := []string{
		"attach", strconv.Itoa(pid),
		"--headless",
		"--listen=" + dlvListenAddr,
		"--api-version=2",
		"--accept-multiclient",
	}

	dlvCmd := exec.Command("dlv", cmdArgs...)
	setupProcAttr(dlvCmd)

	if err := dlvCmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start delve process: %v", err)
	}

	// Wait a moment for the server to initialize
	time.Sleep(1000 * time.Millisecond)

	client := rpc2.NewClient(dlvListenAddr)

	// Simple connection check
	if _, err := client.GetState(); err != nil {
		// If connection fails, attempt to kill the dlv process we started
		_ = dlvCmd.Process.Kill()
		_, _ = dlvCmd.Process.Wait() // Wait to clean up zombie process
		return nil, fmt.Errorf("failed to connect RPC client to delve server at %s: %v", dlvListenAddr, err)
	}

	return &Inspector{
		client:    client,
		pid:       pid,
		dlvCmd:    dlvCmd,
		dlvListen: dlvListenAddr,
	}, nil
}

// Pid returns the inspected process id.
func (i *Inspector) Pid() int { return i.pid }

// State returns the current debugger state of the inspected process.
func (i *Inspector) State() (*api.DebuggerState, error) {
	return i.client.GetState()
}

// Halt stops the inspected process so its state can be examined.
func (i *Inspector) Halt() (*api.DebuggerState, error) {
	return i.client.Halt()
}

// Goroutines lists the goroutines of the inspected process, when it is
// a Go binary. Non-Go tracees report an error here, which is fine.
func (i *Inspector) Goroutines() ([]*api.Goroutine, error) {
	goroutines, _, err := i.client.ListGoroutines(0, 0)
	if err != nil {
		return nil, err
	}
	return goroutines, nil
}

// Close detaches Delve from the process, leaving it running, and
// terminates the dlv server.
func (i *Inspector) Close() error {
	var closeErr error
	if i.client != nil {
		if err := i.client.Detach(false); err != nil {
			closeErr = fmt.Errorf("failed to detach delve from pid %d: %v", i.pid, err)
		}
		if err := i.client.Disconnect(false); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("failed to disconnect delve client: %v", err)
		}
		i.client = nil
	}
	if i.dlvCmd != nil && i.dlvCmd.Process != nil {
		if err := i.dlvCmd.Process.Kill(); err != nil {
			if err.Error() != "os: process already finished" && closeErr == nil {
				closeErr = fmt.Errorf("failed to kill delve process: %v", err)
			}
		}
		// Wait for the process to release resources
		_, _ = i.dlvCmd.Process.Wait()
		i.dlvCmd = nil
	}
	return closeErr
}
