package inspect

import "testing"

func TestFindFreePort(t *testing.T) {
	port, err := findFreePort()
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("Got implausible port %d", port)
	}
}
