package recorder

import (
	"path/filepath"
	"testing"
	"time"
)

func TestInMemoryRecorder(t *testing.T) {
	recorder := NewInMemoryRecorder()

	events := recorder.GetEvents()
	if len(events) != 0 {
		t.Errorf("Expected 0 events initially, got %d", len(events))
	}

	testEvents := []Event{
		{
			ID:        1,
			Timestamp: time.Now(),
			Type:      SyscallEnter,
			Pid:       1000,
			Sysno:     257,
			Args:      [6]uint64{0xffffff9c, 0x7fff0000, 0, 0, 0, 0},
			Details:   "openat",
		},
		{
			ID:        2,
			Timestamp: time.Now(),
			Type:      SyscallExit,
			Pid:       1000,
			Sysno:     257,
			Ret:       3,
			Details:   "openat",
		},
	}

	for _, event := range testEvents {
		if err := recorder.RecordEvent(event); err != nil {
			t.Errorf("Unexpected error recording event: %v", err)
		}
	}

	events = recorder.GetEvents()
	if len(events) != len(testEvents) {
		t.Fatalf("Expected %d events, got %d", len(testEvents), len(events))
	}

	for i, event := range events {
		if event.ID != testEvents[i].ID {
			t.Errorf("Event %d: expected ID %d, got %d", i, testEvents[i].ID, event.ID)
		}
		if event.Type != testEvents[i].Type {
			t.Errorf("Event %d: expected Type %v, got %v", i, testEvents[i].Type, event.Type)
		}
		if event.Sysno != testEvents[i].Sysno {
			t.Errorf("Event %d: expected Sysno %d, got %d", i, testEvents[i].Sysno, event.Sysno)
		}
	}

	recorder.Clear()

	events = recorder.GetEvents()
	if len(events) != 0 {
		t.Errorf("Expected 0 events after clearing, got %d", len(events))
	}
}

func TestFileRecorder(t *testing.T) {
	tempFilePath := filepath.Join(t.TempDir(), "trace.jsonl.zst")

	recorder, err := NewFileRecorder(tempFilePath)
	if err != nil {
		t.Fatalf("Failed to create file recorder: %v", err)
	}

	testEvents := []Event{
		{
			ID:        1,
			Timestamp: time.Now(),
			Type:      SyscallEnter,
			Pid:       1000,
			Sysno:     1,
			Args:      [6]uint64{1, 0x5000, 12, 0, 0, 0},
			Details:   "write",
		},
		{
			ID:        2,
			Timestamp: time.Now(),
			Type:      SyscallExit,
			Pid:       1000,
			Sysno:     1,
			Ret:       12,
			Details:   "write",
		},
		{
			ID:        3,
			Timestamp: time.Now(),
			Type:      ProcessExit,
			Pid:       1000,
			ExitCode:  0,
		},
	}

	for _, event := range testEvents {
		if err := recorder.RecordEvent(event); err != nil {
			t.Errorf("Unexpected error recording event: %v", err)
		}
	}
	if recorder.EventCount() != len(testEvents) {
		t.Errorf("Expected event count %d, got %d", len(testEvents), recorder.EventCount())
	}

	if err := recorder.Close(); err != nil {
		t.Errorf("Unexpected error closing recorder: %v", err)
	}

	events, err := ReadEvents(tempFilePath, DefaultCompression)
	if err != nil {
		t.Fatalf("Failed to read events back: %v", err)
	}
	if len(events) != len(testEvents) {
		t.Fatalf("Expected %d events, got %d", len(testEvents), len(events))
	}

	for i := range testEvents {
		if events[i].ID != testEvents[i].ID {
			t.Errorf("Event %d: expected ID %d, got %d", i, testEvents[i].ID, events[i].ID)
		}
		if events[i].Type != testEvents[i].Type {
			t.Errorf("Event %d: expected Type %v, got %v", i, testEvents[i].Type, events[i].Type)
		}
		if events[i].Args != testEvents[i].Args {
			t.Errorf("Event %d: args mismatch: %v != %v", i, events[i].Args, testEvents[i].Args)
		}
	}
}

func TestFileRecorderGetEventsMidStream(t *testing.T) {
	tempFilePath := filepath.Join(t.TempDir(), "trace.jsonl.zst")

	recorder, err := NewFileRecorder(tempFilePath)
	if err != nil {
		t.Fatalf("Failed to create file recorder: %v", err)
	}
	defer recorder.Close()

	for i := 0; i < 5; i++ {
		event := Event{ID: int64(i), Timestamp: time.Now(), Type: SyscallEnter, Pid: 1}
		if err := recorder.RecordEvent(event); err != nil {
			t.Fatalf("Failed to record event: %v", err)
		}
	}

	// Reading while recording flushes the stream; recording must still
	// work afterward.
	events := recorder.GetEvents()
	if len(events) != 5 {
		t.Fatalf("Expected 5 events, got %d", len(events))
	}

	event := Event{ID: 5, Timestamp: time.Now(), Type: SyscallExit, Pid: 1}
	if err := recorder.RecordEvent(event); err != nil {
		t.Fatalf("Failed to record event after GetEvents: %v", err)
	}

	events = recorder.GetEvents()
	if len(events) != 6 {
		t.Fatalf("Expected 6 events after further recording, got %d", len(events))
	}
}

func TestEventTypeString(t *testing.T) {
	cases := map[EventType]string{
		SyscallEnter:   "SyscallEnter",
		SyscallExit:    "SyscallExit",
		SignalDelivery: "SignalDelivery",
		ProcessExit:    "ProcessExit",
		EventType(99):  "Unknown",
	}
	for et, want := range cases {
		if got := et.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
