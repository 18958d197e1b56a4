package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FileRecorder appends events to a file as JSON lines, with optional
// compression. One trace run produces one file.
type FileRecorder struct {
	file            *os.File
	writer          io.Writer
	bufWriter       *bufio.Writer
	path            string
	compressionType CompressionType
	eventCount      int
}

// FileRecorderOptions contains options for creating a file recorder
type FileRecorderOptions struct {
	CompressionType CompressionType
}

// DefaultFileRecorderOptions returns default options for file recorder
func DefaultFileRecorderOptions() FileRecorderOptions {
	return FileRecorderOptions{
		CompressionType: DefaultCompression,
	}
}

// NewFileRecorder creates a new file recorder with default options
func NewFileRecorder(path string) (*FileRecorder, error) {
	return NewFileRecorderWithOptions(path, DefaultFileRecorderOptions())
}

// NewFileRecorderWithOptions creates a new file recorder with the given options
func NewFileRecorderWithOptions(path string, options FileRecorderOptions) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	bufWriter := bufio.NewWriter(f)
	compressedWriter := NewCompressedWriter(bufWriter, options.CompressionType)

	return &FileRecorder{
		file:            f,
		writer:          compressedWriter,
		bufWriter:       bufWriter,
		path:            path,
		compressionType: options.CompressionType,
		eventCount:      0,
	}, nil
}

// RecordEvent writes an event to the file as one JSON line
func (fr *FileRecorder) RecordEvent(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if _, err := fr.writer.Write(data); err != nil {
		return err
	}
	if _, err := fr.writer.Write([]byte{'\n'}); err != nil {
		return err
	}

	fr.eventCount++
	return nil
}

// EventCount returns the number of events recorded so far.
func (fr *FileRecorder) EventCount() int {
	return fr.eventCount
}

// GetEvents reads back all events written to the file so far. The
// compressed stream is flushed first so every recorded event is visible.
func (fr *FileRecorder) GetEvents() []Event {
	CloseCompressedWriter(fr.writer, fr.compressionType)
	fr.bufWriter.Flush()

	events, err := ReadEvents(fr.path, fr.compressionType)
	if err != nil {
		return nil
	}

	// Reopen the compressed writer since we closed it. zstd frames
	// concatenate, so appending after a flush stays a valid stream.
	fr.writer = NewCompressedWriter(fr.bufWriter, fr.compressionType)

	return events
}

// Clear truncates the file and resets the recorder
func (fr *FileRecorder) Clear() {
	CloseCompressedWriter(fr.writer, fr.compressionType)
	fr.bufWriter.Flush()
	fr.file.Close()

	f, err := os.OpenFile(fr.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err == nil {
		fr.file = f
		fr.bufWriter = bufio.NewWriter(f)
		fr.writer = NewCompressedWriter(fr.bufWriter, fr.compressionType)
		fr.eventCount = 0
	}
}

// Close flushes and closes the file
func (fr *FileRecorder) Close() error {
	if err := CloseCompressedWriter(fr.writer, fr.compressionType); err != nil {
		return err
	}
	if err := fr.bufWriter.Flush(); err != nil {
		return err
	}
	return fr.file.Close()
}

// ReadEvents reads a recorded trace file back as events. It is used by
// the dump command and by GetEvents.
func ReadEvents(path string, compressionType CompressionType) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %v", err)
	}
	defer f.Close()

	reader, err := NewCompressedReader(f, compressionType)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed reader: %v", err)
	}

	var events []Event
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed reading trace file: %v", err)
	}
	return events, nil
}
