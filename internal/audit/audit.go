// Package audit records one JSON line per launch so past runs can be
// listed with gtburstctl history.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"gtburst/pkg/launch"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry represents a single launch record.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	RunID     string          `json:"run_id"`
	Mode      string          `json:"mode"`
	Command   string          `json:"command"`
	Args      []string        `json:"args"`
	Cwd       string          `json:"cwd"`
	Identity  launch.Identity `json:"identity"`
	ExitCode  int             `json:"exit_code"`
	Duration  float64         `json:"duration_ms,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Logger appends launch records to a JSON-lines file. The zero Logger, and
// a nil one, record nothing.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewLogger opens path for appending, creating its directory. An empty path
// gives a Logger that records nothing.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return &Logger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	enc := json.NewEncoder(file)
	// Shell command lines keep their & < > readable
	enc.SetEscapeHTML(false)
	return &Logger{file: file, enc: enc}, nil
}

// Record appends the outcome of one launch. Shell launches are recorded by
// their command line, the others by interpreter and arguments.
func (l *Logger) Record(inv *launch.Invocation, mode string, code int, runErr error, elapsed time.Duration) error {
	entry := Entry{
		RunID:    inv.RunID,
		Mode:     mode,
		Command:  inv.Interpreter,
		Args:     inv.Args,
		Cwd:      inv.Cwd,
		Identity: inv.Identity,
		ExitCode: code,
		Duration: float64(elapsed.Microseconds()) / 1000,
	}
	switch {
	case inv.Shell != "":
		entry.Command = inv.Shell
		entry.Args = nil
	case inv.Script != "":
		entry.Args = inv.Argv()[1:]
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	return l.Log(entry)
}

// Log appends entry, stamping it with the current time when it has none.
func (l *Logger) Log(entry Entry) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enc == nil {
		return nil
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := l.enc.Encode(entry); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// Close closes the history file. Later calls to Log record nothing.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	return err
}

// Read reads all entries from the specified file. A missing file yields
// no entries and no error.
func Read(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Skip malformed lines
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("read history file: %w", err)
	}

	return entries, nil
}

// Last returns at most n of the most recent entries, oldest first.
func Last(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}
