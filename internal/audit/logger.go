// Package audit keeps the append-only, per-workflow daily record of queue
// proposals, applies, validation batches and calibration passes.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// dayLayout names one log file per UTC day
const dayLayout = "2006-01-02"

// Logger appends records to <dir>/<YYYY-MM-DD>.jsonl
type Logger struct {
	workflow string
	dir      string

	// now is swapped in tests
	now func() time.Time

	mu sync.Mutex
}

// NewLogger creates a logger writing into dir. The directory is created on
// first write.
func NewLogger(workflow, dir string) *Logger {
	return &Logger{
		workflow: workflow,
		dir:      dir,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Workflow returns the workflow name stamped on records
func (l *Logger) Workflow() string {
	return l.workflow
}

// Dir returns the log directory
func (l *Logger) Dir() string {
	return l.dir
}

// Record builds and appends a record of the given type
func (l *Logger) Record(recordType RecordType, fields map[string]any) (*Record, error) {
	rec := NewRecord(recordType, l.workflow).WithFields(fields)
	rec.Timestamp = l.now()
	if err := l.Append(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Append writes rec as one JSON line into the file for rec's day
func (l *Logger) Append(rec *Record) error {
	if rec.Workflow == "" {
		rec.Workflow = l.workflow
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(l.PathFor(rec.Timestamp), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n", line); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// PathFor returns the log file holding records of the given day
func (l *Logger) PathFor(day time.Time) string {
	return filepath.Join(l.dir, day.UTC().Format(dayLayout)+".jsonl")
}

// Read returns all records logged on the given day, in write order.
// A day with no log file yields no records.
func (l *Logger) Read(day time.Time) ([]*Record, error) {
	f, err := os.Open(l.PathFor(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("audit log %s line %d: %w", filepath.Base(f.Name()), line, err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return records, nil
}

// Days lists the days that have a log file, oldest first
func (l *Logger) Days() ([]time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	days := make([]time.Time, 0, len(matches))
	for _, m := range matches {
		day, err := time.Parse(dayLayout, strings.TrimSuffix(filepath.Base(m), ".jsonl"))
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	return days, nil
}
