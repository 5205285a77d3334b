// Package history persists publish batch reports to a local append-only log.
//
// Each record is a length-prefixed msgpack frame: a 4-byte big-endian
// payload size followed by the encoded report. Appends are atomic at the
// process level (single O_APPEND write per frame); readers tolerate a
// missing file but not a corrupt one.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/stencil/iox"
	"github.com/pithecene-io/stencil/types"
)

const (
	// lengthPrefixSize is the size of the length prefix in bytes.
	lengthPrefixSize = 4
	// maxFrameSize caps one encoded report (4 MiB). A batch report is a
	// few KiB in practice; anything near the cap is corruption.
	maxFrameSize = 4 * 1024 * 1024
)

// ErrNotFound is returned when no report matches the requested batch id.
var ErrNotFound = errors.New("batch not found in history")

// Log is an append-only history of publish batch reports.
type Log struct {
	path string
}

// New creates a history log at path. The file and its parent directory are
// created on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// DefaultPath returns the default history log location, ~/.stencil/history.log.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".stencil", "history.log"), nil
}

// Append writes one batch report to the end of the log.
func (l *Log) Append(report types.BatchReport) error {
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode batch report: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("batch report of %d bytes exceeds frame limit %d", len(payload), maxFrameSize)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer iox.DiscardClose(f)

	frame := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)

	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("append batch report: %w", err)
	}
	return nil
}

// List returns all recorded batch reports, oldest first.
// A missing history file yields an empty list, not an error.
func (l *Log) List() ([]types.BatchReport, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer iox.DiscardClose(f)

	var reports []types.BatchReport
	for {
		payload, err := readFrame(f)
		if err == io.EOF {
			return reports, nil
		}
		if err != nil {
			return nil, err
		}

		var report types.BatchReport
		if err := msgpack.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("decode batch report: %w", err)
		}
		reports = append(reports, report)
	}
}

// Find returns the report with the given batch id, or ErrNotFound.
func (l *Log) Find(batchID string) (*types.BatchReport, error) {
	reports, err := l.List()
	if err != nil {
		return nil, err
	}
	for i := range reports {
		if reports[i].BatchID == batchID {
			return &reports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
}

// readFrame reads one length-prefixed frame. io.EOF means the log ended
// cleanly at a frame boundary; a partial frame is an error.
func readFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("history log truncated: %w", err)
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("history frame of %d bytes exceeds limit %d", size, maxFrameSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("history log truncated: %w", err)
	}
	return payload, nil
}
