// Package samplelog persists decoded force samples as an append-only CSV log.
//
// Every Append is flushed and synced before it returns, so a crash mid-session loses
// at most the record being written. The format is a header row "weight,time" followed
// by one "<weight with one decimal>,<timestamp in microseconds>" row per sample.
package samplelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/protocol"
)

const (
	// FilePrefix and FileExt form the log name: measurements_<session>.csv
	FilePrefix = "measurements_"
	FileExt    = ".csv"

	// WeightPrecision is the number of decimals kept for weights
	WeightPrecision = 1

	sessionTimeLayout = "2006-01-02_15-04-05"
)

// Header is the first row of every log
var Header = []string{"weight", "time"}

// Record is one persisted sample
type Record struct {
	Weight      float64
	TimestampUs uint32
}

// Seconds returns the device timestamp in seconds
func (r Record) Seconds() float64 {
	return float64(r.TimestampUs) / 1e6
}

// NewSessionID returns a timestamped session identity with a random suffix, e.g.
// 2026-10-19_14-03-07-1b4e28ba.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.Format(sessionTimeLayout), strings.Split(uuid.NewString(), "-")[0])
}

// FileName returns the log file name for a session
func FileName(sessionID string) string {
	return FilePrefix + sessionID + FileExt
}

// Log is the append-only sample log of one session.
// Append is safe for concurrent use; the session feeds it from a single goroutine.
type Log struct {
	mu        sync.Mutex
	file      *os.File
	writer    *csv.Writer
	path      string
	sessionID string
	count     int
	closed    bool
	logger    *logrus.Logger
}

// Open creates a new log for sessionID inside dir. It fails with CreateFailed when the
// file already exists or cannot be created; a log whose header cannot be written is
// removed again.
func Open(dir, sessionID string, logger *logrus.Logger) (*Log, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, &LogError{Kind: CreateFailed, Err: errors.New("session id is empty")}
	}
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, FileName(sessionID))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"error": err,
		}).Error("Failed to create sample log")
		return nil, &LogError{Kind: CreateFailed, Path: path, Err: err}
	}

	l := &Log{
		file:      file,
		writer:    csv.NewWriter(file),
		path:      path,
		sessionID: sessionID,
		logger:    logger,
	}

	if err := l.writeRow(Header); err != nil {
		_ = file.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			logger.WithField("error", rmErr).Warn("Failed to remove incomplete sample log")
		}
		return nil, &LogError{Kind: CreateFailed, Path: path, Err: err}
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"session": sessionID,
	}).Info("Sample log created")
	return l, nil
}

// Append writes one sample and syncs it to disk before returning. Samples that cannot
// be formatted are skipped with RecordSkipped; the log stays usable.
func (l *Log) Append(s protocol.Sample) error {
	weight := float64(s.Weight)
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		l.logger.WithFields(logrus.Fields{
			"weight":       s.Weight,
			"timestamp_us": s.TimestampUs,
		}).Warn("Skipping sample with non-finite weight")
		return &LogError{Kind: RecordSkipped, Path: l.path, Err: fmt.Errorf("weight %v is not finite", s.Weight)}
	}

	row := []string{FormatWeight(weight), strconv.FormatUint(uint64(s.TimestampUs), 10)}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &LogError{Kind: Closed, Path: l.path}
	}

	if err := l.writeRow(row); err != nil {
		l.logger.WithFields(logrus.Fields{
			"path":  l.path,
			"error": err,
		}).Error("Failed to append sample")
		return &LogError{Kind: AppendFailed, Path: l.path, Err: err}
	}
	l.count++
	return nil
}

// writeRow writes, flushes and syncs a single row. Callers hold mu or own l exclusively.
func (l *Log) writeRow(row []string) error {
	if err := l.writer.Write(row); err != nil {
		return err
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close closes the backing file. Further appends fail with Closed; Records keeps working.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	l.writer.Flush()
	flushErr := l.writer.Error()
	closeErr := l.file.Close()

	l.logger.WithFields(logrus.Fields{
		"path":    l.path,
		"samples": l.count,
	}).Debug("Sample log closed")

	return errors.Join(flushErr, closeErr)
}

// Path returns the log file path
func (l *Log) Path() string {
	return l.path
}

// SessionID returns the session identity the log was created for
func (l *Log) SessionID() string {
	return l.sessionID
}

// Count returns the number of samples appended so far
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Records iterates the persisted samples in insertion order.
func (l *Log) Records() iter.Seq2[Record, error] {
	return ReadFile(l.path)
}

// ReadFile returns a lazy iterator over the records of the log at path. Each range
// over the sequence re-opens the file, so the sequence can be iterated again.
// Iteration stops after the first error.
func ReadFile(path string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		file, err := os.Open(path)
		if err != nil {
			yield(Record{}, &LogError{Kind: ReadFailed, Path: path, Err: err})
			return
		}
		defer file.Close()

		for rec, err := range Decode(file) {
			if err != nil {
				err = &LogError{Kind: ReadFailed, Path: path, Err: err}
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Decode iterates the records of a log read from r. The header row is validated.
func Decode(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = len(Header)
		reader.TrimLeadingSpace = true

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(Record{}, err)
			return
		}
		if !equalFold(header, Header) {
			yield(Record{}, fmt.Errorf("unexpected header %v, want %v", header, Header))
			return
		}

		for {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, err)
				return
			}

			rec, err := ParseRow(row)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// ParseRow parses one data row
func ParseRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("row has %d fields, want %d", len(row), len(Header))
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid weight %q: %w", row[0], err)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return Record{}, fmt.Errorf("invalid weight %q: not finite", row[0])
	}
	ts, err := strconv.ParseUint(strings.TrimSpace(row[1]), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid time %q: %w", row[1], err)
	}
	return Record{Weight: weight, TimestampUs: uint32(ts)}, nil
}

// FormatWeight renders a weight with WeightPrecision decimals
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', WeightPrecision, 64)
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}
