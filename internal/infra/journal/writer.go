// Package journal writes and reads the compressed tick journal of a run.
//
// A journal is a directory of zstd-compressed JSONL segments named
// <prefix>-<run>-<seq>.jsonl.zst. Each line is one events.TickRecord.
// A new segment starts every SegmentTicks records.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"

	"github.com/MRamiBalles/agentia/internal/events"
)

// Defaults for Writer.
const (
	DefaultPrefix       = "ticks"
	DefaultSegmentTicks = 500
	fileSuffix          = ".jsonl.zst"
)

// JSONLZstdWriter appends JSON values to rotating zstd segments.
type JSONLZstdWriter struct {
	dir          string
	prefix       string
	run          string
	segmentTicks int

	mu      sync.Mutex
	seq     int
	written int
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJSONLZstdWriter creates a writer. Nothing touches disk until the first Write.
func NewJSONLZstdWriter(dir, prefix, run string, segmentTicks int) *JSONLZstdWriter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if segmentTicks <= 0 {
		segmentTicks = DefaultSegmentTicks
	}
	return &JSONLZstdWriter{dir: dir, prefix: prefix, run: run, segmentTicks: segmentTicks}
}

// Write appends v as one line.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || w.written >= w.segmentTicks {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return oops.Wrapf(err, "encode journal line")
	}
	if _, err := w.w.Write(b); err != nil {
		return oops.Wrapf(err, "write journal line")
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return oops.Wrapf(err, "write journal line")
	}
	w.written++
	return w.w.Flush()
}

// Close finishes the current segment. The writer may be reused afterwards.
func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Segments returns the number of segments opened so far.
func (w *JSONLZstdWriter) Segments() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

func (w *JSONLZstdWriter) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return oops.Wrapf(err, "create journal dir %s", w.dir)
	}
	w.seq++
	path := w.segmentPath(w.seq)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return oops.Wrapf(err, "open journal segment %s", path)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return oops.Wrapf(err, "zstd encoder")
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.written = 0
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) segmentPath(seq int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s-%04d%s", w.prefix, w.run, seq, fileSuffix))
}

// TickJournal records every tick of a run. It implements events.TickRecorder.
type TickJournal struct{ w *JSONLZstdWriter }

// NewTickJournal journals run into dir.
func NewTickJournal(dir, run string, segmentTicks int) *TickJournal {
	return &TickJournal{w: NewJSONLZstdWriter(dir, DefaultPrefix, run, segmentTicks)}
}

// RecordTick appends one tick.
func (j *TickJournal) RecordTick(rec events.TickRecord) error { return j.w.Write(rec) }

// Close flushes and closes the open segment.
func (j *TickJournal) Close() error { return j.w.Close() }
