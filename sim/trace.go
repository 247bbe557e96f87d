// sim/trace.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	av "github.com/mmp/flightmode/aviation"
	"github.com/mmp/flightmode/nav"
)

// TraceVersion is incremented whenever the trace record format changes.
const TraceVersion = 1

const TraceSuffix = ".trace.msgpack.zst"

var ErrTraceVersion = errors.New("unsupported trace version")

// TraceHeader is the first value in a trace file.
type TraceHeader struct {
	Version  int         `msgpack:"v"`
	RunID    string      `msgpack:"id"`
	Scenario string      `msgpack:"s"`
	Params   nav.Params  `msgpack:"p"`
	Home     av.Location `msgpack:"h"`
	TickMs   int64       `msgpack:"tick"`
}

// TraceRecord is the state after one tick.
type TraceRecord struct {
	Time     nav.Millis          `msgpack:"t"`
	Mode     nav.Number          `msgpack:"m"`
	Location av.Location         `msgpack:"l"`
	Heading  float32             `msgpack:"h"`
	Targets  nav.AttitudeTargets `msgpack:"a"`
	// RTL holds the RTL activation state while RTL is active.
	RTL *nav.RTLState `msgpack:"rtl,omitempty"`
}

type Trace struct {
	Header  TraceHeader
	Records []TraceRecord
}

// ModeChanges returns the records at which the mode differs from the
// previous record.
func (t *Trace) ModeChanges() []TraceRecord {
	var changes []TraceRecord
	for i, r := range t.Records {
		if i == 0 || r.Mode != t.Records[i-1].Mode {
			changes = append(changes, r)
		}
	}
	return changes
}

// TraceWriter writes a stream of msgpack-encoded trace records,
// compressed with zstd.
type TraceWriter struct {
	zw  *zstd.Encoder
	enc *msgpack.Encoder
	n   int
}

func NewTraceWriter(w io.Writer, hdr TraceHeader) (*TraceWriter, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	tw := &TraceWriter{zw: zw, enc: msgpack.NewEncoder(zw)}
	hdr.Version = TraceVersion
	if err := tw.enc.Encode(hdr); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to encode trace header: %w", err)
	}
	return tw, nil
}

func (tw *TraceWriter) Write(r TraceRecord) error {
	if err := tw.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode trace record %d: %w", tw.n, err)
	}
	tw.n++
	return nil
}

// Records returns the number of records written so far.
func (tw *TraceWriter) Records() int { return tw.n }

// Close flushes the compressed stream; it does not close the underlying
// writer.
func (tw *TraceWriter) Close() error {
	if err := tw.zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// ReadTrace reads a trace written by TraceWriter.
func ReadTrace(r io.Reader) (*Trace, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var t Trace
	if err := dec.Decode(&t.Header); err != nil {
		return nil, fmt.Errorf("failed to decode trace header: %w", err)
	}
	if t.Header.Version != TraceVersion {
		return nil, fmt.Errorf("%d: %w", t.Header.Version, ErrTraceVersion)
	}

	for {
		var rec TraceRecord
		if err := dec.Decode(&rec); errors.Is(err, io.EOF) {
			return &t, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode trace record %d: %w", len(t.Records), err)
		}
		t.Records = append(t.Records, rec)
	}
}
