// Package lidar routes the converter's log output. A conversion produces
// three kinds of lines at very different rates: a handful about the run
// itself, one per written sample, and one per received packet. Each kind
// has its own stream so the CLI can send run events to stderr while
// keeping the per-packet firehose off unless --trace is given.
package lidar

import (
	"io"
	"log"
	"sync"
)

// LogWriters selects the destination of each stream. A nil writer
// silences that stream.
type LogWriters struct {
	// Ops receives run start and stop, source and catalog events, rejected
	// packets and write retries.
	Ops io.Writer
	// Diag receives one line per sample written or scan discarded.
	Diag io.Writer
	// Trace receives one line per packet read or accumulated.
	Trace io.Writer
}

type stream int

const (
	opsStream stream = iota
	diagStream
	traceStream
	numStreams
)

// Ops lines keep the bare prefix; the others are tagged so that streams
// sharing a writer can still be told apart.
var streamPrefix = [numStreams]string{
	opsStream:   "[lidar] ",
	diagStream:  "[lidar diag] ",
	traceStream: "[lidar trace] ",
}

var (
	mu      sync.RWMutex
	loggers [numStreams]*log.Logger
)

// SetLogWriters replaces all three destinations at once. The zero
// LogWriters silences everything, which is also the state before the
// first call.
func SetLogWriters(w LogWriters) {
	dst := [numStreams]io.Writer{opsStream: w.Ops, diagStream: w.Diag, traceStream: w.Trace}
	mu.Lock()
	defer mu.Unlock()
	for s, out := range dst {
		if out == nil {
			loggers[s] = nil
			continue
		}
		loggers[s] = log.New(out, streamPrefix[s], log.LstdFlags|log.Lmicroseconds)
	}
}

func printf(s stream, format string, args []interface{}) {
	mu.RLock()
	l := loggers[s]
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs a run-level event.
func Opsf(format string, args ...interface{}) { printf(opsStream, format, args) }

// Diagf logs a per-sample line.
func Diagf(format string, args ...interface{}) { printf(diagStream, format, args) }

// Tracef logs a per-packet line.
func Tracef(format string, args ...interface{}) { printf(traceStream, format, args) }
