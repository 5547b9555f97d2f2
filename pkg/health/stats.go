// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package health

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Stats tracks self-monitoring counters for a capture session. All counters
// are monotonically increasing; the producer side only ever touches
// FramesAccepted, FramesDropped and FramesRejected.
type Stats struct {
	startTime time.Time

	FramesAccepted atomic.Int64 // pushes accepted into the ring
	FramesDropped  atomic.Int64 // pushes refused because the ring was full
	FramesRejected atomic.Int64 // pushes refused for a malformed word count
	FramesWritten  atomic.Int64 // frames persisted to both sinks
	BytesWritten   atomic.Int64 // bytes appended to the binary sink
	ConsoleLines   atomic.Int64 // sampled echo lines emitted
	SinkFlushes    atomic.Int64 // flush passes after the ring drained empty
	WriteErrors    atomic.Int64 // sink write failures (best-effort, not retried)
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{
		startTime: time.Now(),
	}
}

// Uptime returns time since the stats were created.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds  float64
	Goroutines     int
	MemoryRSSBytes uint64
	FramesAccepted int64
	FramesDropped  int64
	FramesRejected int64
	FramesWritten  int64
	BytesWritten   int64
	ConsoleLines   int64
	SinkFlushes    int64
	WriteErrors    int64
}

// Snapshot returns current stats.
func (s *Stats) Snapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		UptimeSeconds:  s.Uptime().Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		MemoryRSSBytes: memStats.Sys,
		FramesAccepted: s.FramesAccepted.Load(),
		FramesDropped:  s.FramesDropped.Load(),
		FramesRejected: s.FramesRejected.Load(),
		FramesWritten:  s.FramesWritten.Load(),
		BytesWritten:   s.BytesWritten.Load(),
		ConsoleLines:   s.ConsoleLines.Load(),
		SinkFlushes:    s.SinkFlushes.Load(),
		WriteErrors:    s.WriteErrors.Load(),
	}
}

// PrometheusMetrics returns stats in Prometheus text exposition format.
func (s *Stats) PrometheusMetrics() string {
	snap := s.Snapshot()
	return prometheusFormat(snap)
}

func prometheusFormat(snap Snapshot) string {
	var b []byte
	b = appendMetric(b, "bussniff_uptime_seconds", "gauge", "Capture uptime in seconds", snap.UptimeSeconds)
	b = appendMetric(b, "bussniff_goroutines", "gauge", "Number of goroutines", float64(snap.Goroutines))
	b = appendMetric(b, "bussniff_memory_rss_bytes", "gauge", "Memory usage in bytes", float64(snap.MemoryRSSBytes))
	b = appendMetric(b, "bussniff_frames_accepted_total", "counter", "Total frames accepted into the ring", float64(snap.FramesAccepted))
	b = appendMetric(b, "bussniff_frames_dropped_total", "counter", "Total frames dropped on a full ring", float64(snap.FramesDropped))
	b = appendMetric(b, "bussniff_frames_rejected_total", "counter", "Total pushes rejected for bad word count", float64(snap.FramesRejected))
	b = appendMetric(b, "bussniff_frames_written_total", "counter", "Total frames written to both sinks", float64(snap.FramesWritten))
	b = appendMetric(b, "bussniff_sink_bytes_written_total", "counter", "Total bytes written to the binary sink", float64(snap.BytesWritten))
	b = appendMetric(b, "bussniff_console_lines_total", "counter", "Total sampled console lines", float64(snap.ConsoleLines))
	b = appendMetric(b, "bussniff_sink_flushes_total", "counter", "Total sink flush passes", float64(snap.SinkFlushes))
	b = appendMetric(b, "bussniff_sink_write_errors_total", "counter", "Total sink write failures", float64(snap.WriteErrors))
	return string(b)
}

func appendMetric(b []byte, name, typ, help string, value float64) []byte {
	b = append(b, "# HELP "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, help...)
	b = append(b, '\n')
	b = append(b, "# TYPE "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, typ...)
	b = append(b, '\n')
	b = append(b, name...)
	b = append(b, ' ')
	b = appendFloat(b, value)
	b = append(b, '\n')
	return b
}

func appendFloat(b []byte, f float64) []byte {
	// Use simple formatting; avoid importing strconv for this
	if f == float64(int64(f)) {
		return append(b, []byte(intToStr(int64(f)))...)
	}
	return append(b, []byte(floatToStr(f))...)
}

func intToStr(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte(n%10) + '0'
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func floatToStr(f float64) string {
	// Simple 6 decimal place formatting
	neg := f < 0
	if neg {
		f = -f
	}
	whole := int64(f)
	frac := int64((f - float64(whole)) * 1000000)
	if frac < 0 {
		frac = -frac
	}

	s := intToStr(whole) + "."
	fracStr := intToStr(frac)
	for len(fracStr) < 6 {
		fracStr = "0" + fracStr
	}
	s += fracStr

	// Trim trailing zeros after decimal
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}

	if neg {
		s = "-" + s
	}
	return s
}
