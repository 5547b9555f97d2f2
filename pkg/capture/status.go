// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package capture

import (
	"time"

	"go.uber.org/zap"
)

// reportStatus logs a periodic throughput line from the writer goroutine,
// with process CPU/RSS when /proc is readable.
func (s *Session) reportStatus(window time.Duration, written int64) {
	rate := 0.0
	if window > 0 {
		rate = float64(written) / window.Seconds()
	}

	fields := []zap.Field{
		zap.Float64("frames_per_sec", rate),
		zap.Int64("frames_accepted", s.stats.FramesAccepted.Load()),
		zap.Int64("frames_dropped", s.stats.FramesDropped.Load()),
		zap.Int64("write_errors", s.stats.WriteErrors.Load()),
		zap.Int("ring_used", s.ring.Used()),
	}

	if s.proc != nil {
		if cpuPct, err := s.proc.CPUPercent(); err == nil {
			fields = append(fields, zap.Float64("cpu_pct", cpuPct))
		}
		if memInfo, err := s.proc.MemoryInfo(); err == nil {
			fields = append(fields, zap.Uint64("rss_bytes", memInfo.RSS))
		}
	}

	s.logger.Info("capture status", fields...)
}
