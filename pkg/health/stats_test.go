package health

import (
	"strings"
	"testing"
)

func TestSnapshotCountersMatch(t *testing.T) {
	s := NewStats()
	s.FramesAccepted.Add(100)
	s.FramesDropped.Add(3)
	s.FramesWritten.Add(97)
	s.BytesWritten.Add(97 * 16)

	snap := s.Snapshot()
	if snap.FramesAccepted != 100 {
		t.Errorf("accepted = %d, want 100", snap.FramesAccepted)
	}
	if snap.FramesDropped != 3 {
		t.Errorf("dropped = %d, want 3", snap.FramesDropped)
	}
	if snap.BytesWritten != 97*16 {
		t.Errorf("bytes = %d, want %d", snap.BytesWritten, 97*16)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("uptime negative: %f", snap.UptimeSeconds)
	}
}

func TestPrometheusFormat(t *testing.T) {
	s := NewStats()
	s.FramesAccepted.Add(42)
	s.FramesDropped.Add(7)

	out := s.PrometheusMetrics()
	for _, want := range []string{
		"bussniff_frames_accepted_total 42",
		"bussniff_frames_dropped_total 7",
		"# TYPE bussniff_frames_accepted_total counter",
		"# TYPE bussniff_uptime_seconds gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestIntToStr(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"}, {1, "1"}, {-1, "-1"}, {65535, "65535"}, {-1048576, "-1048576"},
	}
	for _, tt := range tests {
		if got := intToStr(tt.in); got != tt.want {
			t.Errorf("intToStr(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFloatToStr(t *testing.T) {
	if got := floatToStr(1.5); got != "1.5" {
		t.Errorf("floatToStr(1.5) = %q", got)
	}
	if got := floatToStr(2.0); got != "2" {
		t.Errorf("floatToStr(2.0) = %q", got)
	}
}
