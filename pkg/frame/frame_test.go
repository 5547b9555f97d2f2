package frame

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeKnownFrame(t *testing.T) {
	f := Frame{0xA0000000, 0x00000000, 0x00000000, 0x000000C0}
	e := f.Decode()
	if e.Src != 0xA {
		t.Errorf("src = %#X, want 0xA", e.Src)
	}
	if e.WE != 1 {
		t.Errorf("we = %d, want 1", e.WE)
	}
	if e.Valid != 1 {
		t.Errorf("valid = %d, want 1", e.Valid)
	}
	if e.Gnt != 0 {
		t.Errorf("gnt = %d, want 0", e.Gnt)
	}
	if e.ReqTS != 0 || e.RespTS != 0 || e.Addr != 0 || e.Data != 0 || e.BE != 0 {
		t.Errorf("zero fields decoded non-zero: %+v", e)
	}
}

func TestDecodeFieldPlacement(t *testing.T) {
	tests := []struct {
		name  string
		f     Frame
		check func(Event) bool
	}{
		{"src top nibble", Frame{0xF0000000, 0, 0, 0}, func(e Event) bool { return e.Src == 0xF }},
		{"req_ts spans w0/w1", Frame{0x0FFFFFFF, 0xF0000000, 0, 0}, func(e Event) bool { return e.ReqTS == 0xFFFFFFFF }},
		{"resp_ts mid w1", Frame{0, 0x0FFFF000, 0, 0}, func(e Event) bool { return e.RespTS == 0xFFFF }},
		{"addr spans w1/w2", Frame{0, 0x00000FFF, 0xFFFFF000, 0}, func(e Event) bool { return e.Addr == 0xFFFFFFFF }},
		{"data spans w2/w3", Frame{0, 0, 0x00000FFF, 0xFFFFF000}, func(e Event) bool { return e.Data == 0xFFFFFFFF }},
		{"be", Frame{0, 0, 0, 0x00000F00}, func(e Event) bool { return e.BE == 0xF }},
		{"we", Frame{0, 0, 0, 0x00000080}, func(e Event) bool { return e.WE == 1 }},
		{"valid", Frame{0, 0, 0, 0x00000040}, func(e Event) bool { return e.Valid == 1 }},
		{"gnt", Frame{0, 0, 0, 0x00000020}, func(e Event) bool { return e.Gnt == 1 }},
	}
	for _, tt := range tests {
		e := tt.f.Decode()
		if !tt.check(e) {
			t.Errorf("%s: wrong decode: %+v", tt.name, e)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Bits 4..0 of word 3 carry no field, so round-trip holds for frames
	// with those bits clear (all frames the sniffer IP emits).
	frames := []Frame{
		{0, 0, 0, 0},
		{0xA0000000, 0x00000000, 0x00000000, 0x000000E0},
		{0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFE0},
		{0x12345678, 0x9ABCDEF0, 0x0FEDCBA9, 0x87654320},
		{0x5A5A5A5A, 0xA5A5A5A5, 0x5A5A5A5A, 0xA5A5A5A0},
	}
	for _, f := range frames {
		got := f.Decode().Encode()
		if got != f {
			t.Errorf("round trip %08X: got %08X", f, got)
		}
	}
}

func TestDecodeIsPure(t *testing.T) {
	f := Frame{0xDEADBEEF, 0xCAFEBABE, 0x01234567, 0x89ABCDEF}
	first := f.Decode()
	for i := 0; i < 100; i++ {
		if f.Decode() != first {
			t.Fatal("decode of the same frame changed between calls")
		}
	}
}

func TestBinaryRecordRoundTrip(t *testing.T) {
	f := Frame{0x11223344, 0x55667788, 0x99AABBCC, 0xDDEEFF00}
	rec := f.AppendBinary(nil)
	if len(rec) != RecordSize {
		t.Fatalf("record length = %d, want %d", len(rec), RecordSize)
	}
	// Word 0 first, big-endian within each word.
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00}
	if !bytes.Equal(rec, want) {
		t.Fatalf("record bytes = %X, want %X", rec, want)
	}
	back, err := FromBytes(rec)
	if err != nil {
		t.Fatal(err)
	}
	if back != f {
		t.Fatalf("parsed %08X, want %08X", back, f)
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 15)); err == nil {
		t.Error("15-byte record accepted")
	}
	if _, err := FromBytes(make([]byte, 17)); err == nil {
		t.Error("17-byte record accepted")
	}
}

func TestAppendCSV(t *testing.T) {
	e := Event{Src: 10, ReqTS: 4096, RespTS: 7, Addr: 0x1000, Data: 0xDEADBEEF, BE: 0xF, WE: 1, Valid: 1, Gnt: 0}
	got := string(e.AppendCSV(nil))
	want := "10,4096,7,0x00001000,0xDEADBEEF,F,1,1,0\n"
	if got != want {
		t.Errorf("csv record = %q, want %q", got, want)
	}
}

func TestConsoleLine(t *testing.T) {
	e := Event{Src: 3, ReqTS: 0x1A2B, RespTS: 0x3C, Addr: 0x4000, Data: 0x55, BE: 0xC, WE: 0, Valid: 1, Gnt: 1}
	got := e.ConsoleLine()
	want := "src=3 ts=00001A2B/003C addr=00004000 data=00000055 be=C we=0 v1 g1"
	if got != want {
		t.Errorf("console line = %q, want %q", got, want)
	}
}

func TestReadLog(t *testing.T) {
	frames := []Frame{
		{1, 2, 3, 4},
		{0xA0000000, 0, 0, 0xE0},
		{5, 6, 7, 8},
	}
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f.AppendBinary(nil))
	}

	var got []Frame
	n, err := ReadLog(&buf, func(f Frame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != len(frames) {
		t.Fatalf("read %d frames, want %d", n, len(frames))
	}
	for i := range frames {
		if got[i] != frames[i] {
			t.Errorf("frame %d = %08X, want %08X", i, got[i], frames[i])
		}
	}
}

func TestReadLogTruncated(t *testing.T) {
	rec := Frame{1, 2, 3, 4}.AppendBinary(nil)
	r := bytes.NewReader(append(rec, 0xAB, 0xCD)) // one full record + 2 stray bytes
	n, err := ReadLog(r, func(Frame) error { return nil })
	if n != 1 {
		t.Errorf("read %d full frames, want 1", n)
	}
	if err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Errorf("expected truncation error, got %v", err)
	}
}
