// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package frame

import (
	"encoding/binary"
	"fmt"
)

// Frame is the fixed 128-bit unit pushed by the bus sniffer: four 32-bit
// words, word 0 most significant (bits 127..96, the hardware's DATA0).
type Frame [4]uint32

// RecordSize is the length of one frame in the binary sink: four words,
// big-endian, word 0 first. No header, no delimiter.
const RecordSize = 16

// CSVHeader names the nine decoded columns of the text sink.
const CSVHeader = "src,req_ts,resp_ts,address,data,be,we,valid,gnt\n"

// Event holds the nine decoded fields of a frame.
type Event struct {
	Src    uint32 // source id, 4 bits
	ReqTS  uint32 // request timestamp, 32 bits
	RespTS uint32 // response timestamp, 16 bits
	Addr   uint32 // bus address
	Data   uint32 // bus data
	BE     uint32 // byte enable, 4 bits
	WE     uint32 // write flag
	Valid  uint32 // valid flag
	Gnt    uint32 // grant flag
}

// Decode unpacks the 128-bit layout into typed fields. Total over any input:
// there is no invalid bit pattern at this layer.
func (f Frame) Decode() Event {
	w0, w1, w2, w3 := f[0], f[1], f[2], f[3]
	return Event{
		Src:    (w0 >> 28) & 0xF,
		ReqTS:  (w0&0x0FFFFFFF)<<4 | w1>>28,
		RespTS: (w1 >> 12) & 0xFFFF,
		Addr:   (w1&0xFFF)<<20 | w2>>12,
		Data:   (w2&0xFFF)<<20 | w3>>12,
		BE:     (w3 >> 8) & 0xF,
		WE:     (w3 >> 7) & 0x1,
		Valid:  (w3 >> 6) & 0x1,
		Gnt:    (w3 >> 5) & 0x1,
	}
}

// Encode packs the nine fields back into a frame. Bits 4..0 of word 3 carry
// no field and come back zero; for frames produced by the sniffer IP they
// always are.
func (e Event) Encode() Frame {
	return Frame{
		(e.Src&0xF)<<28 | (e.ReqTS>>4)&0x0FFFFFFF,
		(e.ReqTS&0xF)<<28 | (e.RespTS&0xFFFF)<<12 | (e.Addr>>20)&0xFFF,
		(e.Addr&0xFFFFF)<<12 | (e.Data>>20)&0xFFF,
		(e.Data&0xFFFFF)<<12 | (e.BE&0xF)<<8 | (e.WE&1)<<7 | (e.Valid&1)<<6 | (e.Gnt&1)<<5,
	}
}

// AppendBinary appends the 16-byte binary record for f to dst.
func (f Frame) AppendBinary(dst []byte) []byte {
	for _, w := range f {
		dst = binary.BigEndian.AppendUint32(dst, w)
	}
	return dst
}

// FromBytes parses one binary record. b must hold exactly RecordSize bytes.
func FromBytes(b []byte) (Frame, error) {
	if len(b) != RecordSize {
		return Frame{}, fmt.Errorf("frame record must be %d bytes, got %d", RecordSize, len(b))
	}
	var f Frame
	for i := range f {
		f[i] = binary.BigEndian.Uint32(b[i*4:])
	}
	return f, nil
}

// AppendCSV appends one text-sink record for e to dst, terminated by a
// newline. Numeric fields in decimal, address/data as 0x-prefixed 8-digit
// hex, byte enable as one hex digit, flags as single digits.
func (e Event) AppendCSV(dst []byte) []byte {
	return fmt.Appendf(dst, "%d,%d,%d,0x%08X,0x%08X,%X,%d,%d,%d\n",
		e.Src, e.ReqTS, e.RespTS, e.Addr, e.Data, e.BE, e.WE, e.Valid, e.Gnt)
}

// ConsoleLine renders the compact one-line echo format.
func (e Event) ConsoleLine() string {
	return fmt.Sprintf("src=%d ts=%08X/%04X addr=%08X data=%08X be=%X we=%d v%d g%d",
		e.Src, e.ReqTS, e.RespTS, e.Addr, e.Data, e.BE, e.WE, e.Valid, e.Gnt)
}
