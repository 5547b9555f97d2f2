// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package capture

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mbeema/bussniff/pkg/frame"
)

// sinkBufSize keeps syscalls off the writer's hot loop; both sinks are
// flushed explicitly whenever a drain pass empties the ring.
const sinkBufSize = 1 << 20

// binarySink appends raw 16-byte frame records to a file.
type binarySink struct {
	f       *os.File
	w       *bufio.Writer
	scratch []byte
}

func openBinarySink(path string) (*binarySink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open binary sink: %w", err)
	}
	return &binarySink{
		f:       f,
		w:       bufio.NewWriterSize(f, sinkBufSize),
		scratch: make([]byte, 0, frame.RecordSize),
	}, nil
}

func (s *binarySink) write(fr frame.Frame) error {
	s.scratch = fr.AppendBinary(s.scratch[:0])
	_, err := s.w.Write(s.scratch)
	return err
}

func (s *binarySink) flush() error { return s.w.Flush() }

func (s *binarySink) close() error {
	ferr := s.w.Flush()
	if cerr := s.f.Close(); cerr != nil {
		return cerr
	}
	return ferr
}

// textSink appends one decoded CSV record per frame, after a header line
// naming the nine columns.
type textSink struct {
	f       *os.File
	w       *bufio.Writer
	scratch []byte
}

func openTextSink(path string) (*textSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open text sink: %w", err)
	}
	w := bufio.NewWriterSize(f, sinkBufSize)
	if _, err := w.WriteString(frame.CSVHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write text sink header: %w", err)
	}
	return &textSink{
		f:       f,
		w:       w,
		scratch: make([]byte, 0, 64),
	}, nil
}

func (s *textSink) write(e frame.Event) error {
	s.scratch = e.AppendCSV(s.scratch[:0])
	_, err := s.w.Write(s.scratch)
	return err
}

func (s *textSink) flush() error { return s.w.Flush() }

func (s *textSink) close() error {
	ferr := s.w.Flush()
	if cerr := s.f.Close(); cerr != nil {
		return cerr
	}
	return ferr
}
