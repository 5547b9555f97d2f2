// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package frame

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ReadLog streams binary-sink records from r, calling visit for each frame
// in file order. Returns the number of frames visited. A trailing partial
// record is an error; a visit error stops the scan and is returned as-is.
func ReadLog(r io.Reader, visit func(Frame) error) (int, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	var rec [RecordSize]byte
	n := 0
	for {
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			if err == io.EOF {
				return n, nil
			}
			if err == io.ErrUnexpectedEOF {
				return n, fmt.Errorf("truncated record after %d frames", n)
			}
			return n, err
		}
		f, err := FromBytes(rec[:])
		if err != nil {
			return n, err
		}
		if err := visit(f); err != nil {
			return n, err
		}
		n++
	}
}

// ReadLogFile is ReadLog over a file path.
func ReadLogFile(path string, visit func(Frame) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open frame log: %w", err)
	}
	defer f.Close()
	return ReadLog(f, visit)
}
