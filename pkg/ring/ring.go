// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package ring provides the lock-free single-producer/single-consumer
// frame buffer between the simulator's push path and the sink writer.
package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/mbeema/bussniff/pkg/frame"
)

// DefaultCapacity matches the sniffer IP's reference sizing: 65536 slots,
// about 1 MiB of frame storage.
const DefaultCapacity = 1 << 16

// Buffer is an SPSC ring of frames. Exactly one goroutine may call TryPush
// and exactly one may call Drain; neither side ever blocks. One slot is kept
// permanently free so that head == tail always means empty.
type Buffer struct {
	slots []frame.Frame
	mask  uint32

	head atomic.Uint32 // next slot to write; owned by the producer
	tail atomic.Uint32 // next slot to read; owned by the consumer
}

// New allocates a ring. capacity must be a power of two and at least 2;
// capacity-1 is the maximum number of in-flight frames.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring capacity must be a power of two >= 2, got %d", capacity)
	}
	return &Buffer{
		slots: make([]frame.Frame, capacity),
		mask:  uint32(capacity - 1),
	}, nil
}

// Capacity returns the slot count (one slot is never occupied).
func (b *Buffer) Capacity() int { return len(b.slots) }

// Used returns the number of frames currently in flight.
func (b *Buffer) Used() int {
	return int((b.head.Load() - b.tail.Load()) & b.mask)
}

// TryPush appends f and returns true, or returns false immediately when the
// ring is full. Producer-only. The head store publishes the written slot to
// the consumer.
func (b *Buffer) TryPush(f frame.Frame) bool {
	h := b.head.Load()
	t := b.tail.Load()
	if (h-t)&b.mask == b.mask {
		return false // full: drop-newest, never overwrite, never block
	}
	b.slots[h] = f
	b.head.Store((h + 1) & b.mask)
	return true
}

// Drain visits every frame currently available, oldest first, and returns
// how many were visited. Consumer-only. The tail store is deferred until the
// whole pass is done, so the producer reclaims the slots in one step.
func (b *Buffer) Drain(visit func(frame.Frame)) int {
	t := b.tail.Load()
	h := b.head.Load()
	n := 0
	for t != h {
		visit(b.slots[t])
		t = (t + 1) & b.mask
		n++
	}
	if n > 0 {
		b.tail.Store(t)
	}
	return n
}
