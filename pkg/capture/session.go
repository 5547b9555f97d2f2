// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package capture implements the bus-sniffer capture session: a lock-free
// SPSC ring between the simulator's synchronous push path and a background
// writer that persists every frame to a binary log and a CSV log, with an
// optional sampled console echo.
package capture

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/mbeema/bussniff/pkg/config"
	"github.com/mbeema/bussniff/pkg/frame"
	"github.com/mbeema/bussniff/pkg/health"
	"github.com/mbeema/bussniff/pkg/ring"
)

// Session lifecycle: Uninitialized → Running → Stopped, no restart.
const (
	stateUninit uint32 = iota
	stateStarting
	stateRunning
	stateStopped
)

// Session owns one capture pipeline. Push is safe to call from exactly one
// producer goroutine; Close may be called from anywhere, any number of times.
// The session starts lazily on the first well-formed push so the simulator
// side needs no explicit init call.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger
	stats  *health.Stats

	state   atomic.Uint32
	running atomic.Bool

	ring    *ring.Buffer
	bin     *binarySink
	txt     *textSink
	console io.Writer

	echoEnabled atomic.Bool
	echoEvery   atomic.Int64
	echoCount   uint64 // writer-owned sample counter

	// Writer-owned flags: a failing sink degrades capture but is logged
	// only once, never retried, and never blocks the producer.
	binErrLogged bool
	txtErrLogged bool
	dirty        bool

	proc *process.Process // self, for status reports

	writerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// New creates a session. Nothing is allocated and no file is opened until
// the first accepted push.
func New(cfg *config.Config, logger *zap.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:     cfg,
		logger:  logger,
		stats:   health.NewStats(),
		console: os.Stderr,
	}
	s.echoEnabled.Store(cfg.Console.Echo)
	every := cfg.Console.Every
	if every < 1 {
		every = 1
	}
	s.echoEvery.Store(int64(every))
	return s
}

// Stats exposes the session's self-monitoring counters.
func (s *Session) Stats() *health.Stats { return s.stats }

// SetConsoleEcho updates the echo switch and sampling period on a running
// session. Safe to call concurrently with the writer.
func (s *Session) SetConsoleEcho(enabled bool, every int) {
	if every < 1 {
		every = 1
	}
	s.echoEnabled.Store(enabled)
	s.echoEvery.Store(int64(every))
}

// Push offers one frame to the capture pipeline. It never blocks and never
// panics: the return value is the only producer-observable outcome. nwords
// must be 4 or the push is rejected without starting the session. streamID
// is accepted but not interpreted (reserved for multi-stream capture).
// Returns false when rejected, dropped on a full ring, or pushed after Close.
func (s *Session) Push(streamID, nwords int, w0, w1, w2, w3 uint32) bool {
	_ = streamID
	if nwords != 4 {
		s.stats.FramesRejected.Add(1)
		return false
	}
	if s.state.Load() != stateRunning && !s.ensureStarted() {
		return false
	}
	if !s.ring.TryPush(frame.Frame{w0, w1, w2, w3}) {
		s.stats.FramesDropped.Add(1)
		return false
	}
	s.stats.FramesAccepted.Add(1)
	return true
}

// ensureStarted performs the lazy, CAS-guarded session start. Only one
// producer is supported; the guard exists so a second caller can never
// double-initialize, it merely waits out the winner's start.
func (s *Session) ensureStarted() bool {
	for {
		switch s.state.Load() {
		case stateRunning:
			return true
		case stateStopped:
			return false
		case stateUninit:
			if s.state.CompareAndSwap(stateUninit, stateStarting) {
				s.start()
				s.state.Store(stateRunning)
				return true
			}
		case stateStarting:
			runtime.Gosched()
		}
	}
}

// start allocates the ring, opens both sinks and spawns the writer. Any
// failure here is fatal: a half-initialized session would silently discard
// every frame for the rest of the simulation, which is worse than dying.
func (s *Session) start() {
	rb, err := ring.New(s.cfg.Capture.RingCapacity)
	if err != nil {
		s.logger.Fatal("allocate frame ring", zap.Error(err))
	}

	bin, err := openBinarySink(s.cfg.Capture.BinaryPath)
	if err != nil {
		s.logger.Fatal("open binary sink", zap.Error(err))
	}
	txt, err := openTextSink(s.cfg.Capture.TextPath)
	if err != nil {
		bin.close()
		s.logger.Fatal("open text sink", zap.Error(err))
	}

	s.ring = rb
	s.bin = bin
	s.txt = txt

	if s.cfg.Capture.StatusInterval > 0 {
		if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
			s.proc = p
		}
	}

	s.writerDone = make(chan struct{})
	s.running.Store(true)
	go s.writerLoop()

	s.logger.Info("capture session started",
		zap.String("binary_sink", s.cfg.Capture.BinaryPath),
		zap.String("text_sink", s.cfg.Capture.TextPath),
		zap.Int("ring_capacity", rb.Capacity()),
		zap.Bool("console_echo", s.echoEnabled.Load()),
		zap.Int64("echo_every", s.echoEvery.Load()),
	)
}

// Close stops the writer, waits for its final drain, then flushes and
// releases both sinks exactly once. A Close before any push is a no-op;
// repeated Close calls return the first result. Pushes after Close are
// rejected, the session does not restart.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var prev uint32
		for {
			prev = s.state.Load()
			if prev == stateStarting {
				// A first push is mid-start; let it finish so ownership
				// of the sinks is unambiguous.
				runtime.Gosched()
				continue
			}
			if s.state.CompareAndSwap(prev, stateStopped) {
				break
			}
		}
		if prev != stateRunning {
			return // never started: no resources to release
		}

		s.running.Store(false)
		select {
		case <-s.writerDone:
		case <-time.After(5 * time.Second):
			// Bounded wait: shutdown must not hang behind a stalled sink.
			s.logger.Warn("sink writer did not stop in time, releasing sinks anyway")
		}

		if err := s.bin.close(); err != nil {
			s.closeErr = fmt.Errorf("close binary sink: %w", err)
		}
		if err := s.txt.close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("close text sink: %w", err)
		}
		s.ring = nil

		s.logger.Info("capture session closed",
			zap.Int64("frames_accepted", s.stats.FramesAccepted.Load()),
			zap.Int64("frames_written", s.stats.FramesWritten.Load()),
			zap.Int64("frames_dropped", s.stats.FramesDropped.Load()),
		)
	})
	return s.closeErr
}

// writerLoop is the consumer side: drain everything available, flush both
// sinks once the ring is empty, sleep briefly, poll again. On stop it makes
// one final drain pass after a short grace period so a push that raced the
// stop flag still reaches the log.
func (s *Session) writerLoop() {
	defer close(s.writerDone)

	statusEvery := s.cfg.Capture.StatusInterval
	lastStatus := time.Now()
	var lastWritten int64

	for s.running.Load() {
		if s.ring.Drain(s.writeFrame) > 0 {
			continue // keep pace with bursts before flushing
		}
		s.flushSinks()

		if statusEvery > 0 && time.Since(lastStatus) >= statusEvery {
			written := s.stats.FramesWritten.Load()
			s.reportStatus(time.Since(lastStatus), written-lastWritten)
			lastWritten = written
			lastStatus = time.Now()
		}

		time.Sleep(s.cfg.Capture.PollInterval)
	}

	if g := s.cfg.Capture.DrainGrace; g > 0 {
		time.Sleep(g)
	}
	s.ring.Drain(s.writeFrame)
	s.flushSinks()
}

// writeFrame persists one frame to both sinks and samples the console echo.
// Decode happens here, on the consumer side, never on the push path.
func (s *Session) writeFrame(f frame.Frame) {
	if err := s.bin.write(f); err != nil {
		s.noteSinkError("binary", &s.binErrLogged, err)
	} else {
		s.stats.BytesWritten.Add(frame.RecordSize)
	}

	e := f.Decode()
	if err := s.txt.write(e); err != nil {
		s.noteSinkError("text", &s.txtErrLogged, err)
	}

	s.stats.FramesWritten.Add(1)
	s.dirty = true

	if s.echoEnabled.Load() {
		s.echoCount++
		if every := s.echoEvery.Load(); s.echoCount%uint64(every) == 0 {
			fmt.Fprintln(s.console, e.ConsoleLine())
			s.stats.ConsoleLines.Add(1)
		}
	}
}

func (s *Session) flushSinks() {
	if !s.dirty {
		return
	}
	if err := s.bin.flush(); err != nil {
		s.noteSinkError("binary", &s.binErrLogged, err)
	}
	if err := s.txt.flush(); err != nil {
		s.noteSinkError("text", &s.txtErrLogged, err)
	}
	s.stats.SinkFlushes.Add(1)
	s.dirty = false
}

func (s *Session) noteSinkError(name string, logged *bool, err error) {
	s.stats.WriteErrors.Add(1)
	if !*logged {
		s.logger.Warn("sink write failed, capture degraded", zap.String("sink", name), zap.Error(err))
		*logged = true
	}
}
