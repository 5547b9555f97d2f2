// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// bussniff drives a capture session outside the simulator: it can replay a
// persisted binary frame log as CSV, or exercise the full pipeline with a
// synthetic producer (useful for sizing the ring and the sinks).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mbeema/bussniff/pkg/capture"
	"github.com/mbeema/bussniff/pkg/config"
	"github.com/mbeema/bussniff/pkg/frame"
	"github.com/mbeema/bussniff/pkg/health"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  string
		logLevel    string
		decodePath  string
		simulate    int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&decodePath, "decode", "", "decode a binary frame log to CSV on stdout and exit")
	flag.IntVar(&simulate, "simulate", 0, "push N synthetic frames through a capture session and exit")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("bussniff %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if decodePath != "" {
		if err := decodeLog(decodePath, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "decode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if simulate <= 0 {
		logger.Fatal("nothing to do: pass -simulate N or -decode FILE")
	}

	logger.Info("starting bussniff",
		zap.String("version", version),
		zap.Int("frames", simulate),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := capture.New(cfg, logger)

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health.Port, version, sess.Stats(), logger)
		if err := healthServer.Start(ctx); err != nil {
			logger.Warn("health server start error", zap.Error(err))
		} else {
			healthServer.SetReady(true)
		}
	}

	// Live toggle of the console echo settings; everything else in the
	// config is fixed for the session's lifetime.
	var watcher *config.Watcher
	if configPath != "" {
		watcher = config.NewWatcher(configPath, func(newCfg *config.Config) {
			sess.SetConsoleEcho(newCfg.Console.Echo, newCfg.Console.Every)
		}, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher start error", zap.Error(err))
			watcher = nil
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	runSimulation(ctx, sess, simulate)

	if watcher != nil {
		watcher.Stop()
	}
	if healthServer != nil {
		healthServer.SetReady(false)
	}
	if err := sess.Close(); err != nil {
		logger.Error("error closing capture session", zap.Error(err))
	}
	if healthServer != nil {
		healthServer.Stop()
	}

	snap := sess.Stats().Snapshot()
	logger.Info("done",
		zap.Int64("frames_accepted", snap.FramesAccepted),
		zap.Int64("frames_dropped", snap.FramesDropped),
		zap.Int64("frames_written", snap.FramesWritten),
		zap.Int64("bytes_written", snap.BytesWritten),
	)
}

// runSimulation plays the producer role the simulator normally fills:
// one synchronous push per synthetic bus transaction, drops and all.
func runSimulation(ctx context.Context, sess *capture.Session, n int) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		f := frame.Event{
			Src:    uint32(rng.Intn(16)),
			ReqTS:  uint32(i),
			RespTS: uint32(i+3) & 0xFFFF,
			Addr:   0x2000_0000 + uint32(rng.Intn(1<<16))<<2,
			Data:   rng.Uint32(),
			BE:     0xF,
			WE:     uint32(rng.Intn(2)),
			Valid:  1,
			Gnt:    uint32(rng.Intn(2)),
		}.Encode()
		sess.Push(0, 4, f[0], f[1], f[2], f[3])
	}
}

// decodeLog re-emits a binary frame log in the text sink's CSV format.
func decodeLog(path string, out *os.File) error {
	w := bufio.NewWriter(out)
	if _, err := w.WriteString(frame.CSVHeader); err != nil {
		return err
	}
	if _, err := frame.ReadLogFile(path, func(f frame.Frame) error {
		_, err := w.Write(f.Decode().AppendCSV(nil))
		return err
	}); err != nil {
		return err
	}
	return w.Flush()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default locations
	defaults := []string{
		"configs/bussniff.yaml",
		"/etc/bussniff/bussniff.yaml",
		"/etc/bussniff.yaml",
	}
	for _, p := range defaults {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}

	cfg := config.DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
