// Command bestmove answers move requests read line by line from stdin with
// one JSON object per line on stdout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	corechess "github.com/park285/cheese-engine/internal/chess"
	"github.com/park285/cheese-engine/internal/chessbuilder"
	appcfg "github.com/park285/cheese-engine/internal/config"
	"github.com/park285/cheese-engine/internal/obslog"
	"github.com/park285/cheese-engine/pkg/chessdto"
)

func main() {
	preset := flag.String("preset", "", "difficulty preset (default from SEARCH_DEFAULT_PRESET)")
	timeout := flag.Duration("timeout", 0, "per-request timeout, 0 for none")
	flag.Parse()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	deps, err := chessbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("engine init error", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	if *preset == "" {
		*preset = deps.DefaultPreset
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, deps.Engine, *preset, *timeout, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("serve", zap.Error(err))
		os.Exit(1)
	}
}

// serve handles one request per input line. A game clock per request stream
// feeds the time manager.
func serve(ctx context.Context, engine *corechess.Engine, preset string, timeout time.Duration, in io.Reader, out io.Writer, logger *zap.Logger) error {
	tracker := corechess.NewTimeTracker()
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		resp := answer(ctx, engine, preset, timeout, tracker, line)
		if resp.Error != nil {
			logger.Warn("request failed", zap.String("code", resp.Error.Code), zap.String("message", resp.Error.Message))
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func answer(ctx context.Context, engine *corechess.Engine, preset string, timeout time.Duration, tracker *corechess.TimeTracker, line string) chessdto.MoveResponse {
	req, err := chessdto.ParseRequestLine(line)
	if err != nil {
		return chessdto.FromError(req.ID, err)
	}
	if req.Preset == "" {
		req.Preset = preset
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := engine.Evaluate(ctx, corechess.EvaluateRequest{
		PresetName: req.Preset,
		FEN:        req.FEN,
		Moves:      req.Moves,
		Remaining:  req.Remaining(),
		Tracker:    tracker,
	})
	if err != nil {
		return chessdto.FromError(req.ID, err)
	}
	return chessdto.FromResult(req.ID, res)
}
