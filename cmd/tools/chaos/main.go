// Command chaos rewrites captured messages with drops, duplicates, reorders
// and corruption, producing segments the replay mode can ingest.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"mbo/internal/chaos"
	"mbo/internal/recorder"
)

func main() {
	inputDir := flag.String("input-dir", "data/capture", "Captured segment directory")
	inputPrefix := flag.String("input-prefix", "", "Input segment file prefix (default: segment)")
	outputDir := flag.String("output-dir", "data/capture_chaos", "Output segment directory")
	outputPrefix := flag.String("output-prefix", "chaos", "Output segment file prefix")
	seed := flag.Uint64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	corruptRate := flag.Float64("corrupt-rate", 0, "Corruption probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	flag.Parse()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        *inputDir,
		FilePrefix: *inputPrefix,
	})
	if err != nil {
		logs.Fatalf("playback init failed, err: %+v", err)
	}

	engine, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		CorruptRate:   *corruptRate,
		ReorderWindow: *reorderWindow,
	})
	if err != nil {
		logs.Fatalf("chaos config invalid, err: %+v", err)
	}

	outCfg := recorder.DefaultConfig(*outputDir)
	outCfg.FilePrefix = *outputPrefix
	outCfg.CopyPayload = true
	writer, err := recorder.NewWriter(outCfg)
	if err != nil {
		logs.Fatalf("writer init failed, err: %+v", err)
	}
	ctx := context.Background()
	if err := writer.Start(ctx); err != nil {
		logs.Fatalf("writer start failed, err: %+v", err)
	}

	var in uint64
	err = pb.Run(ctx, func(rec []byte) error {
		in++
		for _, out := range engine.Process(string(rec)) {
			if err := appendRecord(ctx, writer, out); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		for _, out := range engine.Flush() {
			if err := appendRecord(ctx, writer, out); err != nil {
				logs.Fatalf("append failed, err: %+v", err)
			}
		}
	}
	if err != nil {
		logs.Fatalf("playback failed, err: %+v", err)
	}
	if err := writer.Close(); err != nil {
		logs.Fatalf("writer close failed, err: %+v", err)
	}

	dropped, duplicated, corrupted := engine.Counts()
	logs.Infof("chaos done, in: %d, out: %d, dropped: %d, duplicated: %d, corrupted: %d",
		in, writer.Written(), dropped, duplicated, corrupted)
}

// appendRecord waits out a full queue instead of losing the record.
func appendRecord(ctx context.Context, writer *recorder.Writer, raw string) error {
	for {
		err := writer.TryAppend([]byte(raw))
		if !errors.Is(err, recorder.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}
