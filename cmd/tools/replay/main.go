// Command replay feeds captured messages through the ingestion processor
// offline and prints the resulting statistics and diagnostics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yanun0323/logs"

	"mbo/internal/pipeline"
	"mbo/internal/recorder"
	"mbo/internal/sink"
)

func main() {
	dir := flag.String("dir", "data/capture", "Captured segment directory")
	prefix := flag.String("prefix", "", "Segment file prefix (default: segment)")
	streamID := flag.String("stream", "REPLAY", "Stream id the messages are attributed to")
	maxRecord := flag.Int("max-record", 0, "Max record size in bytes (0=1MiB)")
	printPoints := flag.Bool("print", false, "Log every point written to the sink")
	journalTail := flag.Int("journal", 20, "Diagnostic entries to print")
	flag.Parse()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:           *dir,
		FilePrefix:    *prefix,
		MaxRecordSize: *maxRecord,
	})
	if err != nil {
		logs.Fatalf("playback init failed, err: %+v", err)
	}

	var out sink.Sink = sink.Func(func(sink.Point) {})
	if *printPoints {
		out = sink.NewLog(logs.Default(), "replay")
	}
	app, err := pipeline.NewApp(pipeline.AppConfig{Sink: out})
	if err != nil {
		logs.Fatalf("app init failed, err: %+v", err)
	}
	app.Processor.SetRunID("replay")

	err = pb.Run(context.Background(), func(rec []byte) error {
		app.Counters.Requests.Add(1)
		app.Processor.Process(string(rec), *streamID)
		return nil
	})
	if err != nil {
		logs.Fatalf("playback run failed, err: %+v", err)
	}

	fmt.Fprintf(os.Stdout, "requests=%d errors=%d\n", app.Counters.Requests.Load(), app.Counters.Errors.Load())
	for _, s := range app.Stats.Snapshot() {
		fmt.Fprintf(os.Stdout, "stream %s received=%d errors=%d\n", s.ID, s.MessagesReceived, s.Errors)
	}
	for _, symbol := range app.Series.Symbols() {
		prices := app.Series.Snapshot(symbol)
		fmt.Fprintf(os.Stdout, "symbol %s points=%d last=%v\n", symbol, len(prices), prices[len(prices)-1])
	}
	snap := app.Metrics.Snapshot()
	fmt.Fprintf(os.Stdout, "kinds=%v unhandled=%d rejected=%d process_latency=%+v\n",
		snap.KindCounts, snap.Unhandled, snap.Rejected, snap.ProcessLatency)
	for _, e := range app.Journal.Tail(*journalTail) {
		fmt.Fprintf(os.Stdout, "%s %s [%s] %s: %s\n", e.At.Format("15:04:05.000"), e.Severity, e.Stream, e.Reason, e.Raw)
	}
}
