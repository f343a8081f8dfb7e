// Command feedgen writes synthetic order-book messages to stdout, one per
// line, for piping into mbo -mode pipe.
package main

import (
	"bufio"
	"flag"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"mbo/internal/codec"
	"mbo/internal/mdg"
	"mbo/internal/schema"
)

func main() {
	symbols := flag.String("symbols", "AAPL,GOOG,MSFT,AMZN,TSLA", "Comma-separated symbols")
	kinds := flag.String("kinds", "oba,obf,obc,obr", "Comma-separated message kinds")
	count := flag.Int("count", 0, "Messages to write, 0 for unlimited")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between messages")
	faultRate := flag.Float64("fault-rate", 0, "Probability of emitting a damaged message")
	split := flag.Bool("split", false, "Break every message across two lines")
	seed := flag.Uint64("seed", 0, "Random seed, 0 for time based")
	flag.Parse()

	// stdout carries the messages.
	logs.SetDefault(logs.New(logs.LevelInfo, &logs.Option{Format: logs.FormatConsole, Output: os.Stderr}))

	cfg := mdg.Config{
		Symbols:      splitList(*symbols),
		Sides:        []string{"buy", "sell"},
		Attributions: []string{"BrokerA", "BrokerB", "BrokerC", "BrokerD"},
		RandomKinds:  true,
		Seed:         *seed,
	}
	for _, k := range splitList(*kinds) {
		cfg.Kinds = append(cfg.Kinds, schema.Kind(k))
	}

	gen, err := mdg.NewGenerator(cfg, nil)
	if err != nil {
		logs.Fatalf("generator init failed, err: %+v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	rng := rand.New(rand.NewPCG(*seed, *seed+1))
	written := 0
	for *count == 0 || written < *count {
		raw, err := codec.EncodeEvent(gen.Next(time.Now()))
		if err != nil {
			logs.Fatalf("encode failed, err: %+v", err)
		}
		raw = mdg.Corrupt(raw, mdg.RandomFault(rng, *faultRate))
		if err := writeMessage(out, raw, *split); err != nil {
			logs.Errorf("write failed, err: %+v", err)
			return
		}
		written++

		select {
		case <-sys.Shutdown():
			return
		case <-time.After(*interval):
		}
	}
	logs.Infof("feedgen wrote %d messages", written)
}

func writeMessage(w *bufio.Writer, raw string, split bool) error {
	if split && len(raw) > 1 {
		mid := len(raw) / 2
		raw = raw[:mid] + "\n" + raw[mid:]
	}
	if _, err := io.WriteString(w, raw+"\n"); err != nil {
		return err
	}
	return w.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
