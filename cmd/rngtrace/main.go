// rngtrace dumps a reference sequence of randomization outputs to CSV so
// accurate-mode arithmetic can be diffed against captured hardware traces.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/kettleworks/ember/rng"
)

// TraceRow records one iteration of each randomization helper. Calls happen
// in column order, so the draw stream is reconstructible from the file.
type TraceRow struct {
	Index        int     `csv:"index"`
	Uint32       uint32  `csv:"uint32"`
	ScaledRange  float64 `csv:"scaled_range"`
	ScaledRange2 float64 `csv:"scaled_range2"`
	AroundZero   float64 `csv:"around_zero"`
	CRCHash      uint32  `csv:"crc_hash"`
}

func main() {
	seed := flag.Int64("seed", 1, "RNG seed")
	count := flag.Int("count", 256, "Number of trace rows")
	value := flag.Float64("value", 1.0, "Base value passed to the range helpers")
	variance := flag.Float64("variance", 0.5, "Variance passed to the range helpers")
	inaccurate := flag.Bool("inaccurate", false, "Use float arithmetic instead of the fixed-point path")
	out := flag.String("out", "rngtrace.csv", "Output CSV path")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var r *rng.Context
	if *inaccurate {
		r = rng.NewInaccurate(*seed)
	} else {
		r = rng.New(*seed)
	}

	rows := make([]TraceRow, *count)
	for i := range rows {
		rows[i] = TraceRow{
			Index:        i,
			Uint32:       r.Uint32(),
			ScaledRange:  r.ScaledRange(*value, *variance),
			ScaledRange2: r.ScaledRange2(*value, *variance),
			AroundZero:   r.AroundZero(*value),
			CRCHash:      r.CRCHash(),
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		slog.Error("create output", "path", *out, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := gocsv.Marshal(rows, f); err != nil {
		slog.Error("write trace", "path", *out, "error", err)
		os.Exit(1)
	}

	slog.Info("trace written", "path", *out, "rows", *count, "seed", *seed)
}
