// symbolconv turns a feed symbol listing into search-widget entries.
// Usage: go run ./cmd/symbolconv listing.json > symbols.json
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rickgao/price-relay/internal/symbols"
)

func main() {
	output := flag.String("o", "", "output file (default stdout)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-o output] listing.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	in, err := os.Open(flag.Arg(0))
	if err != nil {
		logger.Error("failed to open listing", "error", err)
		os.Exit(1)
	}
	defer in.Close()

	out := os.Stdout
	if *output != "" {
		out, err = os.Create(*output)
		if err != nil {
			logger.Error("failed to create output", "error", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	n, err := symbols.Transform(in, out)
	if err != nil {
		logger.Error("transform failed", "error", err)
		os.Exit(1)
	}

	logger.Info("symbols written", "count", n)
}
