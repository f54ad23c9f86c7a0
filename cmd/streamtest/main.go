// streamtest connects to a running relay, subscribes to symbols and prints
// every frame it receives.
// Usage: go run ./cmd/streamtest --url ws://localhost:5001/ --symbols AAPL,BINANCE:BTCUSDT
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rickgao/price-relay/internal/feed"
	"github.com/rickgao/price-relay/internal/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:5001/", "relay WebSocket URL")
	symbols := flag.String("symbols", "AAPL", "comma-separated symbols to subscribe")
	duration := flag.Duration("duration", 0, "unsubscribe and exit after this long (0 = until Ctrl+C)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	var ctx context.Context
	var cancel context.CancelFunc
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), *duration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := feed.DefaultClientConfig()
	cfg.URL = *url
	client := feed.NewClient(cfg, logger)

	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	subs := splitSymbols(*symbols)
	for _, sym := range subs {
		if err := client.Send(protocol.EncodeSubscribe(sym)); err != nil {
			logger.Error("failed to subscribe", "symbol", sym, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("subscribed", "symbols", subs)

	var trades, errorsSeen atomic.Int64

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("stats",
					"trades", trades.Load(),
					"errors", errorsSeen.Load(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			for _, sym := range subs {
				client.Send(protocol.EncodeUnsubscribe(sym))
			}
			logger.Info("shutdown complete", "trades", trades.Load())
			return

		case err := <-client.Errors():
			logger.Error("connection lost", "error", err)
			os.Exit(1)

		case msg := <-client.Messages():
			printFrame(msg, *verbose, &trades, &errorsSeen)
		}
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func printFrame(msg feed.TimestampedMessage, verbose bool, trades, errorsSeen *atomic.Int64) {
	if verbose {
		fmt.Printf("[%s] %s\n", msg.ReceivedAt.Format(time.TimeOnly), msg.Data)
	}

	typ, err := protocol.MessageType(msg.Data)
	if err != nil {
		fmt.Printf("[INVALID] %s\n", msg.Data)
		return
	}

	switch typ {
	case protocol.TypeTrade:
		trades.Add(1)
		if verbose {
			return
		}
		sample, err := protocol.DecodeLastTrade(msg.Data)
		if err != nil {
			fmt.Printf("[TRADE] unparseable: %v\n", err)
			return
		}
		fmt.Printf("[TRADE] symbol=%s price=%s\n", sample.Symbol, sample.Price)

	case protocol.TypeError:
		errorsSeen.Add(1)
		fmt.Printf("[ERROR] %s\n", msg.Data)

	default:
		if !verbose {
			fmt.Printf("[%s] %s\n", strings.ToUpper(typ), msg.Data)
		}
	}
}
