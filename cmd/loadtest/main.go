// Command loadtest drives concurrent search traffic against a running search
// service and reports throughput, latency percentiles, cache hit rate and
// status codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries queries.txt]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// defaultQueries mixes plain keyword searches with faceted ones so both the
// ranking and browsing paths see traffic.
var defaultQueries = []string{
	"q=flexible+mesh+electrodes",
	"q=neuralace",
	"q=polyimide+substrate&category=materials",
	"q=biocompatibility&year_min=2020",
	"q=510(k)+predicate+device",
	"q=breakthrough+device+designation&category=regulatory",
	"q=medicare+reimbursement",
	"q=wireless+telemetry&tier=high,critical",
	"q=cortical+recording+channels",
	"q=signal+decoding+latency",
	"q=thin+film+encapsulation&year_min=2018&year_max=2024",
	"category=clinical",
	"tier=critical",
	"q=spinal+cord+stimulation",
	"q=motor+cortex+speech+decoding",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limit := flag.Int("limit", 10, "results requested per query")
	queriesFile := flag.String("queries", "", "file with one query string per line (q=...&category=...)")
	flag.Parse()

	queries := defaultQueries
	if *queriesFile != "" {
		f, err := os.Open(*queriesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening queries: %v\n", err)
			os.Exit(1)
		}
		queries, err = readQueries(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Limit:       *limit,
		Queries:     queries,
	}

	fmt.Println("=== Research Navigator Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats := Run(ctx, cfg, newHTTPClient(cfg.Concurrency))
	if err := stats.Report(os.Stdout, time.Since(start)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
