// Command duskcore is the fetch pipeline's CLI host (spec.md §6,
// reinterpreted per SPEC_FULL.md §6): it fetches a single URL through the
// full CCC pipeline and prints a summary of the resulting cache entry,
// since the GUI toolkit binding spec.md §1 scopes out isn't part of this
// build.
//
// Grounded on the teacher's main.go (danielloader-oci-pull-through): its
// -healthcheck early-exit shape (here the ignored legacy -l/-f/-x flags;
// this binary has no -healthcheck flag), config.Load, slog setup, and
// signal.NotifyContext-based shutdown all follow that file's shape,
// generalized from "serve HTTP forever" to "run one fetch to completion".
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskbrowser/core/internal/browser"
	"github.com/duskbrowser/core/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("duskcore", flag.ContinueOnError)

	// Legacy GUI-binding flags (spec.md §6: "retained for reference"):
	// accepted so old invocations don't fail to parse, ignored with a
	// logged warning since this build has no window to open one in.
	legacyList := fs.Bool("l", false, "legacy: open in a new window (ignored)")
	legacyFullscreen := fs.Bool("f", false, "legacy: open fullscreen (ignored)")
	legacyXID := fs.String("x", "", "legacy: embed into XID (ignored)")

	timeout := fs.Duration("timeout", 30*time.Second, "fetch timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if *legacyList || *legacyFullscreen || *legacyXID != "" {
		slog.Warn("legacy window-control flags are accepted but have no effect in this build",
			"l", *legacyList, "f", *legacyFullscreen, "x", *legacyXID)
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: duskcore [-timeout d] <url>")
		return 2
	}
	rawURL := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	b, err := browser.New(cfg)
	if err != nil {
		slog.Error("failed to start browser context", "error", err)
		return 1
	}

	result, err := b.Fetch(ctx, rawURL)
	if err != nil {
		slog.Error("fetch failed", "url", rawURL, "error", err)
		return 1
	}

	printSummary(rawURL, result)
	if result.Status != "ok" {
		return 1
	}
	return 0
}

func printSummary(rawURL string, r *browser.FetchResult) {
	fmt.Printf("url:      %s\n", rawURL)
	fmt.Printf("status:   %s\n", r.Status)
	fmt.Printf("type:     %s\n", r.TypeNormalized)
	fmt.Printf("bytes:    %d\n", r.ByteCount)
	if len(r.RedirectChain) > 1 {
		fmt.Printf("redirects:\n")
		for i, hop := range r.RedirectChain {
			fmt.Printf("  %d. %s\n", i, hop)
		}
	}
}
