// Command tailshipper tails a set of configured files, runs each through
// its configured transform pipeline, and ships the result to a message
// bus or an HTTP index endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tailshipper/internal/app"
	"tailshipper/internal/config"
	"tailshipper/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFile := flag.String("log-file", "", "optional path to also write logs to")
	showTUI := flag.Bool("tui", false, "show a live status dashboard (log output still goes to stderr)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <config-directory>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	configDir := flag.Arg(0)

	logging.Init(*logLevel, *logFile)

	doc, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tailshipper: load config: %v\n", err)
		return 1
	}
	if err := doc.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tailshipper: invalid config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(doc)
	a.ShowTUI = *showTUI
	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tailshipper: %v\n", err)
		return 1
	}
	return 0
}
