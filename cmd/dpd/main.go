package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/owen-raum/dpd-tracking/internal/cli"
	"github.com/owen-raum/dpd-tracking/internal/infrastructure/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := cli.Runner{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Version:    version,
		LoadConfig: config.Load,
	}.Run(ctx, os.Args[1:])

	stop()
	os.Exit(code)
}
