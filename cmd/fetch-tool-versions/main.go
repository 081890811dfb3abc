// Package main is the entry point for the tool version fetcher.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vellankikoti/tool-versions/cmd/fetch-tool-versions/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.Execute(ctx, app.NewRootCmd())
	stop()
	os.Exit(code)
}
