// Command docqr inspects documents, embeds retrieval codes and serves the
// embedding API.
//
// Usage:
//
//	docqr <command> [flags]
//
// Commands:
//
//	inspect  Describe the first page of a PDF
//	embed    Draw an overlay onto page 1 of a PDF
//	place    Adjust a placement with editor gestures
//	code     Write the retrieval code of a document
//	serve    Run the HTTP API
//
// Examples:
//
//	docqr inspect contract.pdf
//	docqr embed contract.pdf --x 50 --y 50 --size 100 -o stamped.pdf
//	docqr place contract.pdf --x 50 --y 50 --size 100 move:10,0 scale:1.5
//	docqr serve --config docqr.yaml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xangel0s/docqr-Flex-sub000/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/docqr
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
