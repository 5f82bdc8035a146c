// Package main is the entry point for workdesk, the work-order dashboard
// server and its command line client.
package main

import (
	"context"
	"os"

	"github.com/pitabwire/workdesk/internal/cli"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := cli.NewRootCmd(version, commit).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
