// Package main is the entrypoint for the Jellyfin BFF. It serves the session
// API, the media proxy and the gated front-end bundle on one port.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aelexs/jellyfin-bff/internal/config"
	"github.com/aelexs/jellyfin-bff/internal/server"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:           "bff",
		PortFromConfig: func(cfg *config.Config) int { return cfg.HTTPPort },
		Setup:          setup,
	}, nil)
}
