package main

import (
	"context"
	"fmt"
	"os"

	"clipforge/internal/bootstrap"
	"clipforge/internal/config"
	"clipforge/internal/ctl"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	// Connection chatter goes to stderr so command output stays clean.
	log := logger.New(logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "clipforgectl",
	})

	root := ctl.NewRootCmd(ctl.Env{
		OpenStore: func(ctx context.Context) (ports.Store, error) {
			return bootstrap.OpenStore(ctx, cfg, log)
		},
		OpenQueue: func(ctx context.Context, store ports.JobStore) (ports.JobQueue, error) {
			return bootstrap.OpenQueue(ctx, cfg, store, log)
		},
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
