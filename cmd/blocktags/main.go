package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/legutierr/blocktags/cli"
)

func main() {
	err := cli.Run(context.Background(), os.Exit, os.Args[1:]...)
	if err != nil {
		slog.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
