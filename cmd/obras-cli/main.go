package main

import (
	"fmt"
	"os"

	"obras/internal/cli"
	"obras/internal/log"
)

func main() {
	ctx, cancel := cli.ShutdownContext(log.Discard())
	defer cancel()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
