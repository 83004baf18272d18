package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ollama/oneshot/cmd"
)

func main() {
	cobra.CheckErr(cmd.LoadDotEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.NewCLI().ExecuteContext(ctx); err != nil {
		stop()
		cobra.CheckErr(err)
	}
}
