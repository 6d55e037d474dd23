package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/malonaz/protobuild/go/flags"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, flags.ErrHelp) {
			return
		}
		slog.Error("protobuild failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "protobuild",
		Short:         "Generate Rust code from protobuf files with rust-protobuf or prost",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newGenerateCommand(), newDescribeCommand(), newCheckProtocCommand(), newVersionCommand())
	return cmd
}

// Options are parsed with go-flags so they can be shared with the library packages and read from the environment.
func withFlags(cmd *cobra.Command, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd.DisableFlagParsing = true
	cmd.RunE = run
	return cmd
}
