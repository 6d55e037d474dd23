package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/malonaz/protobuild/go/flags"
	"github.com/malonaz/protobuild/go/logging"
	"github.com/malonaz/protobuild/go/protobuild"
	"github.com/malonaz/protobuild/go/protobuild/config"
)

type generateOpts struct {
	Logging  *logging.Opts
	Generate *config.Opts
	DryRun   bool `long:"dry-run" description:"Print the files that would be generated instead of writing them"`
}

func newGenerateCommand() *cobra.Command {
	return withFlags(&cobra.Command{
		Use:   "generate [options] [proto files...]",
		Short: "Generate Rust code into the output directory",
	}, runGenerate)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := &generateOpts{}
	remaining, err := flags.ParseArgs(opts, args)
	if err != nil {
		return err
	}
	if err := logging.Init(opts.Logging); err != nil {
		return err
	}
	log := slog.Default()
	opts.Generate.Files = append(opts.Generate.Files, remaining...)

	request, err := config.Load(opts.Generate)
	if err != nil {
		return err
	}
	generator, err := protobuild.New()
	if err != nil {
		return err
	}
	generator.WithLogger(log)

	if opts.DryRun {
		files, err := generator.Render(cmd.Context(), request)
		if err != nil {
			return err
		}
		for _, file := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", file.Kind, file.Name)
		}
		return nil
	}

	result, err := generator.Generate(cmd.Context(), request)
	if err != nil {
		return err
	}
	log.Debug("generation complete", "out_dir", result.OutDir, "files", len(result.Files))
	return nil
}
