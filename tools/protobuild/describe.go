package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/malonaz/protobuild/go/flags"
	"github.com/malonaz/protobuild/go/logging"
	"github.com/malonaz/protobuild/go/protobuild"
	"github.com/malonaz/protobuild/go/protobuild/config"
)

var prettyOptions = &pretty.Options{
	Width:    120,
	Indent:   "  ",
	SortKeys: true,
}

var describeMarshalOptions = protojson.MarshalOptions{UseProtoNames: true}

type describeOpts struct {
	Logging  *logging.Opts
	Generate *config.Opts
	Color    bool `long:"color" description:"Colorize the JSON output"`
}

func newDescribeCommand() *cobra.Command {
	return withFlags(&cobra.Command{
		Use:   "describe [options] [proto files...]",
		Short: "Print the resolved descriptor set as JSON",
	}, runDescribe)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	opts := &describeOpts{}
	remaining, err := flags.ParseArgs(opts, args)
	if err != nil {
		return err
	}
	if err := logging.Init(opts.Logging); err != nil {
		return err
	}
	opts.Generate.Files = append(opts.Generate.Files, remaining...)

	request, err := config.Load(opts.Generate)
	if err != nil {
		return err
	}
	generator, err := protobuild.New()
	if err != nil {
		return err
	}
	generator.WithLogger(slog.Default())
	set, err := generator.Describe(cmd.Context(), request)
	if err != nil {
		return err
	}

	data, err := describeMarshalOptions.Marshal(set.FileDescriptorSet())
	if err != nil {
		return fmt.Errorf("marshaling descriptor set: %w", err)
	}
	output := pretty.PrettyOptions(data, prettyOptions)
	if opts.Color {
		output = pretty.Color(output, pretty.TerminalStyle)
	}
	_, err = cmd.OutOrStdout().Write(output)
	return err
}
