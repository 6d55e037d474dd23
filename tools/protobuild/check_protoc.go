package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malonaz/protobuild/go/flags"
	"github.com/malonaz/protobuild/go/logging"
	"github.com/malonaz/protobuild/go/protobuild/protoc"
)

type checkProtocOpts struct {
	Logging   *logging.Opts
	Protoc    string `long:"protoc" description:"protoc binary, defaults to $PROTOC, a bundled binary, then protoc from PATH"`
	BundleDir string `long:"protoc-bundle-dir" description:"Directory holding bundled protoc binaries"`
}

func newCheckProtocCommand() *cobra.Command {
	return withFlags(&cobra.Command{
		Use:   "check-protoc [options]",
		Short: "Check that protoc is recent enough",
	}, runCheckProtoc)
}

func runCheckProtoc(cmd *cobra.Command, args []string) error {
	opts := &checkProtocOpts{}
	if _, err := flags.ParseArgs(opts, args); err != nil {
		return err
	}
	if err := logging.Init(opts.Logging); err != nil {
		return err
	}
	path := protoc.Locate(opts.Protoc, opts.BundleDir)
	version, err := protoc.Version(cmd.Context(), path)
	if err != nil {
		return err
	}
	if err := protoc.CheckVersion(cmd.Context(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (minimum %s)\n", path, version, protoc.MinimumVersion)
	return nil
}
