package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"
)

var (
	rootLong = templates.LongDesc(`
		gcs-share uploads local files to Google Cloud Storage and makes them
		publicly accessible. It runs as an MCP server over stdio for AI
		assistant integrations, and the same operations are available as
		direct subcommands.`)

	rootExamples = templates.Examples(`
		# Start the MCP server on stdio
		gcs-share serve

		# Share a file and print its public URL
		gcs-share share ./report.pdf --bucket my-share-bucket`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// GCSShareOptions defines the options for the `gcs-share` command.
type GCSShareOptions struct {
	iooption.IOStreams
}

// NewGCSShareOptions provides an initialised GCSShareOptions instance.
func NewGCSShareOptions(streams iooption.IOStreams) *GCSShareOptions {
	return &GCSShareOptions{
		IOStreams: streams,
	}
}

// NewRootCommand creates the `gcs-share` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewGCSShareOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `gcs-share` command and its nested
// children.
func NewRootCommandWithArgs(o *GCSShareOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "gcs-share [command]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Share files publicly via Google Cloud Storage",
		Long:                  rootLong,
		Example:               rootExamples,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}

	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	cmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error); defaults to GCS_SHARE_LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(NewServeOptions(o.IOStreams)))
	cmd.AddCommand(NewShareCommand(NewShareOptions(o.IOStreams)))
	cmd.AddCommand(NewAuthCommand(NewAuthOptions(o.IOStreams)))
	cmd.AddCommand(NewBucketsCommand(NewBucketsOptions(o.IOStreams)))

	// The globlal normalisation function ensures that all flags specified meet
	// the desired format, changing users' input if necessary.
	cmd.SetGlobalNormalizationFunc(cliflag.WordSepNormalizeFunc())

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}

// serverVersion is what the MCP server reports to clients during the
// initialize handshake.
func serverVersion() string {
	if version == "" {
		return "dev"
	}
	return version
}
