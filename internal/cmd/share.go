package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/gcs-share/internal/config"
)

type ShareOptions struct {
	cfg config.Config

	FilePath        string
	BucketName      string
	DestinationName string

	iooption.IOStreams
}

var (
	shareLong = templates.LongDesc(`
		Upload a file to Google Cloud Storage and make it publicly
		accessible. The bucket is created if it does not exist, with
		uniform bucket-level access enabled, and allUsers is granted
		object viewer access on it.`)

	shareExample = templates.Examples(`
		# Share a file using the default destination name
		gcs-share share ./report.pdf --bucket my-share-bucket

		# Share under a different object name
		gcs-share share ./report.pdf --bucket my-share-bucket --dest reports/q3.pdf`)
)

func NewShareOptions(streams iooption.IOStreams) *ShareOptions {
	return &ShareOptions{
		IOStreams: streams,
	}
}

func NewShareCommand(o *ShareOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "share FILE",
		DisableFlagsInUseLine: true,
		Short:                 "Upload a file to GCS and make it public",
		Long:                  shareLong,
		Example:               shareExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(cmd); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.BucketName, "bucket", "b", "", "GCS bucket name (required)")
	cmd.Flags().StringVarP(&o.DestinationName, "dest", "d", "", "Destination object name (default: the file's base name)")

	return cmd
}

func (o *ShareOptions) Complete(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("FILE is required")
	}
	o.FilePath = args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *ShareOptions) Validate() error {
	if o.BucketName == "" {
		return fmt.Errorf("--bucket is required")
	}
	return nil
}

func (o *ShareOptions) Run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd, o.cfg, true)

	_, gateway, workflow := newStack(o.cfg, log)
	defer gateway.Close()

	result := workflow.ShareFilePublic(ctx, o.FilePath, o.BucketName, o.DestinationName)
	if !result.Success {
		return errors.New(result.Message)
	}

	if result.BucketCreated {
		fmt.Fprintf(o.Out, "Created bucket %s\n", result.BucketName)
	}
	fmt.Fprintf(o.Out, "Uploaded %s to gs://%s/%s\n", o.FilePath, result.BucketName, result.BlobName)
	fmt.Fprintf(o.Out, "Public URL: %s\n", result.PublicURL)
	return nil
}
