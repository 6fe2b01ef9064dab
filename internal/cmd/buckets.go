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

type BucketsOptions struct {
	cfg config.Config

	iooption.IOStreams
}

var (
	bucketsLong = templates.LongDesc(`
		List the Google Cloud Storage buckets visible to the resolved
		credentials and project.`)

	bucketsExample = templates.Examples(`
		# List accessible buckets
		gcs-share buckets`)
)

func NewBucketsOptions(streams iooption.IOStreams) *BucketsOptions {
	return &BucketsOptions{
		IOStreams: streams,
	}
}

func NewBucketsCommand(o *BucketsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "buckets",
		Short:   "List accessible GCS buckets",
		Long:    bucketsLong,
		Example: bucketsExample,
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

	return cmd
}

func (o *BucketsOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *BucketsOptions) Validate() error {
	return nil
}

func (o *BucketsOptions) Run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd, o.cfg, true)

	probe, gateway, _ := newStack(o.cfg, log)
	defer gateway.Close()

	if status := probe.CheckAuthentication(ctx); !status.Authenticated {
		guidance := probe.InitiateLogin(ctx)
		fmt.Fprintln(o.ErrOut, guidance.Message)
		return errors.New(status.Message)
	}

	buckets, err := gateway.ListBuckets(ctx)
	if err != nil {
		return err
	}

	if len(buckets) == 0 {
		fmt.Fprintln(o.Out, "No buckets found")
		return nil
	}
	for _, name := range buckets {
		fmt.Fprintln(o.Out, name)
	}
	return nil
}
