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
	"github.com/tomasbasham/gcs-share/internal/server"
)

type ServeOptions struct {
	cfg config.Config

	iooption.IOStreams
}

var (
	serveLong = templates.LongDesc(`
		Start the MCP server on stdio. The server exposes the
		share_file_public, check_gcs_auth and list_buckets tools; all
		logging goes to stderr because stdout carries the protocol.`)

	serveExample = templates.Examples(`
		# Start the server (typically launched by an MCP client)
		gcs-share serve`)
)

func NewServeOptions(streams iooption.IOStreams) *ServeOptions {
	return &ServeOptions{
		IOStreams: streams,
	}
}

func NewServeCommand(o *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the MCP server on stdio",
		Long:    serveLong,
		Example: serveExample,
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

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *ServeOptions) Validate() error {
	return nil
}

func (o *ServeOptions) Run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd, o.cfg, false)

	probe, gateway, workflow := newStack(o.cfg, log)
	defer gateway.Close()

	srv := server.New(workflow, probe, gateway, serverVersion(), log)

	log.Info().Str("version", serverVersion()).Msg("starting MCP server on stdio")
	if err := srv.ServeStdio(ctx, o.In, o.Out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server terminated: %w", err)
	}
	return nil
}
