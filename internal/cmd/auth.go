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
	"github.com/tomasbasham/gcs-share/internal/gcloud"
)

type AuthOptions struct {
	cfg config.Config

	Login bool

	iooption.IOStreams
}

var (
	authLong = templates.LongDesc(`
		Check Google Cloud authentication status. Without flags this only
		inspects the ambient application-default credentials and prints
		remediation guidance when they are missing. With --login it runs
		gcloud's interactive browser login, which requires a terminal.`)

	authExample = templates.Examples(`
		# Print the current authentication status
		gcs-share auth

		# Run the interactive gcloud login
		gcs-share auth --login`)
)

func NewAuthOptions(streams iooption.IOStreams) *AuthOptions {
	return &AuthOptions{
		IOStreams: streams,
	}
}

func NewAuthCommand(o *AuthOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Short:   "Check Google Cloud authentication status",
		Long:    authLong,
		Example: authExample,
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

	cmd.Flags().BoolVar(&o.Login, "login", false, "Run the interactive gcloud login flow")

	return cmd
}

func (o *AuthOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *AuthOptions) Validate() error {
	return nil
}

func (o *AuthOptions) Run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd, o.cfg, true)
	probe := gcloud.NewProbe(log)

	status := probe.CheckAuthentication(ctx)
	if status.Authenticated {
		fmt.Fprintf(o.Out, "Authenticated with Google Cloud. Project: %s\n", status.ProjectID)
		return nil
	}

	if !o.Login {
		guidance := probe.InitiateLogin(ctx)
		fmt.Fprintln(o.Out, guidance.Message)
		return errors.New(status.Message)
	}

	outcome := probe.AttemptInteractiveLogin(ctx)
	fmt.Fprintln(o.Out, outcome.Message)
	if !outcome.Success {
		return errors.New("login did not complete")
	}
	return nil
}
