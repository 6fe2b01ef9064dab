package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/gcs-share/internal/config"
	"github.com/tomasbasham/gcs-share/internal/gcloud"
	"github.com/tomasbasham/gcs-share/internal/logging"
	"github.com/tomasbasham/gcs-share/internal/share"
	"github.com/tomasbasham/gcs-share/internal/storage"
)

// newLogger builds the command's logger, honouring the inherited --log-level
// flag over the environment default. Console formatting is used for the
// interactive verbs; serve logs structured JSON.
func newLogger(cmd *cobra.Command, cfg config.Config, console bool) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	if console {
		return logging.NewConsole(level)
	}
	return logging.New(os.Stderr, level)
}

// newStack wires the credential probe, the lazily-created storage gateway and
// the sharing workflow. The gateway is constructed on first use so that a
// not-yet-authenticated process can still serve auth guidance; its project is
// whatever the credential chain resolves to at that moment.
func newStack(cfg config.Config, log zerolog.Logger) (*gcloud.Probe, *storage.Lazy, *share.Workflow) {
	probe := gcloud.NewProbe(log)

	lazy := storage.NewLazy(func(ctx context.Context) (*storage.Gateway, error) {
		status := probe.CheckAuthentication(ctx)
		return storage.NewGateway(ctx, status.ProjectID, log)
	})

	workflow := share.NewWorkflow(lazy, probe, share.Config{
		Location:     cfg.Location,
		StorageClass: cfg.StorageClass,
	}, log)

	return probe, lazy, workflow
}
