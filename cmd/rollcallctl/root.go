package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/adapters/repository"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rollcallctl",
		Short: "Administer face-recognition attendance",
		Long: `rollcallctl manages enrollments, sessions and attendance records directly
in the configured store, using the same ROLLCALL_* configuration as the
server. scan-check instead drives a running server over HTTP.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newEnrollCmd(),
		newUnenrollCmd(),
		newEnrollmentsCmd(),
		newSessionsCmd(),
		newAttendanceCmd(),
		newScanCheckCmd(),
	)
	return root
}

// openService loads configuration and opens the configured store. Logs go to
// the command's stderr. The returned close func releases the store.
func openService(ctx context.Context, cmd *cobra.Command) (*service.Service, func(), error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := initLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := service.OpenStore(ctx, cfg, log.Named("store"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	svc, err := service.FromConfig(cfg, store, log.Named("service"))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return svc, closer(ctx, store, log), nil
}

func initLogger(cmd *cobra.Command, cfg *config.Config) (logger.Logger, error) {
	if err := logger.InitWithWriter(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	return logger.Get(), nil
}

func closer(ctx context.Context, store repository.Store, log logger.Logger) func() {
	return func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}
}
