package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/junsooki/simrec/internal/config"
	"github.com/junsooki/simrec/internal/display"
	"github.com/junsooki/simrec/internal/logging"
	"github.com/junsooki/simrec/internal/share"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "simrec-viewer:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg      config.ViewerConfig
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "simrec-viewer",
		Short: "Watch a simrec recording live",
		Long: `simrec-viewer shows the frames of a recording started with
"simrec --share <url>". Press Q or Escape to stop the recording.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Finish(); err != nil {
				return err
			}
			log := logging.New(os.Stderr, logLevel)
			slog.SetDefault(log)
			return watch(cmd.Context(), cfg, log)
		},
	}
	config.RegisterViewerFlags(cmd.Flags(), &cfg)
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func watch(ctx context.Context, cfg config.ViewerConfig, log *slog.Logger) error {
	log.Info("viewer starting", "viewer_id", cfg.ViewerID, "signaling", cfg.SignalingURL, "host", cfg.HostID)

	var (
		v   *share.Viewer
		win *display.Window
	)
	win = display.NewWindow("simrec viewer: "+cfg.HostID,
		display.OnStopKey(func() { v.RequestStop() }),
		display.OnClose(func() { win.Close() }),
	)
	win.SetStatus("waiting for " + cfg.HostID)

	v = share.NewViewer(cfg, win, log)
	if err := v.Start(ctx); err != nil {
		return fmt.Errorf("signaling connect: %w", err)
	}
	defer v.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		win.Close()
	}()

	// Ebitengine RunGame must be on the main goroutine.
	return win.Run()
}
