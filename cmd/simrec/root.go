package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junsooki/simrec/internal/capture"
	"github.com/junsooki/simrec/internal/config"
	"github.com/junsooki/simrec/internal/display"
	"github.com/junsooki/simrec/internal/encoder"
	"github.com/junsooki/simrec/internal/logging"
	"github.com/junsooki/simrec/internal/permissions"
	"github.com/junsooki/simrec/internal/session"
	"github.com/junsooki/simrec/internal/share"
	"github.com/junsooki/simrec/internal/store"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "simrec [target]",
		Short: "Record the iOS Simulator window to an animated GIF",
		Long: `simrec captures the window of a running app (the iOS Simulator by default)
at a fixed frame rate until interrupted, then writes every frame to a
looping animated GIF.

Type "q" and Enter, or press Ctrl-C, to stop recording.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(v, cfgFile); err != nil {
				return report(err)
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return report(err)
			}
			if len(args) == 1 {
				v.Set("target", args[0])
			}
			cfg, err := config.Load(v)
			if err != nil {
				return report(err)
			}
			return report(record(cfg))
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./simrec.yaml or "+config.ConfigDir()+"/simrec.yaml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func report(err error) error {
	if err != nil {
		fmt.Fprintln(os.Stderr, "simrec:", err)
	}
	return err
}

func record(cfg *config.Config) error {
	log := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(log)

	if err := permissions.CheckScreenRecording(); err != nil {
		return fmt.Errorf("%w: grant it in System Settings and restart", err)
	}

	// The controller is created after the observers that need to stop it.
	var ctrl *session.Controller
	requestStop := func(reason string) bool {
		if ctrl == nil {
			return false
		}
		return ctrl.RequestStop(reason)
	}

	storeOpts := []store.Option{}
	if dir := cfg.ResolvedScratchDir(); dir != "" {
		storeOpts = append(storeOpts, store.WithScratch(store.NewScratch(dir, encoder.NewPNGEncoder())))
		log.Info("writing frames to scratch directory", "dir", dir)
	}

	var preview *display.Window
	if cfg.Preview {
		preview = display.NewWindow("simrec: "+cfg.Target,
			display.OnStopKey(func() { requestStop("preview stop key") }),
			display.OnClose(func() { requestStop("preview closed") }),
		)
		storeOpts = append(storeOpts, store.WithObserver(func(f capture.Frame) {
			preview.SetFrame(f.Image)
			preview.SetStatus(fmt.Sprintf("REC %d frames", f.Index+1))
		}))
	}

	var sharer *share.Host
	if cfg.Share.Enabled() {
		sharer = share.NewHost(cfg.Share, requestStop, log)
		storeOpts = append(storeOpts, store.WithObserver(sharer.Observe))
	}

	ctrl, err := session.New(capture.NewLocator(), capture.NewCapturer(), encoder.NewGIFEncoder(log), session.Options{
		Target: cfg.Target,
		FPS:    cfg.FPS,
		Encoding: encoder.Options{
			LoopCount:  cfg.Loop,
			FrameDelay: cfg.FrameInterval(),
			Quality:    cfg.Quality,
			Path:       cfg.Output,
		},
		Duration:     cfg.Duration,
		StoreOptions: storeOpts,
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sharer != nil {
		if err := sharer.Start(ctx); err != nil {
			// Recording does not depend on the viewer.
			log.Warn("live share unavailable", "err", err)
		}
		defer sharer.Close()
	}

	go session.WatchCommands(os.Stdin, ctrl, log)

	log.Info("recording",
		"session", ctrl.ID(),
		"target", cfg.Target,
		"fps", cfg.FPS,
		"output", cfg.Output,
		"quality", cfg.Quality,
		"loop", cfg.Loop,
	)

	if preview == nil {
		err = ctrl.Run(ctx)
	} else {
		// Ebitengine must own the main goroutine.
		errCh := make(chan error, 1)
		go func() {
			errCh <- ctrl.Run(ctx)
			preview.Close()
		}()
		if perr := preview.Run(); perr != nil {
			log.Warn("preview window", "err", perr)
			ctrl.RequestStop("preview failed")
		}
		err = <-errCh
	}
	if err != nil {
		return err
	}

	res, _ := ctrl.Result()
	log.Info("recording saved", "path", res.Path, "frames", res.Frames, "bytes", res.Bytes, "reason", ctrl.Reason())
	return nil
}
