package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/garypippi/jacin/internal/clipboard"
	"github.com/garypippi/jacin/internal/config"
	"github.com/garypippi/jacin/internal/coordinator"
	"github.com/garypippi/jacin/internal/enginerpc"
	"github.com/garypippi/jacin/internal/engineglue"
	"github.com/garypippi/jacin/internal/ipc"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/popup"
	"github.com/garypippi/jacin/internal/wayland"
)

var cleanFlag bool

func init() {
	rootCmd.Flags().BoolVar(&cleanFlag, "clean", false, "start the engine with no user configuration")
}

var mainLog = logger.For("main")

// runIME is the root command's default action (spec.md §6: "a single
// binary"). It wires C9–C15 around the coordination layer and drives
// the main reactor until a signal or fatal error ends it.
func runIME(cmd *cobra.Command, args []string) error {
	if cleanFlag {
		config.InitClean()
	} else if err := config.Init(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := config.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wlClient, err := wayland.Connect()
	if err != nil {
		return fmt.Errorf("connect to wayland display: %w", err)
	}
	defer wlClient.Close()

	bootstrapArgs, err := engineglue.Install()
	if err != nil {
		return fmt.Errorf("install engine-side glue: %w", err)
	}

	engineArgs := []string{"--embed", "--headless"}
	if cleanFlag {
		engineArgs = append(engineArgs, "-u", "NONE")
	}
	engineArgs = append(engineArgs, bootstrapArgs...)
	engine, err := enginerpc.Start(ctx, cfg.Engine.Binary, engineArgs...)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		_ = engine.Shutdown(shutdownCtx)
	}()

	im, err := wlClient.InputMethodManager().GetInputMethod(wlClient.Seat())
	if err != nil {
		return fmt.Errorf("get input method: %w", err)
	}
	vk, err := wlClient.VirtualKeyboardManager().CreateVirtualKeyboard(wlClient.Seat())
	if err != nil {
		return fmt.Errorf("create virtual keyboard: %w", err)
	}

	clip := clipboard.New()
	clip.Init()

	popupSurface, err := popup.New(wlClient.Shm(), wlClient.Compositor(), im, cfg, popup.DefaultSolidRenderer)
	if err != nil {
		mainLog.Warn("popup surface unavailable, running without an overlay", "error", err)
	}

	var popupUpdater coordinator.PopupUpdater
	if popupSurface != nil {
		popupUpdater = popupSurface
	} else {
		popupUpdater = noopPopup{}
	}

	coord := coordinator.New(engine, coordinator.NewWireInputMethod(im), vk, popupUpdater, clip, cfg)

	socketServer, err := ipc.NewSocketServer()
	if err != nil {
		mainLog.Warn("doctor socket unavailable", "error", err)
		socketServer = nil
	}
	if socketServer != nil {
		defer socketServer.Stop()
	}

	wlDone := make(chan error, 1)
	go func() { wlDone <- wlClient.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	statusTicker := time.NewTicker(250 * time.Millisecond)
	defer statusTicker.Stop()

	mainLog.Info("jacin running", "engine", cfg.Engine.Binary)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-wlDone:
			if err != nil && err != context.Canceled {
				return fmt.Errorf("wayland dispatch loop exited: %w", err)
			}
			return nil

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				coord.HandleToggleSignal()
			case syscall.SIGTERM, syscall.SIGINT:
				mainLog.Info("shutting down", "signal", sig)
				cancel()
			}

		case ev, ok := <-engine.Events():
			if !ok {
				return fmt.Errorf("engine event channel closed")
			}
			coord.DispatchEvent(ctx, ev)

		case <-coord.RepeatC():
			coord.FireRepeat(ctx)

		case <-statusTicker.C:
			if socketServer != nil {
				socketServer.Publish(buildStatus(coord))
			}
		}
	}
}

func buildStatus(coord *coordinator.Coordinator) ipc.Status {
	return ipc.Status{
		Lifecycle:         coord.State().Lifecycle().String(),
		Mode:              coord.State().Mode(),
		Pending:           coord.Pending().Load().String(),
		ReactivationCount: coord.State().ReactivationCount(),
		Serial:            coord.Serial(),
		Recording:         coord.Recording(),
		CommandBuffer:     coord.CommandBuffer(),
		EngineReady:       coord.EngineReady(),
		Timestamp:         time.Now(),
	}
}

// noopPopup is used when the compositor doesn't support a wl_shm popup
// surface (spec.md §1: the core treats rendering collaborators as
// optional infrastructure, not a hard dependency).
type noopPopup struct{}

func (noopPopup) Update(coordinator.PopupContent) {}
func (noopPopup) Hide()                           {}
