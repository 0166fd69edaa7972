package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/compose"
	"github.com/1broseidon/ivicomp/internal/config"
	"github.com/1broseidon/ivicomp/internal/daemon"
	"github.com/1broseidon/ivicomp/internal/ipc"
	"github.com/1broseidon/ivicomp/internal/platform"
	"github.com/1broseidon/ivicomp/internal/render"
	"github.com/1broseidon/ivicomp/internal/scene"
	"github.com/1broseidon/ivicomp/internal/x11"
)

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/ivicomp/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ivicomp daemon [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the compositor in the foreground until SIGINT or SIGTERM.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := loadDaemonConfig(*path)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	log.Printf("Configuration loaded (display source: %s, output: %s, fps: %d)", cfg.DisplaySource, cfg.Output, cfg.Render.FPS)

	var conn *x11.Connection
	if cfg.DisplaySource == config.DisplaySourceX11 || cfg.Output == config.OutputX11 {
		conn, err = x11.NewConnection()
		if err != nil {
			log.Printf("Failed to connect to display: %v", err)
			return 1
		}
		defer conn.Close()
	}

	var backend platform.Backend = platform.NewStaticBackend(cfg.SceneScreens())
	if cfg.DisplaySource == config.DisplaySourceX11 {
		backend = platform.NewX11Backend(conn)
	}
	displays, err := backend.Displays()
	if err != nil {
		log.Printf("Failed to enumerate screens: %v", err)
		return 1
	}
	screens := platform.Screens(displays)
	for _, d := range displays {
		log.Printf("Screen %d (%s): %dx%d at %d,%d", d.ID, d.Name, d.Bounds.Width, d.Bounds.Height, d.Bounds.X, d.Bounds.Y)
	}

	output, err := openOutput(cfg, conn, screens, displays)
	if err != nil {
		log.Printf("Failed to open %s output: %v", cfg.Output, err)
		return 1
	}
	defer output.Close()

	opts, err := cfg.ComposeOptions()
	if err != nil {
		log.Printf("Invalid render options: %v", err)
		return 1
	}
	engine, err := compose.NewEngine(render.NewSoftware(screens, output, cfg.BackgroundColor()), opts, logger)
	if err != nil {
		log.Printf("Failed to create composition engine: %v", err)
		return 1
	}

	sc := scene.New(screens, cfg.SceneOptions()...)
	var disp *command.Dispatcher
	loop := render.NewLoop(sc, engine, render.LoopConfig{
		FPS:         cfg.Render.FPS,
		BeforeFrame: func() { disp.Flush() },
		Logger:      logger,
	})
	disp = command.NewDispatcher(sc, loop, logger)

	ipcServer, err := ipc.NewServer(ipc.ServerConfig{
		SocketPath: cfg.SocketPath,
		Dispatcher: disp,
		Frames:     loop,
		Logger:     logger,
	})
	if err != nil {
		log.Printf("Failed to create IPC server: %v", err)
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		log.Printf("Failed to start IPC server: %v", err)
		return 1
	}
	// Buffers stay mapped until the render loop has stopped.
	defer ipcServer.CloseBuffers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return ipcServer.Run(gctx) })

	if interval := cfg.ReconcileInterval(); interval > 0 {
		reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval: interval,
			Logger:   logger,
		}, daemon.NewStateSynchronizer(disp, logger))
		g.Go(func() error {
			reconciler.Run(gctx)
			return nil
		})
	}

	if conn != nil {
		go conn.EventLoop()
		g.Go(func() error {
			<-gctx.Done()
			conn.Quit()
			return nil
		})
	}

	log.Printf("ivicomp daemon started (socket: %s)", ipcServer.SocketPath())
	err = g.Wait()
	log.Println("Shutting down ivicomp daemon...")
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Daemon error: %v", err)
		return 1
	}
	return 0
}

func loadDaemonConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// openOutput opens the configured presentation target.
func openOutput(cfg *config.Config, conn *x11.Connection, screens []scene.ScreenConfig, displays []platform.Display) (render.Output, error) {
	switch cfg.Output {
	case config.OutputFramebuffer:
		if len(screens) == 0 {
			return nil, errors.New("no screen to show on the framebuffer")
		}
		// The device shows the first screen; frames of others are dropped.
		return render.OpenFramebuffer(cfg.FramebufferDevice, screens[0].ID)
	case config.OutputX11:
		placements := make(map[scene.ID]x11.Placement, len(displays))
		fullscreen := cfg.DisplaySource == config.DisplaySourceX11
		for _, d := range displays {
			placements[d.ID] = x11.Placement{X: d.Bounds.X, Y: d.Bounds.Y, Fullscreen: fullscreen}
		}
		return x11.NewOutput(conn, screens, placements)
	default:
		return render.NewHeadless(), nil
	}
}
