package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/ivicomp/internal/ipc"
	"github.com/1broseidon/ivicomp/internal/mcp"
)

const mcpServeUsage = "mcp serve [--config path] [--socket path] [--buffer-dir dir]"

type mcpServeOptions struct {
	configPath string
	socketPath string
	bufferDir  string
}

func runMCP(args []string) int {
	sub := "help"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "serve":
	case "help", "-h", "--help":
		fmt.Fprintf(os.Stdout, "Usage: ivicomp %s\n", mcpServeUsage)
		fmt.Fprintln(os.Stdout, "Serves the scene tools to an MCP client over stdin/stdout.")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\nUsage: ivicomp %s\n", sub, mcpServeUsage)
		return 2
	}

	opts, code, ok := parseMCPServeFlags(args[1:])
	if !ok {
		return code
	}

	cfg, err := loadDaemonConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	// stdout carries the protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	client := clientFor(cfg)
	if opts.socketPath != "" {
		client = ipc.NewClientWithSocket(opts.socketPath)
	}
	if _, err := client.GetStatus(); err != nil {
		// The client may start before the compositor; tools report the
		// connection error until it is up.
		logger.Warn("compositor not reachable yet", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(client, mcp.Options{BufferDir: opts.bufferDir, Logger: logger})
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mcp server stopped", "error", err)
		return 1
	}
	return 0
}

func parseMCPServeFlags(args []string) (mcpServeOptions, int, bool) {
	var opts mcpServeOptions
	fs := newFlagSet("mcp serve", mcpServeUsage)
	fs.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/ivicomp/config.yaml)")
	fs.StringVar(&opts.socketPath, "socket", "", "compositor socket, overriding the config")
	fs.StringVar(&opts.bufferDir, "buffer-dir", "", "directory for image buffers handed to the compositor")
	code, ok := parseFlags(fs, args, 0)
	return opts, code, ok
}
