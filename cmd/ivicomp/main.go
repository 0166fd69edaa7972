package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/1broseidon/ivicomp/internal/config"
	"github.com/1broseidon/ivicomp/internal/ipc"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "screens":
		os.Exit(runScreens(os.Args[2:]))
	case "layers":
		os.Exit(runLayers(os.Args[2:]))
	case "surfaces":
		os.Exit(runSurfaces(os.Args[2:]))
	case "layer":
		os.Exit(runLayer(os.Args[2:]))
	case "surface":
		os.Exit(runSurface(os.Args[2:]))
	case "screen":
		os.Exit(runScreen(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: ivicomp <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon                 Start the compositor (foreground)")
	fmt.Fprintln(w, "  status                 Show daemon status")
	fmt.Fprintln(w, "  screens                List screens and their render order")
	fmt.Fprintln(w, "  layers                 List layers")
	fmt.Fprintln(w, "  surfaces               List surfaces")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  layer create           Create a layer")
	fmt.Fprintln(w, "  layer remove           Remove a layer")
	fmt.Fprintln(w, "  layer set              Change layer properties")
	fmt.Fprintln(w, "  layer add-surface      Add a surface to a layer")
	fmt.Fprintln(w, "  layer remove-surface   Remove a surface from a layer")
	fmt.Fprintln(w, "  layer render-order     Replace the surfaces of a layer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  surface create         Create a surface")
	fmt.Fprintln(w, "  surface remove         Remove a surface")
	fmt.Fprintln(w, "  surface set            Change surface properties")
	fmt.Fprintln(w, "  surface attach         Show a PNG image on a surface")
	fmt.Fprintln(w, "  surface detach         Remove the content of a surface")
	fmt.Fprintln(w, "  surface damage         Mark surface content as updated")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  screen render-order    Replace the layers shown on a screen")
	fmt.Fprintln(w, "  watch                  Print property changes of layers and surfaces")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate        Validate configuration")
	fmt.Fprintln(w, "  config print           Print configuration")
	fmt.Fprintln(w, "  config explain         Explain a config value")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve              Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'ivicomp <command> --help' for command-specific options.")
}

// queryFlags parses the flags shared by the listing commands.
func queryFlags(name, usage string, args []string) (asJSON bool, code int, ok bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Print JSON even on a terminal")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ivicomp %s [--json]\n\n%s\n", name, usage)
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return false, 0, false
		}
		return false, 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", name)
		fs.Usage()
		return false, 2, false
	}
	return *jsonOut || !term.IsTerminal(int(os.Stdout.Fd())), 0, true
}

// newClient connects to the socket named in the config, falling back to the
// runtime default when there is no usable config.
func newClient() *ipc.Client {
	cfg, err := config.Load()
	if err != nil {
		return ipc.NewClient()
	}
	return clientFor(cfg)
}

func clientFor(cfg *config.Config) *ipc.Client {
	if cfg.SocketPath != "" {
		return ipc.NewClientWithSocket(cfg.SocketPath)
	}
	return ipc.NewClient()
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	asJSON, code, ok := queryFlags("status", "Show daemon status via IPC.", args)
	if !ok {
		return code
	}
	status, err := newClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if asJSON {
		return printJSON(status)
	}
	fmt.Printf("daemon_running:    %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds:    %d\n", status.UptimeSeconds)
	fmt.Printf("screens:           %d\n", status.Screens)
	fmt.Printf("layers:            %d\n", status.Layers)
	fmt.Printf("surfaces:          %d\n", status.Surfaces)
	fmt.Printf("commands_executed: %d\n", status.CommandsExecuted)
	fmt.Printf("commands_failed:   %d\n", status.CommandsFailed)
	fmt.Printf("commands_queued:   %d\n", status.CommandsQueued)
	fmt.Printf("frames:            %d\n", status.Frames)
	fmt.Printf("screens_composed:  %d\n", status.ScreensComposed)
	fmt.Printf("watchers:          %d\n", status.Watchers)
	fmt.Printf("buffers:           %d\n", status.Buffers)
	return 0
}

func runScreens(args []string) int {
	asJSON, code, ok := queryFlags("screens", "List screens and the layers they show, bottom first.", args)
	if !ok {
		return code
	}
	data, err := newClient().GetScreens()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if asJSON {
		return printJSON(data)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tLAYERS")
	for _, s := range data.Screens {
		fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%s\n", s.ID, s.Name, s.Width, s.Height, formatIDs(s.RenderOrder))
	}
	tw.Flush()
	return 0
}

func runLayers(args []string) int {
	asJSON, code, ok := queryFlags("layers", "List layers with their properties and surfaces.", args)
	if !ok {
		return code
	}
	data, err := newClient().ListLayers()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if asJSON {
		return printJSON(data)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tVISIBLE\tOPACITY\tROT\tSOURCE\tDESTINATION\tTYPE\tRENDERED\tSURFACES")
	for _, l := range data.Layers {
		fmt.Fprintf(tw, "%d\t%d\t%v\t%.2f\t%d\t%s\t%s\t%s\t%v\t%s\n",
			l.ID, l.CreatorPID, l.Visible, l.Opacity, l.Orientation,
			formatRect(l.Source), formatRect(l.Destination), l.Type, l.Rendered, formatIDs(l.Surfaces))
	}
	tw.Flush()
	return 0
}

func runSurfaces(args []string) int {
	asJSON, code, ok := queryFlags("surfaces", "List surfaces with their properties and content.", args)
	if !ok {
		return code
	}
	data, err := newClient().ListSurfaces()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if asJSON {
		return printJSON(data)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tLAYER\tVISIBLE\tOPACITY\tROT\tSOURCE\tDESTINATION\tCONTENT\tFRAMES")
	for _, s := range data.Surfaces {
		layer := "-"
		if s.LayerID != nil {
			layer = strconv.FormatUint(uint64(*s.LayerID), 10)
		}
		content := "-"
		if s.HasContent {
			content = fmt.Sprintf("%dx%d %s", s.OriginalWidth, s.OriginalHeight, s.PixelFormat)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%v\t%.2f\t%d\t%s\t%s\t%s\t%d\n",
			s.ID, s.CreatorPID, layer, s.Visible, s.Opacity, s.Orientation,
			formatRect(s.Source), formatRect(s.Destination), content, s.FrameCounter)
	}
	tw.Flush()
	return 0
}

func formatRect(r ipc.RectData) string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

func formatIDs(ids []uint32) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  ivicomp config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  ivicomp config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  ivicomp config explain [--path PATH] <yaml.path>")
		return 2
	}

	loadConfig := func(path string) (*config.LoadResult, error) {
		if path == "" {
			return config.LoadWithSources()
		}
		return config.LoadFromPath(path)
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/ivicomp/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/ivicomp/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/ivicomp/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, src, err := config.Explain(res, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(src))
		fmt.Printf("value:\n%s", string(out))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		if src.Name != "" {
			return "default:" + src.Name
		}
		return "default"
	default:
		return string(src.Kind)
	}
}
