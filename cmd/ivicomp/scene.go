package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/config"
	"github.com/1broseidon/ivicomp/internal/ipc"
	"github.com/1broseidon/ivicomp/internal/runtimepath"
	"github.com/1broseidon/ivicomp/internal/shm"
)

// execFlags are the options every mutating command accepts.
type execFlags struct {
	async bool
	owner int
}

func (e *execFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&e.async, "async", false, "Apply the change before the next frame instead of immediately")
	fs.IntVar(&e.owner, "owner", -1, "Owning process id; objects are removed when it exits (default: parent shell, 0: never)")
}

func (e *execFlags) options() ipc.ExecOptions {
	owner := e.owner
	if owner < 0 {
		// The CLI exits right away; tie objects to the invoking shell.
		owner = os.Getppid()
	}
	return ipc.ExecOptions{Async: e.async, OwnerPID: &owner}
}

func execute(kind command.Kind, payload any, opts ipc.ExecOptions) int {
	res, err := newClient().Execute(kind, payload, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.ID != nil {
		fmt.Println(*res.ID)
	} else if res.Result == "queued" {
		fmt.Fprintln(os.Stderr, "queued")
	}
	return 0
}

// parseFlags parses args and checks the positional argument count.
func parseFlags(fs *flag.FlagSet, args []string, nargs int) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if nargs >= 0 && fs.NArg() != nargs {
		fmt.Fprintf(os.Stderr, "%s expects %d argument(s), got %d\n", fs.Name(), nargs, fs.NArg())
		fs.Usage()
		return 2, false
	}
	return 0, true
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ivicomp %s\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint32(v), nil
}

func parseIDs(args []string) ([]uint32, error) {
	ids := make([]uint32, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseInts parses n comma separated integers such as "0,0,800,480".
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseChromaKey parses "off" or a #rrggbb key color.
func parseChromaKey(s string) (ipc.ChromaKeyPayload, error) {
	if strings.EqualFold(s, "off") || strings.EqualFold(s, "none") {
		return ipc.ChromaKeyPayload{}, nil
	}
	c, err := config.ParseColor(s)
	if err != nil {
		return ipc.ChromaKeyPayload{}, err
	}
	return ipc.ChromaKeyPayload{Enabled: true, R: c.R, G: c.G, B: c.B}, nil
}

// propertyChange is one command produced by "set" flags.
type propertyChange struct {
	kind    command.Kind
	payload any
}

// objectKinds maps the property commands of layers or surfaces.
type objectKinds struct {
	source, destination, position, dimension command.Kind
	opacity, orientation, visibility, chroma command.Kind
}

var (
	layerKinds = objectKinds{
		source: command.KindLayerSetSourceRectangle, destination: command.KindLayerSetDestinationRectangle,
		position: command.KindLayerSetPosition, dimension: command.KindLayerSetDimension,
		opacity: command.KindLayerSetOpacity, orientation: command.KindLayerSetOrientation,
		visibility: command.KindLayerSetVisibility, chroma: command.KindLayerSetChromaKey,
	}
	surfaceKinds = objectKinds{
		source: command.KindSurfaceSetSourceRectangle, destination: command.KindSurfaceSetDestinationRectangle,
		position: command.KindSurfaceSetPosition, dimension: command.KindSurfaceSetDimension,
		opacity: command.KindSurfaceSetOpacity, orientation: command.KindSurfaceSetOrientation,
		visibility: command.KindSurfaceSetVisibility, chroma: command.KindSurfaceSetChromaKey,
	}
)

// setFlags collects property changes in command line order.
type setFlags struct {
	id      uint32
	kinds   objectKinds
	changes []propertyChange
}

func (s *setFlags) register(fs *flag.FlagSet) {
	rect := func(kind *command.Kind) func(string) error {
		return func(v string) error {
			r, err := parseInts(v, 4)
			if err != nil {
				return err
			}
			s.changes = append(s.changes, propertyChange{*kind, &ipc.RectPayload{X: r[0], Y: r[1], Width: r[2], Height: r[3]}})
			return nil
		}
	}
	fs.Func("source", "Source region `x,y,w,h`", rect(&s.kinds.source))
	fs.Func("destination", "Destination region `x,y,w,h`", rect(&s.kinds.destination))
	fs.Func("position", "Destination position `x,y`", func(v string) error {
		p, err := parseInts(v, 2)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.position, &ipc.RectPayload{X: p[0], Y: p[1]}})
		return nil
	})
	fs.Func("dimension", "Destination size `w,h`", func(v string) error {
		d, err := parseInts(v, 2)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.dimension, &ipc.RectPayload{Width: d[0], Height: d[1]}})
		return nil
	})
	fs.Func("opacity", "Opacity from 0 to 1", func(v string) error {
		o, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.opacity, &ipc.OpacityPayload{Opacity: o}})
		return nil
	})
	fs.Func("orientation", "Clockwise rotation in `degrees` (0, 90, 180, 270)", func(v string) error {
		d, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.orientation, &ipc.OrientationPayload{Degrees: d}})
		return nil
	})
	fs.Func("visible", "Visibility (true or false)", func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.visibility, &ipc.VisibilityPayload{Visible: b}})
		return nil
	})
	fs.Func("chroma-key", "Key `color` #rrggbb, or off", func(v string) error {
		ck, err := parseChromaKey(v)
		if err != nil {
			return err
		}
		s.changes = append(s.changes, propertyChange{s.kinds.chroma, &ck})
		return nil
	})
}

// apply stamps the object id into every payload and runs the changes.
func (s *setFlags) apply(opts ipc.ExecOptions) int {
	if len(s.changes) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to set")
		return 2
	}
	client := newClient()
	for _, c := range s.changes {
		switch p := c.payload.(type) {
		case *ipc.RectPayload:
			p.ID = s.id
		case *ipc.OpacityPayload:
			p.ID = s.id
		case *ipc.OrientationPayload:
			p.ID = s.id
		case *ipc.VisibilityPayload:
			p.ID = s.id
		case *ipc.ChromaKeyPayload:
			p.ID = s.id
		case *ipc.LayerTypePayload:
			p.ID = s.id
		}
		if _, err := client.Execute(c.kind, c.payload, opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

func printLayerUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ivicomp layer create [--id N] [--width W --height H]")
	fmt.Fprintln(w, "  ivicomp layer remove <id>")
	fmt.Fprintln(w, "  ivicomp layer set <id> [--source x,y,w,h] [--destination x,y,w,h] [--opacity F] [--visible B] ...")
	fmt.Fprintln(w, "  ivicomp layer add-surface <layer> <surface>")
	fmt.Fprintln(w, "  ivicomp layer remove-surface <layer> <surface>")
	fmt.Fprintln(w, "  ivicomp layer render-order <layer> [surface...]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command accepts --async and --owner PID.")
}

func runLayer(args []string) int {
	if len(args) == 0 {
		printLayerUsage(os.Stderr)
		return 2
	}
	var ef execFlags

	switch args[0] {
	case "create":
		fs := newFlagSet("create", "layer create [--id N] [--width W --height H]")
		ef.register(fs)
		id := fs.Int("id", -1, "Layer id (default: generated)")
		width := fs.Int("width", 0, "Layer width")
		height := fs.Int("height", 0, "Layer height")
		if code, ok := parseFlags(fs, args[1:], 0); !ok {
			return code
		}
		return execute(command.KindLayerCreate, createPayload(*id, *width, *height), ef.options())

	case "remove":
		fs := newFlagSet("remove", "layer remove <id>")
		ef.register(fs)
		if code, ok := parseFlags(fs, args[1:], 1); !ok {
			return code
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return execute(command.KindLayerRemove, ipc.IDPayload{ID: id}, ef.options())

	case "set":
		fs := newFlagSet("set", "layer set <id> [flags]")
		ef.register(fs)
		set := setFlags{kinds: layerKinds}
		set.register(fs)
		fs.Func("type", "Layer `type` (hardware, software-2d, software-2.5d)", func(v string) error {
			set.changes = append(set.changes, propertyChange{command.KindLayerSetType, &ipc.LayerTypePayload{Type: v}})
			return nil
		})
		return runSet(fs, args[1:], &set, &ef)

	case "add-surface", "remove-surface":
		fs := newFlagSet(args[0], "layer "+args[0]+" <layer> <surface>")
		ef.register(fs)
		if code, ok := parseFlags(fs, args[1:], 2); !ok {
			return code
		}
		ids, err := parseIDs(fs.Args())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		kind := command.KindLayerAddSurface
		if args[0] == "remove-surface" {
			kind = command.KindLayerRemoveSurface
		}
		return execute(kind, ipc.MembershipPayload{LayerID: ids[0], SurfaceID: ids[1]}, ef.options())

	case "render-order":
		fs := newFlagSet("render-order", "layer render-order <layer> [surface...]")
		ef.register(fs)
		return runRenderOrder(fs, args[1:], command.KindLayerSetRenderOrder, &ef)

	case "help", "-h", "--help":
		printLayerUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown layer command: %s\n\n", args[0])
		printLayerUsage(os.Stderr)
		return 2
	}
}

func printSurfaceUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ivicomp surface create [--id N]")
	fmt.Fprintln(w, "  ivicomp surface remove <id>")
	fmt.Fprintln(w, "  ivicomp surface set <id> [--source x,y,w,h] [--destination x,y,w,h] [--opacity F] [--visible B] ...")
	fmt.Fprintln(w, "  ivicomp surface attach <id> <image.png>")
	fmt.Fprintln(w, "  ivicomp surface detach <id>")
	fmt.Fprintln(w, "  ivicomp surface damage <id>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Every command accepts --async and --owner PID.")
}

func runSurface(args []string) int {
	if len(args) == 0 {
		printSurfaceUsage(os.Stderr)
		return 2
	}
	var ef execFlags

	switch args[0] {
	case "create":
		fs := newFlagSet("create", "surface create [--id N]")
		ef.register(fs)
		id := fs.Int("id", -1, "Surface id (default: generated)")
		if code, ok := parseFlags(fs, args[1:], 0); !ok {
			return code
		}
		return execute(command.KindSurfaceCreate, createPayload(*id, 0, 0), ef.options())

	case "remove", "detach", "damage":
		fs := newFlagSet(args[0], "surface "+args[0]+" <id>")
		ef.register(fs)
		if code, ok := parseFlags(fs, args[1:], 1); !ok {
			return code
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		kind := map[string]command.Kind{
			"remove": command.KindSurfaceRemove,
			"detach": command.KindSurfaceRemoveNativeContent,
			"damage": command.KindSurfaceDamage,
		}[args[0]]
		return execute(kind, ipc.IDPayload{ID: id}, ef.options())

	case "set":
		fs := newFlagSet("set", "surface set <id> [flags]")
		ef.register(fs)
		set := setFlags{kinds: surfaceKinds}
		set.register(fs)
		return runSet(fs, args[1:], &set, &ef)

	case "attach":
		fs := newFlagSet("attach", "surface attach <id> <image.png>")
		ef.register(fs)
		if code, ok := parseFlags(fs, args[1:], 2); !ok {
			return code
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		if err := attachImage(id, fs.Arg(1), ef.options()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "help", "-h", "--help":
		printSurfaceUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown surface command: %s\n\n", args[0])
		printSurfaceUsage(os.Stderr)
		return 2
	}
}

func runScreen(args []string) int {
	usage := func(w io.Writer) {
		fmt.Fprintln(w, "Usage:")
		fmt.Fprintln(w, "  ivicomp screen render-order <screen> [layer...]")
	}
	if len(args) == 0 {
		usage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "render-order":
		var ef execFlags
		fs := newFlagSet("render-order", "screen render-order <screen> [layer...]")
		ef.register(fs)
		return runRenderOrder(fs, args[1:], command.KindScreenSetRenderOrder, &ef)
	case "help", "-h", "--help":
		usage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown screen command: %s\n\n", args[0])
		usage(os.Stderr)
		return 2
	}
}

func runSet(fs *flag.FlagSet, args []string, set *setFlags, ef *execFlags) int {
	// The id comes first so flags can follow it.
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if code, ok := parseFlags(fs, args, -1); !ok {
			return code
		}
		fmt.Fprintln(os.Stderr, "set requires an id")
		fs.Usage()
		return 2
	}
	id, err := parseID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if code, ok := parseFlags(fs, args[1:], 0); !ok {
		return code
	}
	set.id = id
	return set.apply(ef.options())
}

func runRenderOrder(fs *flag.FlagSet, args []string, kind command.Kind, ef *execFlags) int {
	if code, ok := parseFlags(fs, args, -1); !ok {
		return code
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "render-order requires an id")
		fs.Usage()
		return 2
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return execute(kind, ipc.RenderOrderPayload{ID: ids[0], IDs: ids[1:]}, ef.options())
}

func createPayload(id, width, height int) ipc.CreatePayload {
	p := ipc.CreatePayload{Width: width, Height: height}
	if id >= 0 {
		v := uint32(id)
		p.ID = &v
	}
	return p
}

// attachImage decodes a PNG into a shared buffer and hands it to the
// daemon, which keeps its own mapping.
func attachImage(id uint32, path string, opts ipc.ExecOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	dir, err := runtimepath.BufferDir()
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return attachDecoded(newClient(), dir, id, name, img, opts)
}

type executor interface {
	Execute(kind command.Kind, payload any, opts ipc.ExecOptions) (*ipc.ExecuteData, error)
}

func attachDecoded(client executor, dir string, id uint32, name string, img image.Image, opts ipc.ExecOptions) error {
	bufPath, err := shm.Create(dir, name, img)
	if err != nil {
		return fmt.Errorf("failed to write buffer: %w", err)
	}
	defer os.Remove(bufPath)

	b := img.Bounds()
	_, err = client.Execute(command.KindSurfaceSetNativeContent, ipc.ContentPayload{
		ID:     id,
		Path:   bufPath,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: "RGBA_8888",
	}, opts)
	return err
}

func runWatch(args []string) int {
	fs := newFlagSet("watch", "watch [layer:<id>|surface:<id>...]")
	if code, ok := parseFlags(fs, args, -1); !ok {
		return code
	}
	targets, err := parseWatchTargets(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient()
	err = client.Watch(ctx, func(handle uint64) error {
		if len(targets) == 0 {
			return subscribeAll(client, handle)
		}
		for _, t := range targets {
			if _, err := client.Execute(t.kind, ipc.NotificationPayload{ID: t.id, Client: handle}, ipc.ExecOptions{}); err != nil {
				return err
			}
		}
		return nil
	}, func(ev ipc.Event) {
		fmt.Printf("%s %d: %s\n", ev.ObjectType, ev.ObjectID, strings.Join(ev.Changes, ","))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type watchTarget struct {
	kind command.Kind
	id   uint32
}

// parseWatchTargets parses arguments such as "layer:3" or "surface:10".
func parseWatchTargets(args []string) ([]watchTarget, error) {
	targets := make([]watchTarget, 0, len(args))
	for _, a := range args {
		object, rawID, ok := strings.Cut(a, ":")
		if !ok {
			return nil, fmt.Errorf("invalid watch target %q (want layer:<id> or surface:<id>)", a)
		}
		id, err := parseID(rawID)
		if err != nil {
			return nil, err
		}
		switch object {
		case "layer":
			targets = append(targets, watchTarget{command.KindLayerAddNotification, id})
		case "surface":
			targets = append(targets, watchTarget{command.KindSurfaceAddNotification, id})
		default:
			return nil, fmt.Errorf("invalid watch target %q (want layer:<id> or surface:<id>)", a)
		}
	}
	return targets, nil
}

// subscribeAll subscribes to every object that exists now.
func subscribeAll(client *ipc.Client, handle uint64) error {
	layers, err := client.ListLayers()
	if err != nil {
		return err
	}
	surfaces, err := client.ListSurfaces()
	if err != nil {
		return err
	}
	for _, l := range layers.Layers {
		if _, err := client.Execute(command.KindLayerAddNotification, ipc.NotificationPayload{ID: l.ID, Client: handle}, ipc.ExecOptions{}); err != nil {
			return err
		}
	}
	for _, s := range surfaces.Surfaces {
		if _, err := client.Execute(command.KindSurfaceAddNotification, ipc.NotificationPayload{ID: s.ID, Client: handle}, ipc.ExecOptions{}); err != nil {
			return err
		}
	}
	return nil
}
