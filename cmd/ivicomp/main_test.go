package main

import (
	"flag"
	"image"
	"io"
	"os"
	"testing"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/config"
	"github.com/1broseidon/ivicomp/internal/ipc"
)

func TestParseInts(t *testing.T) {
	got, err := parseInts("0, 10,800,480", 4)
	if err != nil {
		t.Fatalf("parseInts: %v", err)
	}
	if got[1] != 10 || got[3] != 480 {
		t.Fatalf("unexpected values %v", got)
	}
	if _, err := parseInts("1,2,3", 4); err == nil {
		t.Fatalf("expected error for too few values")
	}
	if _, err := parseInts("1,x", 2); err == nil {
		t.Fatalf("expected error for non-numeric value")
	}
}

func TestParseIDs(t *testing.T) {
	got, err := parseIDs([]string{"3", "4,5", "6,"})
	if err != nil {
		t.Fatalf("parseIDs: %v", err)
	}
	want := []uint32{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("parseIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("parseIDs = %v, want %v", got, want)
		}
	}
	if _, err := parseIDs([]string{"-1"}); err == nil {
		t.Fatalf("expected negative id to be rejected")
	}
}

func TestParseChromaKey(t *testing.T) {
	ck, err := parseChromaKey("#00ff00")
	if err != nil {
		t.Fatalf("parseChromaKey: %v", err)
	}
	if !ck.Enabled || ck.G != 0xff || ck.R != 0 {
		t.Fatalf("unexpected key %+v", ck)
	}
	off, err := parseChromaKey("off")
	if err != nil || off.Enabled {
		t.Fatalf("expected disabled key, got %+v (%v)", off, err)
	}
	if _, err := parseChromaKey("green"); err == nil {
		t.Fatalf("expected invalid color to fail")
	}
}

func TestParseWatchTargets(t *testing.T) {
	targets, err := parseWatchTargets([]string{"layer:3", "surface:10"})
	if err != nil {
		t.Fatalf("parseWatchTargets: %v", err)
	}
	if len(targets) != 2 || targets[0].kind != command.KindLayerAddNotification || targets[1].id != 10 {
		t.Fatalf("unexpected targets %+v", targets)
	}
	for _, bad := range []string{"layer", "screen:1", "surface:x"} {
		if _, err := parseWatchTargets([]string{bad}); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestSetFlags_KeepsCommandLineOrder(t *testing.T) {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	set := setFlags{kinds: surfaceKinds}
	set.register(fs)

	err := fs.Parse([]string{"--visible", "true", "--destination", "1,2,30,40", "--opacity", "0.5", "--chroma-key", "#0000ff"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantKinds := []command.Kind{
		command.KindSurfaceSetVisibility,
		command.KindSurfaceSetDestinationRectangle,
		command.KindSurfaceSetOpacity,
		command.KindSurfaceSetChromaKey,
	}
	if len(set.changes) != len(wantKinds) {
		t.Fatalf("expected %d changes, got %d", len(wantKinds), len(set.changes))
	}
	for i, k := range wantKinds {
		if set.changes[i].kind != k {
			t.Fatalf("change %d = %s, want %s", i, set.changes[i].kind, k)
		}
	}
	rect := set.changes[1].payload.(*ipc.RectPayload)
	if rect.X != 1 || rect.Height != 40 {
		t.Fatalf("unexpected rect %+v", rect)
	}

	if err := fs.Parse([]string{"--orientation", "ninety"}); err == nil {
		t.Fatalf("expected non-numeric orientation to fail")
	}
}

func TestCreatePayload(t *testing.T) {
	if p := createPayload(-1, 100, 50); p.ID != nil || p.Width != 100 {
		t.Fatalf("expected generated id, got %+v", p)
	}
	if p := createPayload(0, 0, 0); p.ID == nil || *p.ID != 0 {
		t.Fatalf("expected explicit id 0, got %+v", p)
	}
}

func TestExecFlags_DefaultOwnerIsParent(t *testing.T) {
	ef := execFlags{owner: -1}
	opts := ef.options()
	if opts.OwnerPID == nil || *opts.OwnerPID != os.Getppid() {
		t.Fatalf("expected parent pid owner, got %v", opts.OwnerPID)
	}
	ef.owner = 0
	if opts := ef.options(); *opts.OwnerPID != 0 {
		t.Fatalf("expected explicit unowned, got %d", *opts.OwnerPID)
	}
}

type recordingExecutor struct {
	kind    command.Kind
	payload any
	exists  bool
}

func (r *recordingExecutor) Execute(kind command.Kind, payload any, _ ipc.ExecOptions) (*ipc.ExecuteData, error) {
	r.kind, r.payload = kind, payload
	if p, ok := payload.(ipc.ContentPayload); ok {
		_, err := os.Stat(p.Path)
		r.exists = err == nil
	}
	return &ipc.ExecuteData{Result: "success"}, nil
}

func TestAttachDecoded_WritesAndRemovesBuffer(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingExecutor{}
	img := image.NewNRGBA(image.Rect(0, 0, 5, 4))

	if err := attachDecoded(rec, dir, 9, "logo", img, ipc.ExecOptions{}); err != nil {
		t.Fatalf("attachDecoded: %v", err)
	}
	if rec.kind != command.KindSurfaceSetNativeContent {
		t.Fatalf("unexpected command %s", rec.kind)
	}
	p := rec.payload.(ipc.ContentPayload)
	if p.ID != 9 || p.Width != 5 || p.Height != 4 || p.Format != "RGBA_8888" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if !rec.exists {
		t.Fatalf("expected buffer file to exist while the daemon maps it")
	}
	if _, err := os.Stat(p.Path); !os.IsNotExist(err) {
		t.Fatalf("expected buffer file removed afterwards, stat err = %v", err)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatIDs(nil); got != "-" {
		t.Fatalf("formatIDs(nil) = %q", got)
	}
	if got := formatIDs([]uint32{1, 20}); got != "1,20" {
		t.Fatalf("formatIDs = %q", got)
	}
	if got := formatRect(ipc.RectData{X: 1, Y: 2, Width: 3, Height: 4}); got != "1,2 3x4" {
		t.Fatalf("formatRect = %q", got)
	}
	src := config.Source{Kind: config.SourceFile, File: "/etc/ivicomp.yaml", Line: 3, Column: 5}
	if got := formatSource(src); got != "file:/etc/ivicomp.yaml:3:5" {
		t.Fatalf("formatSource = %q", got)
	}
	if got := formatSource(config.Source{Kind: config.SourceDefault}); got != "default" {
		t.Fatalf("formatSource = %q", got)
	}
}

func TestParseMCPServeFlags(t *testing.T) {
	opts, _, ok := parseMCPServeFlags([]string{"--socket", "/tmp/ivi.sock", "--buffer-dir", "/tmp/buf"})
	if !ok {
		t.Fatalf("expected flags to parse")
	}
	if opts.socketPath != "/tmp/ivi.sock" || opts.bufferDir != "/tmp/buf" || opts.configPath != "" {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, code, ok := parseMCPServeFlags([]string{"extra"}); ok || code != 2 {
		t.Fatalf("expected positional argument to be rejected, got ok=%v code=%d", ok, code)
	}
}
