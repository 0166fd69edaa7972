package command

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/1broseidon/ivicomp/internal/geometry"
	"github.com/1broseidon/ivicomp/internal/scene"
)

type countingRedrawer struct {
	redraws int
	wakes   int
}

func (r *countingRedrawer) Redraw() { r.redraws++ }
func (r *countingRedrawer) Wake()   { r.wakes++ }

func newTestDispatcher() (*Dispatcher, *countingRedrawer) {
	sc := scene.New([]scene.ScreenConfig{{ID: 0, Name: "main", Width: 800, Height: 480}})
	r := &countingRedrawer{}
	return NewDispatcher(sc, r, nil), r
}

func mustSucceed(t *testing.T, d *Dispatcher, cmd Command) ExecutionResult {
	t.Helper()
	res := d.Dispatch(cmd)
	if !res.Succeeded() {
		t.Fatalf("%s: expected success, got %s", cmd, res)
	}
	return res
}

func TestKinds_AllNamedAndParseable(t *testing.T) {
	for _, k := range Kinds() {
		name := k.String()
		if name == "" {
			t.Fatalf("kind %d has no name", int(k))
		}
		got, err := ParseKind(name)
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseKind("layer.explode"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestScreenSetRenderOrder_DuplicatesRejected(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1, Width: 10, Height: 10})
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 2, Width: 10, Height: 10})
	mustSucceed(t, d, &ScreenSetRenderOrder{Base: Sync(1), ScreenID: 0, LayerIDs: []scene.ID{2}})

	res := d.Dispatch(&ScreenSetRenderOrder{Base: Sync(1), ScreenID: 0, LayerIDs: []scene.ID{1, 1}})
	if res != ExecutionFailed {
		t.Fatalf("expected failure, got %s", res)
	}
	if ids, _ := d.Scene().LayerIDsOfScreen(0); !slices.Equal(ids, []scene.ID{2}) {
		t.Fatalf("expected render order unchanged, got %v", ids)
	}
}

func TestScreenSetRenderOrder_UnknownScreenFails(t *testing.T) {
	d, _ := newTestDispatcher()
	if res := d.Dispatch(&ScreenSetRenderOrder{Base: Sync(1), ScreenID: 9}); res != ExecutionFailed {
		t.Fatalf("expected failure, got %s", res)
	}
}

func TestScreenSetRenderOrder_SkipsMissingAndForces(t *testing.T) {
	d, r := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})
	if res := mustSucceed(t, d, &ScreenSetRenderOrder{Base: Sync(1), ScreenID: 0, LayerIDs: []scene.ID{1, 50}}); res != ExecutionSuccessRedraw {
		t.Fatalf("expected success-redraw, got %s", res)
	}
	if r.redraws != 1 {
		t.Fatalf("expected one redraw request, got %d", r.redraws)
	}
	var forced bool
	d.Scene().Do(func(tx *scene.Tx) { forced = tx.Screen(0).TakeForcedComposition() })
	if forced {
		t.Fatalf("first render order must not force")
	}

	mustSucceed(t, d, &ScreenSetRenderOrder{Base: Sync(1), ScreenID: 0, LayerIDs: nil})
	d.Scene().Do(func(tx *scene.Tx) { forced = tx.Screen(0).TakeForcedComposition() })
	if !forced {
		t.Fatalf("replacing a non-empty order must force composition")
	}
	info, _ := d.Scene().Layer(1)
	if info.ScreenID != scene.InvalidID {
		t.Fatalf("expected layer to leave the screen, got %d", info.ScreenID)
	}
}

func TestLayerSetRenderOrder_SkipsInvalid(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 11})

	res := d.Dispatch(&LayerSetRenderOrder{Base: Sync(1), LayerID: 1, SurfaceIDs: []scene.ID{10, 999}})
	if res != ExecutionSuccessRedraw {
		t.Fatalf("expected success-redraw, got %s", res)
	}
	info, _ := d.Scene().Layer(1)
	if !slices.Equal(info.Surfaces, []scene.ID{10}) {
		t.Fatalf("expected only the valid surface, got %v", info.Surfaces)
	}

	mustSucceed(t, d, &LayerSetRenderOrder{Base: Sync(1), LayerID: 1, SurfaceIDs: []scene.ID{11, 10}})
	info, _ = d.Scene().Layer(1)
	if !slices.Equal(info.Surfaces, []scene.ID{11, 10}) {
		t.Fatalf("expected reordered surfaces, got %v", info.Surfaces)
	}

	if res := d.Dispatch(&LayerSetRenderOrder{Base: Sync(1), LayerID: 1, SurfaceIDs: []scene.ID{10, 10}}); res != ExecutionFailed {
		t.Fatalf("expected duplicates to fail, got %s", res)
	}
	info, _ = d.Scene().Layer(1)
	if !slices.Equal(info.Surfaces, []scene.ID{11, 10}) {
		t.Fatalf("failed command must not change the layer, got %v", info.Surfaces)
	}
}

func TestLayerSetRenderOrder_SkipsSurfaceOfOtherLayer(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 2})
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	mustSucceed(t, d, &LayerAddSurface{Base: Sync(1), LayerID: 2, SurfaceID: 10})

	mustSucceed(t, d, &LayerSetRenderOrder{Base: Sync(1), LayerID: 1, SurfaceIDs: []scene.ID{10}})
	if info, _ := d.Scene().Surface(10); info.LayerID != 2 {
		t.Fatalf("surface must stay on its layer, got %d", info.LayerID)
	}
}

func TestNotFound_Fails(t *testing.T) {
	d, _ := newTestDispatcher()
	cmds := []Command{
		&LayerRemove{Base: Sync(1), LayerID: 3},
		&LayerSetOpacity{Base: Sync(1), LayerID: 3, Opacity: 0.5},
		&LayerAddSurface{Base: Sync(1), LayerID: 3, SurfaceID: 4},
		&SurfaceRemove{Base: Sync(1), SurfaceID: 4},
		&SurfaceSetVisibility{Base: Sync(1), SurfaceID: 4, Visible: true},
		&SurfaceDamage{Base: Sync(1), SurfaceID: 4},
		&LayerSetRenderOrder{Base: Sync(1), LayerID: 3},
	}
	for _, cmd := range cmds {
		if res := d.Dispatch(cmd); res != ExecutionFailed {
			t.Fatalf("%s: expected failure, got %s", cmd, res)
		}
	}
	if st := d.Stats(); st.Failed != uint64(len(cmds)) || st.Executed != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCreate_IDConflictAcrossKindsFails(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 5})
	if res := d.Dispatch(&SurfaceCreate{Base: Sync(1), SurfaceID: 5}); res != ExecutionFailed {
		t.Fatalf("expected failure, got %s", res)
	}
	auto := &SurfaceCreate{Base: Sync(1), SurfaceID: scene.InvalidID}
	mustSucceed(t, d, auto)
	if auto.CreatedID == 5 || auto.CreatedID == scene.InvalidID {
		t.Fatalf("unexpected generated ID %d", auto.CreatedID)
	}
}

func TestLayerCreate_ExistingKeepsProperties(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1, Width: 100, Height: 50})
	mustSucceed(t, d, &LayerCreate{Base: Sync(2), LayerID: 1, Width: 5, Height: 5})
	info, _ := d.Scene().Layer(1)
	if info.Destination != (geometry.Rect{Width: 100, Height: 50}) || info.CreatorPID != 1 {
		t.Fatalf("expected original layer, got %+v", info)
	}
}

func TestSetters_ResultReflectsChange(t *testing.T) {
	d, r := newTestDispatcher()
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	if res := d.Dispatch(&SurfaceSetOpacity{Base: Sync(1), SurfaceID: 10, Opacity: 0.25}); res != ExecutionSuccessRedraw {
		t.Fatalf("expected success-redraw, got %s", res)
	}
	if res := d.Dispatch(&SurfaceSetOpacity{Base: Sync(1), SurfaceID: 10, Opacity: 0.25}); res != ExecutionSuccess {
		t.Fatalf("expected plain success for a no-op, got %s", res)
	}
	if r.redraws != 1 {
		t.Fatalf("expected one redraw, got %d", r.redraws)
	}
}

func TestAsync_RunsBeforeLaterSyncCommand(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})

	if res := d.Dispatch(&LayerSetOpacity{Base: Async(1), LayerID: 1, Opacity: 0.5}); res != ExecutionSuccess {
		t.Fatalf("expected queued success, got %s", res)
	}
	if st := d.Stats(); st.Queued != 1 {
		t.Fatalf("expected one queued command, got %d", st.Queued)
	}
	if info, _ := d.Scene().Layer(1); info.Opacity != 1 {
		t.Fatalf("async command must not run before a flush")
	}

	// The sync command sees the async one applied first and overrides it.
	mustSucceed(t, d, &LayerSetOpacity{Base: Sync(1), LayerID: 1, Opacity: 0.75})
	if info, _ := d.Scene().Layer(1); info.Opacity != 0.75 {
		t.Fatalf("expected dispatch order, got opacity %v", info.Opacity)
	}
	if st := d.Stats(); st.Queued != 0 || st.Executed != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRun_DrainsQueue(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Dispatch(&LayerSetVisibility{Base: Async(1), LayerID: 1, Visible: true})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if info, _ := d.Scene().Layer(1); info.Visible {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queued command never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestNotifications_QueuedForRegisteredClients(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	mustSucceed(t, d, &SurfaceSetVisibility{Base: Sync(1), SurfaceID: 10, Visible: true})
	if notes := d.TakeNotifications(); len(notes) != 0 {
		t.Fatalf("expected no notifications without clients, got %v", notes)
	}

	mustSucceed(t, d, &SurfaceAddNotification{Base: Sync(1), SurfaceID: 10, Client: 7})
	mustSucceed(t, d, &SurfaceSetOpacity{Base: Sync(1), SurfaceID: 10, Opacity: 0.5})
	select {
	case <-d.NotificationsReady():
	default:
		t.Fatalf("expected ready signal")
	}
	notes := d.TakeNotifications()
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %v", notes)
	}
	n := notes[0]
	if n.ObjectID != 10 || n.Mask != scene.NotifyOpacity || !slices.Equal(n.Clients, []scene.ClientHandle{7}) {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(d.TakeNotifications()) != 0 {
		t.Fatalf("expected queue drained")
	}
}

func TestSetNativeContent_ConfiguresUnsetRegions(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	mustSucceed(t, d, &SurfaceSetNativeContent{Base: Sync(1), SurfaceID: 10, Content: "buf", Width: 64, Height: 32, PixelFormat: scene.PixelFormatRGBA8888})
	info, _ := d.Scene().Surface(10)
	want := geometry.Rect{Width: 64, Height: 32}
	if info.Source != want || info.Destination != want || !info.HasContent {
		t.Fatalf("unexpected surface %+v", info)
	}
	if res := d.Dispatch(&SurfaceSetNativeContent{Base: Sync(1), SurfaceID: 10, Width: 1, Height: 1}); res != ExecutionFailed {
		t.Fatalf("expected nil content to fail, got %s", res)
	}
}

func TestSurfaceRemove_RedrawOnlyWhenRendered(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})
	if res := d.Dispatch(&SurfaceRemove{Base: Sync(1), SurfaceID: 10}); res != ExecutionSuccess {
		t.Fatalf("expected plain success, got %s", res)
	}

	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 11})
	mustSucceed(t, d, &LayerAddSurface{Base: Sync(1), LayerID: 1, SurfaceID: 11})
	mustSucceed(t, d, &ScreenSetRenderOrder{Base: Sync(1), ScreenID: 0, LayerIDs: []scene.ID{1}})
	if res := d.Dispatch(&SurfaceRemove{Base: Sync(1), SurfaceID: 11}); res != ExecutionSuccessRedraw {
		t.Fatalf("expected success-redraw, got %s", res)
	}
}

func TestLayerAddSurface_Semantics(t *testing.T) {
	d, _ := newTestDispatcher()
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 1})
	mustSucceed(t, d, &LayerCreate{Base: Sync(1), LayerID: 2})
	mustSucceed(t, d, &SurfaceCreate{Base: Sync(1), SurfaceID: 10})

	if res := d.Dispatch(&LayerAddSurface{Base: Sync(1), LayerID: 1, SurfaceID: 10}); res != ExecutionSuccessRedraw {
		t.Fatalf("expected success-redraw, got %s", res)
	}
	if res := d.Dispatch(&LayerAddSurface{Base: Sync(1), LayerID: 1, SurfaceID: 10}); res != ExecutionSuccess {
		t.Fatalf("expected no-op success, got %s", res)
	}
	if res := d.Dispatch(&LayerAddSurface{Base: Sync(1), LayerID: 2, SurfaceID: 10}); res != ExecutionFailed {
		t.Fatalf("expected failure for surface on another layer, got %s", res)
	}
	if res := d.Dispatch(&LayerRemoveSurface{Base: Sync(1), LayerID: 2, SurfaceID: 10}); res != ExecutionFailed {
		t.Fatalf("expected failure removing from the wrong layer, got %s", res)
	}
}
