package daemon

import (
	"os"
	"testing"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/scene"
)

func newDispatcher(t *testing.T) *command.Dispatcher {
	t.Helper()
	sc := scene.New([]scene.ScreenConfig{{ID: 0, Width: 100, Height: 100}})
	return command.NewDispatcher(sc, nil, nil)
}

func mustRun(t *testing.T, d *command.Dispatcher, cmds ...command.Command) {
	t.Helper()
	for _, c := range cmds {
		if res := d.Dispatch(c); !res.Succeeded() {
			t.Fatalf("%s: %s", c, res)
		}
	}
}

func TestStateSynchronizer_HandleClientExited(t *testing.T) {
	d := newDispatcher(t)
	mustRun(t, d,
		&command.LayerCreate{Base: command.Sync(100), LayerID: 1, Width: 10, Height: 10},
		&command.SurfaceCreate{Base: command.Sync(100), SurfaceID: 10},
		&command.LayerAddSurface{Base: command.Sync(100), LayerID: 1, SurfaceID: 10},
		&command.LayerCreate{Base: command.Sync(200), LayerID: 2, Width: 10, Height: 10},
		&command.ScreenSetRenderOrder{Base: command.Sync(200), ScreenID: 0, LayerIDs: []scene.ID{1, 2}},
	)

	sync := NewStateSynchronizer(d, testLogger())
	layers, surfaces := sync.HandleClientExited(100)
	if layers != 1 || surfaces != 1 {
		t.Fatalf("expected 1 layer and 1 surface removed, got %d and %d", layers, surfaces)
	}

	sc := d.Scene()
	_, layerLeft := sc.Layer(1)
	_, surfaceLeft := sc.Surface(10)
	if layerLeft || surfaceLeft {
		t.Fatalf("expected objects of pid 100 to be gone")
	}
	if _, ok := sc.Layer(2); !ok {
		t.Fatalf("expected layer of pid 200 to survive")
	}
	if !sc.IsLayerInCurrentRenderOrder(2) || sc.IsLayerInCurrentRenderOrder(1) {
		t.Fatalf("expected render order to drop only the removed layer")
	}

	if l, s := sync.HandleClientExited(0); l != 0 || s != 0 {
		t.Fatalf("expected unowned objects to be left alone")
	}
}

func TestReconciler_RemovesObjectsOfDeadCreators(t *testing.T) {
	d := newDispatcher(t)
	mustRun(t, d,
		&command.SurfaceCreate{Base: command.Sync(100), SurfaceID: 1},
		&command.SurfaceCreate{Base: command.Sync(200), SurfaceID: 2},
		&command.SurfaceCreate{Base: command.Sync(0), SurfaceID: 3},
		&command.LayerCreate{Base: command.Sync(200), LayerID: 5},
	)

	alive := map[int]bool{100: true}
	r := NewReconciler(ReconcilerConfig{
		Logger: testLogger(),
		Alive:  func(pid int) bool { return alive[pid] },
	}, NewStateSynchronizer(d, testLogger()))

	layers, surfaces := r.ReconcileNow()
	if layers != 1 || surfaces != 1 {
		t.Fatalf("expected 1 layer and 1 surface removed, got %d and %d", layers, surfaces)
	}

	sync := NewStateSynchronizer(d, testLogger())
	if l, s := sync.Owned(200); len(l) != 0 || len(s) != 0 {
		t.Fatalf("expected nothing left for pid 200, got %v %v", l, s)
	}
	_, live := d.Scene().Surface(1)
	_, unowned := d.Scene().Surface(3)
	if !live || !unowned {
		t.Fatalf("expected live and unowned surfaces to survive")
	}

	if l, s := r.ReconcileNow(); l != 0 || s != 0 {
		t.Fatalf("expected second pass to be a no-op, got %d and %d", l, s)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Fatalf("expected own process to be alive")
	}
	if ProcessAlive(1 << 22) {
		t.Fatalf("expected pid beyond pid_max to be dead")
	}
}
