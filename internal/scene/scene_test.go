package scene

import (
	"slices"
	"testing"

	"github.com/1broseidon/ivicomp/internal/geometry"
)

func newTestScene(opts ...Option) *Scene {
	return New([]ScreenConfig{{ID: 0, Name: "main", Width: 800, Height: 480}}, opts...)
}

func TestAddSurface_SucceedsOnlyWhenUncontained(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l1 := tx.CreateLayer(1, 0)
		l2 := tx.CreateLayer(2, 0)
		s := tx.CreateSurface(10, 0)

		if s.ContainingLayerID() != InvalidID {
			t.Fatalf("expected new surface to be uncontained")
		}
		if !l1.AddSurface(s) {
			t.Fatalf("expected first add to succeed")
		}
		if s.ContainingLayerID() != l1.ID() {
			t.Fatalf("expected containing layer %d, got %d", l1.ID(), s.ContainingLayerID())
		}
		if l1.AddSurface(s) {
			t.Fatalf("expected second add to the same layer to fail")
		}
		if got := l1.SurfaceIDs(); !slices.Equal(got, []ID{10}) {
			t.Fatalf("expected surface listed once, got %v", got)
		}
		if l2.AddSurface(s) {
			t.Fatalf("expected add to another layer to fail")
		}
		if l2.SurfaceCount() != 0 || s.ContainingLayerID() != l1.ID() {
			t.Fatalf("failed add must not change state")
		}
	})
}

func TestRemoveSurface_NoOpForOtherLayer(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l1 := tx.CreateLayer(1, 0)
		l2 := tx.CreateLayer(2, 0)
		s := tx.CreateSurface(10, 0)
		l1.AddSurface(s)
		l2.ClearRenderPropertyChanged()

		if l2.RemoveSurface(s) {
			t.Fatalf("expected remove from non-containing layer to fail")
		}
		if l2.RenderPropertyChanged() {
			t.Fatalf("no-op remove must not dirty the layer")
		}
		if !l1.RemoveSurface(s) {
			t.Fatalf("expected remove from containing layer to succeed")
		}
		if s.ContainingLayerID() != InvalidID || l1.SurfaceCount() != 0 {
			t.Fatalf("expected surface detached")
		}
	})
}

func TestRemoveAllSurfaces_ClearsBackPointers(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(1, 0)
		a := tx.CreateSurface(10, 0)
		b := tx.CreateSurface(11, 0)
		l.AddSurface(a)
		l.AddSurface(b)

		if !tx.RemoveAllSurfaces(l) {
			t.Fatalf("expected removal to report a change")
		}
		if a.ContainingLayerID() != InvalidID || b.ContainingLayerID() != InvalidID {
			t.Fatalf("expected back-pointers cleared")
		}
		if tx.RemoveAllSurfaces(l) {
			t.Fatalf("expected no-op on empty layer")
		}
	})
}

func TestCreate_ExistingIDIsIdempotent(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(5, 100)
		l.SetOpacity(0.5)
		again := tx.CreateLayer(5, 200)
		if again != l {
			t.Fatalf("expected the existing layer back")
		}
		if again.Opacity() != 0.5 || again.CreatorPID() != 100 {
			t.Fatalf("expected existing layer unchanged")
		}
		if tx.CreateSurface(5, 0) != nil {
			t.Fatalf("expected surface creation on a layer ID to fail")
		}
	})
}

func TestGeneratedIDs_AreDisjointAcrossKinds(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(InvalidID, 0)
		s := tx.CreateSurface(InvalidID, 0)
		if l.ID() == s.ID() {
			t.Fatalf("expected distinct IDs, both got %d", l.ID())
		}
		if l.ID() != 1 || s.ID() != 2 {
			t.Fatalf("expected lowest free IDs 1 and 2, got %d and %d", l.ID(), s.ID())
		}
		tx.RemoveLayer(l)
		if next := tx.CreateLayer(InvalidID, 0); next.ID() != 1 {
			t.Fatalf("expected freed ID 1 to be reused, got %d", next.ID())
		}
	})
}

func TestGeneratedIDs_MonotonicNeverReuses(t *testing.T) {
	sc := newTestScene(WithIDAllocation(AllocateMonotonic))
	sc.Do(func(tx *Tx) {
		tx.CreateLayer(2, 0)
		first := tx.CreateLayer(InvalidID, 0)
		second := tx.CreateSurface(InvalidID, 0)
		if first.ID() != 1 || second.ID() != 3 {
			t.Fatalf("expected 1 and 3, got %d and %d", first.ID(), second.ID())
		}
		tx.RemoveLayer(first)
		if next := tx.CreateLayer(InvalidID, 0); next.ID() != 4 {
			t.Fatalf("expected 4, got %d", next.ID())
		}
	})
}

func TestRemoveLayer_DetachesSurfacesAndReportsRenderOrder(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(1, 0)
		s := tx.CreateSurface(10, 0)
		l.AddSurface(s)
		screen := tx.Screen(0)
		tx.SetRenderOrder(screen, []*Layer{l})
		screen.TakeForcedComposition()

		if !tx.RemoveLayer(l) {
			t.Fatalf("expected removal to report render order membership")
		}
		if s.ContainingLayerID() != InvalidID {
			t.Fatalf("expected surface detached")
		}
		if tx.Surface(10) != s {
			t.Fatalf("surface must survive its layer")
		}
		if len(screen.RenderOrder()) != 0 {
			t.Fatalf("expected render order emptied")
		}
		if !screen.TakeForcedComposition() {
			t.Fatalf("expected removal to force composition")
		}

		orphan := tx.CreateLayer(2, 0)
		if tx.RemoveLayer(orphan) {
			t.Fatalf("layer outside render order must report false")
		}
	})
}

func TestRemoveSurface_DetachesFromLayer(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(1, 0)
		s := tx.CreateSurface(10, 0)
		l.AddSurface(s)

		if !tx.RemoveSurface(s) {
			t.Fatalf("expected removal")
		}
		if l.ContainsSurface(10) {
			t.Fatalf("expected layer to forget the surface")
		}
		if tx.RemoveSurface(s) {
			t.Fatalf("expected second removal to fail")
		}
	})
}

func TestSetters_ReportChangesAndDirtyFlag(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		s := tx.CreateSurface(10, 0)
		if s.Opacity() != 1.0 || s.Visible() || s.Orientation() != Zero {
			t.Fatalf("unexpected defaults")
		}
		if s.SetOpacity(1.0) {
			t.Fatalf("expected no-op opacity set to return false")
		}
		if s.RenderPropertyChanged() {
			t.Fatalf("no-op must not dirty")
		}
		if !s.SetVisibility(true) || !s.RenderPropertyChanged() {
			t.Fatalf("expected visibility change to dirty the surface")
		}
		s.ClearRenderPropertyChanged()
		if !s.SetDestinationRegion(geometry.Rect{Width: 10, Height: 10}) {
			t.Fatalf("expected destination change")
		}
		s.ClearRenderPropertyChanged()
		if s.SetDimension(10, 10) {
			t.Fatalf("expected identical dimension to be a no-op")
		}
		if !s.SetPosition(5, 5) {
			t.Fatalf("expected position change")
		}
		s.SetOpacity(0.5)
		if !s.SetOpacity(7) || s.Opacity() != 1 {
			t.Fatalf("expected opacity clamped to 1, got %v", s.Opacity())
		}
	})
}

func TestSurfaceDirty_RequiresRenderableDamage(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		s := tx.CreateSurface(10, 0)
		s.SetNativeContent("buffer", 4, 4, PixelFormatRGBA8888)
		s.ClearRenderPropertyChanged()
		if s.Dirty() {
			t.Fatalf("invisible surface damage must not dirty")
		}
		s.SetVisibility(true)
		s.ClearRenderPropertyChanged()
		if !s.Dirty() {
			t.Fatalf("expected visible damaged surface to be dirty")
		}
		s.ClearDamage()
		if s.Dirty() {
			t.Fatalf("expected clean after damage cleared")
		}
		s.Damage()
		if !s.Dirty() || s.UpdateCounter() != 2 {
			t.Fatalf("expected damage to dirty and count updates, counter=%d", s.UpdateCounter())
		}
	})
}

func TestSnapshots_CopyState(t *testing.T) {
	sc := newTestScene()
	sc.Do(func(tx *Tx) {
		l := tx.CreateLayer(1, 42)
		s := tx.CreateSurface(10, 42)
		l.AddSurface(s)
		tx.SetRenderOrder(tx.Screen(0), []*Layer{l})
	})

	info, ok := sc.Layer(1)
	if !ok || !slices.Equal(info.Surfaces, []ID{10}) || info.ScreenID != 0 {
		t.Fatalf("unexpected layer snapshot %+v", info)
	}
	info.Surfaces[0] = 99
	if again, _ := sc.Layer(1); again.Surfaces[0] != 10 {
		t.Fatalf("snapshot must not alias scene storage")
	}
	if ids, ok := sc.LayerIDsOfScreen(0); !ok || !slices.Equal(ids, []ID{1}) {
		t.Fatalf("unexpected render order %v", ids)
	}
	if _, ok := sc.LayerIDsOfScreen(7); ok {
		t.Fatalf("expected unknown screen")
	}
	if !sc.IsLayerInCurrentRenderOrder(1) {
		t.Fatalf("expected layer in render order")
	}
	if pids := sc.CreatorPIDs(); !slices.Equal(pids, []int{42}) {
		t.Fatalf("expected creator pid 42, got %v", pids)
	}
}
