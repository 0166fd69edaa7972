package command

import (
	"fmt"

	"github.com/1broseidon/ivicomp/internal/scene"
)

// ScreenSetRenderOrder replaces the layers composited on a screen, back to
// front. A list with duplicates is rejected before anything changes. IDs that
// do not name a layer are skipped.
//
// Replacing a non-empty order always forces the next frame of the screen,
// since layers that dropped out must disappear even when nothing else is
// dirty.
type ScreenSetRenderOrder struct {
	Base
	ScreenID scene.ID
	LayerIDs []scene.ID
}

func (c *ScreenSetRenderOrder) Kind() Kind { return KindScreenSetRenderOrder }

func (c *ScreenSetRenderOrder) Execute(ex Executor) ExecutionResult {
	if hasDuplicates(c.LayerIDs) {
		return ExecutionFailed
	}
	tx := ex.Scene()
	sc := tx.Screen(c.ScreenID)
	if sc == nil {
		return ExecutionFailed
	}
	if len(sc.RenderOrder()) > 0 {
		sc.ForceComposition()
	}
	layers := make([]*scene.Layer, 0, len(c.LayerIDs))
	for _, id := range c.LayerIDs {
		if l := tx.Layer(id); l != nil {
			layers = append(layers, l)
		}
	}
	tx.SetRenderOrder(sc, layers)
	return ExecutionSuccessRedraw
}

func (c *ScreenSetRenderOrder) String() string {
	return fmt.Sprintf("%s id=%d %v", c.Kind(), c.ScreenID, c.LayerIDs)
}
