package daemon

import (
	"log/slog"

	"github.com/1broseidon/ivicomp/internal/command"
	"github.com/1broseidon/ivicomp/internal/scene"
)

// StateSynchronizer removes scene objects whose creating client is gone.
type StateSynchronizer struct {
	disp   *command.Dispatcher
	logger *slog.Logger
}

// NewStateSynchronizer creates a new state synchronizer.
func NewStateSynchronizer(disp *command.Dispatcher, logger *slog.Logger) *StateSynchronizer {
	return &StateSynchronizer{disp: disp, logger: logger}
}

// HandleClientExited destroys every layer and surface created by pid and
// returns how many of each were removed. Surfaces go first so their layers
// are empty when removed.
func (s *StateSynchronizer) HandleClientExited(pid int) (layers, surfaces int) {
	if pid <= 0 {
		return 0, 0
	}
	sc := s.disp.Scene()

	// Removal runs with the daemon's own pid: the creator no longer exists.
	base := command.Sync(0)
	for _, info := range sc.Surfaces() {
		if info.CreatorPID != pid {
			continue
		}
		res := s.disp.Dispatch(&command.SurfaceRemove{Base: base, SurfaceID: info.ID})
		if !res.Succeeded() {
			s.logger.Warn("failed to remove orphaned surface", "surface", info.ID, "pid", pid)
			continue
		}
		surfaces++
	}
	for _, info := range sc.Layers() {
		if info.CreatorPID != pid {
			continue
		}
		res := s.disp.Dispatch(&command.LayerRemove{Base: base, LayerID: info.ID})
		if !res.Succeeded() {
			s.logger.Warn("failed to remove orphaned layer", "layer", info.ID, "pid", pid)
			continue
		}
		layers++
	}

	if layers > 0 || surfaces > 0 {
		s.logger.Info("client exited, cleaned up",
			"pid", pid,
			"layers", layers,
			"surfaces", surfaces)
	}
	return layers, surfaces
}

// Owned returns the ids of layers and surfaces created by pid.
func (s *StateSynchronizer) Owned(pid int) (layers, surfaces []scene.ID) {
	sc := s.disp.Scene()
	for _, info := range sc.Layers() {
		if info.CreatorPID == pid {
			layers = append(layers, info.ID)
		}
	}
	for _, info := range sc.Surfaces() {
		if info.CreatorPID == pid {
			surfaces = append(surfaces, info.ID)
		}
	}
	return layers, surfaces
}
