// Package history keeps per-page undo and redo stacks of surface snapshots.
package history

import (
	"image"
	"image/draw"

	"github.com/example/pagemark/internal/annotation"
)

// Snapshot is the full visual and committed state of one page surface.
type Snapshot struct {
	Raster *image.RGBA
	Marks  []annotation.Annotation
}

// Capture copies raster and marks so later edits cannot reach the snapshot.
func Capture(raster *image.RGBA, marks []annotation.Annotation) Snapshot {
	s := Snapshot{Raster: cloneRGBA(raster)}
	for _, a := range marks {
		s.Marks = append(s.Marks, a.Clone())
	}
	return s
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Manager holds the undo and redo stacks of one page. Limit bounds the undo
// stack; zero means unbounded. A Manager is not safe for concurrent use.
type Manager struct {
	Limit int

	undo []Snapshot
	redo []Snapshot
}

// Push records the state before a destructive operation and clears redo.
func (m *Manager) Push(s Snapshot) {
	m.undo = append(m.undo, s)
	if m.Limit > 0 && len(m.undo) > m.Limit {
		drop := len(m.undo) - m.Limit
		clear(m.undo[:drop])
		m.undo = m.undo[drop:]
	}
	clear(m.redo)
	m.redo = m.redo[:0]
}

// Undo pops the newest snapshot, pushing current onto the redo stack.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	if len(m.undo) == 0 {
		return Snapshot{}, false
	}
	s := m.undo[len(m.undo)-1]
	m.undo[len(m.undo)-1] = Snapshot{}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, current)
	return s, true
}

// Redo mirrors Undo.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	if len(m.redo) == 0 {
		return Snapshot{}, false
	}
	s := m.redo[len(m.redo)-1]
	m.redo[len(m.redo)-1] = Snapshot{}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, current)
	return s, true
}

func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) { return len(m.undo), len(m.redo) }
