package history

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/pagemark/internal/annotation"
)

func raster(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestCaptureCopies(t *testing.T) {
	img := raster(1)
	marks := []annotation.Annotation{{Page: 1, Order: 1}}
	s := Capture(img, marks)
	img.Set(0, 0, color.RGBA{9, 9, 9, 9})
	marks[0].Order = 7
	require.Equal(t, uint8(1), s.Raster.Pix[0])
	require.Equal(t, uint64(1), s.Marks[0].Order)
}

func TestUndoRedo(t *testing.T) {
	var m Manager
	_, ok := m.Undo(Capture(raster(0), nil))
	require.False(t, ok)

	m.Push(Capture(raster(1), nil))
	m.Push(Capture(raster(2), nil))
	require.True(t, m.CanUndo())

	s, ok := m.Undo(Capture(raster(3), nil))
	require.True(t, ok)
	require.Equal(t, uint8(2), s.Raster.Pix[0])
	require.True(t, m.CanRedo())

	s, ok = m.Redo(Capture(raster(2), nil))
	require.True(t, ok)
	require.Equal(t, uint8(3), s.Raster.Pix[0])

	undo, redo := m.Depth()
	require.Equal(t, 2, undo)
	require.Equal(t, 0, redo)
}

func TestPushClearsRedo(t *testing.T) {
	var m Manager
	m.Push(Capture(raster(1), nil))
	_, ok := m.Undo(Capture(raster(2), nil))
	require.True(t, ok)
	m.Push(Capture(raster(4), nil))
	require.False(t, m.CanRedo())
}

func TestLimit(t *testing.T) {
	m := Manager{Limit: 2}
	for i := 1; i <= 5; i++ {
		m.Push(Capture(raster(uint8(i)), nil))
	}
	undo, _ := m.Depth()
	require.Equal(t, 2, undo)
	s, _ := m.Undo(Capture(raster(0), nil))
	require.Equal(t, uint8(5), s.Raster.Pix[0])
	s, _ = m.Undo(Capture(raster(0), nil))
	require.Equal(t, uint8(4), s.Raster.Pix[0])
	_, ok := m.Undo(Capture(raster(0), nil))
	require.False(t, ok)
}
