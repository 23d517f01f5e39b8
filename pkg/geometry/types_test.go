package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectInt_Intersect(t *testing.T) {
	a := RectInt{X: 0, Y: 0, Width: 100, Height: 100}
	b := RectInt{X: 50, Y: 60, Width: 100, Height: 100}

	got := a.Intersect(b)
	assert.Equal(t, RectInt{X: 50, Y: 60, Width: 50, Height: 40}, got)
	assert.False(t, got.Empty())
	assert.Equal(t, 2000, got.Area())
}

func TestRectInt_IntersectDisjoint(t *testing.T) {
	a := RectInt{X: 0, Y: 0, Width: 10, Height: 10}
	b := RectInt{X: 20, Y: 20, Width: 10, Height: 10}

	assert.True(t, a.Intersect(b).Empty())
}

func TestAffineTransform_Apply(t *testing.T) {
	tr := Similarity(2, 10, -5)
	p := tr.Apply(Point2D{X: 3, Y: 4})
	assert.InDelta(t, 16, p.X, 1e-9)
	assert.InDelta(t, 3, p.Y, 1e-9)
}

func TestAffineTransform_UniformScale(t *testing.T) {
	assert.InDelta(t, 1.0, Identity().UniformScale(), 1e-9)
	assert.InDelta(t, 1.5, Similarity(1.5, 0, 0).UniformScale(), 1e-9)
}

func TestAffineTransform_ZeroRotation(t *testing.T) {
	// 90-degree rotation reduces to a pure unit scale once rotation is removed.
	rot := AffineTransform{A: 0, B: -1, C: 1, D: 0, TX: 7, TY: 8}
	flat := rot.ZeroRotation()

	assert.InDelta(t, 1.0, flat.A, 1e-9)
	assert.InDelta(t, 0.0, flat.B, 1e-9)
	assert.InDelta(t, 0.0, flat.C, 1e-9)
	assert.InDelta(t, 1.0, flat.D, 1e-9)
	assert.Equal(t, 7.0, flat.TX)
	assert.Equal(t, 8.0, flat.TY)
}

func TestPoint2D_Distance(t *testing.T) {
	assert.InDelta(t, 5.0, Point2D{X: 0, Y: 0}.Distance(Point2D{X: 3, Y: 4}), 1e-9)
}
