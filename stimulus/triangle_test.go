package stimulus

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/drbg"
	"github.com/stretchr/testify/require"
)

var testEntropy = []byte("0123456789abcdef0123456789abcdef")

func newTestLayout(seed string) *TriangleLayout {
	nonces := StaticNonce{
		FastNonce: []byte("fast-nonce"),
		SlowNonce: []byte("2025-11"),
	}
	return &TriangleLayout{
		Position: drbg.New(testEntropy, nonces.Fast(), []byte(seed)),
		Shape:    drbg.New(testEntropy, nonces.Slow(), []byte(seed)),
	}
}

func TestTriangleLayoutGenerate(t *testing.T) {
	t.Run("five triangles on an 800x600 canvas", func(t *testing.T) {
		l := newTestLayout("alice")

		triangles, boxes, err := l.Generate(5, 800, 600, 64)
		require.NoError(t, err)
		require.Len(t, triangles, 5)
		require.Len(t, boxes, 5)

		for _, tri := range triangles {
			for v := 0; v < 3; v++ {
				x, y := tri[v*2], tri[v*2+1]
				require.GreaterOrEqual(t, x, 0.0)
				require.Less(t, x, 800.0)
				require.GreaterOrEqual(t, y, 0.0)
				require.Less(t, y, 600.0)
			}
		}

		for i := range boxes {
			for j := i + 1; j < len(boxes); j++ {
				require.Falsef(t, boxes[i].Intersects(boxes[j]),
					"boxes %d and %d overlap", i, j)
			}
		}
	})

	t.Run("same seed and nonces reproduce the layout", func(t *testing.T) {
		a := newTestLayout("alice")
		b := newTestLayout("alice")

		trianglesA, boxesA, err := a.Generate(5, 800, 600, 64)
		require.NoError(t, err)

		trianglesB, boxesB, err := b.Generate(5, 800, 600, 64)
		require.NoError(t, err)

		require.Equal(t, trianglesA, trianglesB)
		require.Equal(t, boxesA, boxesB)
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		a := newTestLayout("alice")
		b := newTestLayout("bob")

		trianglesA, _, err := a.Generate(5, 800, 600, 64)
		require.NoError(t, err)

		trianglesB, _, err := b.Generate(5, 800, 600, 64)
		require.NoError(t, err)

		require.NotEqual(t, trianglesA, trianglesB)
	})

	t.Run("single triangle is the degenerate case", func(t *testing.T) {
		l := newTestLayout("alice")

		triangles, boxes, err := l.Generate(1, 800, 600, 64)
		require.NoError(t, err)
		require.Len(t, triangles, 1)
		require.Len(t, boxes, 1)
	})

	t.Run("oversized shape fails before drawing randomness", func(t *testing.T) {
		l := newTestLayout("alice")

		before, err := l.Position.Bytes(8)
		require.NoError(t, err)

		_, _, err = l.Generate(5, 600, 600, 500)
		require.Error(t, err)
		require.Equal(t, ErrTypeBadConfiguration, errors.Type(err))

		// The position stream was not consumed by the failing call.
		control := newTestLayout("alice")
		_, err = control.Position.Bytes(8)
		require.NoError(t, err)

		after, err := l.Position.Bytes(8)
		require.NoError(t, err)

		expected, err := control.Position.Bytes(8)
		require.NoError(t, err)
		require.Equal(t, expected, after)
		require.NotEqual(t, before, after)
	})

	t.Run("impossible count exhausts the budget", func(t *testing.T) {
		l := newTestLayout("alice")

		_, _, err := l.Generate(100, 128, 128, 64)
		require.Error(t, err)
		require.Equal(t, ErrTypePlacementExhausted, errors.Type(err))
	})

	t.Run("crowded canvas fails without partial output", func(t *testing.T) {
		l := newTestLayout("alice")

		// 200x200 fits at most a handful of 64px boxes; requesting 40
		// must exhaust rather than return what fit.
		triangles, boxes, err := l.Generate(40, 200, 200, 64)
		require.Error(t, err)
		require.Equal(t, ErrTypePlacementExhausted, errors.Type(err))
		require.Nil(t, triangles)
		require.Nil(t, boxes)
	})
}

func TestTriangleLayoutSingle(t *testing.T) {
	l := newTestLayout("alice")

	tri, box, err := l.Single(800, 600)
	require.NoError(t, err)

	for v := 0; v < 3; v++ {
		x, y := tri[v*2], tri[v*2+1]
		require.GreaterOrEqual(t, x, 0.0)
		require.Less(t, x, 800.0)
		require.GreaterOrEqual(t, y, 0.0)
		require.Less(t, y, 600.0)
	}

	// The box is the outward-rounded hull of the vertices plus margin.
	for v := 0; v < 3; v++ {
		require.GreaterOrEqual(t, tri[v*2], box.X0)
		require.Less(t, tri[v*2], box.X1)
		require.GreaterOrEqual(t, tri[v*2+1], box.Y0)
		require.Less(t, tri[v*2+1], box.Y1)
	}
}

func TestTriangleShift(t *testing.T) {
	tri := Triangle{0, 1, 2, 3, 4, 5}
	shifted := tri.Shift(10, 20)

	require.Equal(t, Triangle{10, 21, 12, 23, 14, 25}, shifted)
	require.Equal(t, Triangle{0, 1, 2, 3, 4, 5}, tri)
}
