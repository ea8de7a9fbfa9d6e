package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuadtreeInsert(t *testing.T) {
	t.Run("box inside the domain is stored", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 0, 0)

		ok := q.Insert(AABB{X0: 10, Y0: 10, X1: 20, Y1: 20}, "a")
		require.True(t, ok)
		require.Equal(t, 1, q.Len())
	})

	t.Run("box outside the domain is rejected", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 0, 0)

		ok := q.Insert(AABB{X0: 200, Y0: 200, X1: 210, Y1: 210}, "a")
		require.False(t, ok)
		require.Equal(t, 0, q.Len())
	})

	t.Run("node subdivides past capacity", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 2, 0)

		q.Insert(AABB{X0: 1, Y0: 1, X1: 4, Y1: 4}, 1)
		q.Insert(AABB{X0: 60, Y0: 1, X1: 64, Y1: 4}, 2)
		require.False(t, q.divided)

		q.Insert(AABB{X0: 1, Y0: 60, X1: 4, Y1: 64}, 3)
		require.True(t, q.divided)

		// Each item fits a single quadrant, nothing stays at the root.
		require.Empty(t, q.items)
		require.Equal(t, 3, q.Len())
	})

	t.Run("straddling boxes stay at the parent", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 2, 0)

		q.Insert(AABB{X0: 1, Y0: 1, X1: 4, Y1: 4}, 1)
		q.Insert(AABB{X0: 60, Y0: 1, X1: 64, Y1: 4}, 2)
		// Crosses the vertical midline at x=50.
		q.Insert(AABB{X0: 45, Y0: 45, X1: 55, Y1: 48}, 3)

		require.True(t, q.divided)
		require.Len(t, q.items, 1)
		require.Equal(t, 3, q.items[0].Data)
		require.Equal(t, 3, q.Len())
	})

	t.Run("max depth stops subdivision", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 1, 1)

		q.Insert(AABB{X0: 1, Y0: 1, X1: 2, Y1: 2}, 1)
		q.Insert(AABB{X0: 3, Y0: 3, X1: 4, Y1: 4}, 2)
		require.True(t, q.divided)

		// Both land in the same child, which is at max depth and must
		// hold them without splitting further.
		require.Len(t, q.nw.items, 2)
		require.False(t, q.nw.divided)
	})
}

func TestQuadtreeQuery(t *testing.T) {
	t.Run("full domain query returns every item exactly once", func(t *testing.T) {
		domain := AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}
		q := NewQuadtree(domain, 2, 0)

		boxes := []AABB{
			{X0: 1, Y0: 1, X1: 9, Y1: 9},
			{X0: 11, Y0: 1, X1: 19, Y1: 9},
			{X0: 1, Y0: 11, X1: 9, Y1: 19},
			{X0: 61, Y0: 61, X1: 69, Y1: 69},
			{X0: 81, Y0: 11, X1: 89, Y1: 19},
			{X0: 45, Y0: 45, X1: 55, Y1: 55},
			{X0: 11, Y0: 81, X1: 19, Y1: 89},
		}
		for i, b := range boxes {
			require.True(t, q.Insert(b, i))
		}

		found := q.Query(domain)
		require.Len(t, found, len(boxes))

		seen := make(map[int]int)
		for _, it := range found {
			seen[it.Data.(int)]++
		}
		for i := range boxes {
			require.Equal(t, 1, seen[i])
		}
	})

	t.Run("range query filters by intersection", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 2, 0)

		q.Insert(AABB{X0: 1, Y0: 1, X1: 9, Y1: 9}, "hit")
		q.Insert(AABB{X0: 61, Y0: 61, X1: 69, Y1: 69}, "miss")

		found := q.Query(AABB{X0: 0, Y0: 0, X1: 20, Y1: 20})
		require.Len(t, found, 1)
		require.Equal(t, "hit", found[0].Data)
	})

	t.Run("touching range does not match", func(t *testing.T) {
		q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 0, 0)

		q.Insert(AABB{X0: 10, Y0: 10, X1: 20, Y1: 20}, "a")

		found := q.Query(AABB{X0: 20, Y0: 10, X1: 30, Y1: 20})
		require.Empty(t, found)
	})
}

func TestQuadtreeQueryPoint(t *testing.T) {
	q := NewQuadtree(AABB{X0: 0, Y0: 0, X1: 100, Y1: 100}, 2, 0)

	q.Insert(AABB{X0: 10, Y0: 10, X1: 20, Y1: 20}, "a")
	q.Insert(AABB{X0: 15, Y0: 15, X1: 40, Y1: 40}, "b")
	q.Insert(AABB{X0: 60, Y0: 60, X1: 70, Y1: 70}, "c")

	found := q.QueryPoint(16, 16)
	require.Len(t, found, 2)

	found = q.QueryPoint(65, 65)
	require.Len(t, found, 1)
	require.Equal(t, "c", found[0].Data)

	// Half-open: the max corner of a box is outside it.
	found = q.QueryPoint(20, 20)
	require.Len(t, found, 1)
	require.Equal(t, "b", found[0].Data)

	found = q.QueryPoint(99, 1)
	require.Empty(t, found)
}
