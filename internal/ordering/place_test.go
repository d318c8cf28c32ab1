package ordering

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(items []Item, plan Plan) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		if idx, ok := plan.Updates[it.ID]; ok {
			it.Index = idx
		}
		out[i] = it
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func ids(items []Item) []uint64 {
	out := make([]uint64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func assertDistinct(t *testing.T, items []Item) {
	t.Helper()
	seen := map[int64]bool{}
	for _, it := range items {
		assert.False(t, seen[it.Index], "duplicate index %d", it.Index)
		seen[it.Index] = true
	}
}

func TestPlace_Midpoint(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}}

	plan, err := Place(items, 3, 1, 2)
	require.NoError(t, err)

	assert.False(t, plan.Renumbered)
	assert.Equal(t, map[uint64]int64{3: 15}, plan.Updates)
	assert.Equal(t, []uint64{1, 3, 2}, ids(apply(items, plan)))
}

func TestPlace_RenumbersWhenNoGap(t *testing.T) {
	items := []Item{{1, 10}, {2, 11}, {3, 30}}

	plan, err := Place(items, 3, 1, 2)
	require.NoError(t, err)

	assert.True(t, plan.Renumbered)
	assert.Equal(t, map[uint64]int64{3: 20, 2: 30}, plan.Updates)

	after := apply(items, plan)
	assert.Equal(t, []uint64{1, 3, 2}, ids(after))
	assertDistinct(t, after)
	for i, it := range after {
		assert.Equal(t, int64(i+1)*Gap, it.Index)
	}
}

func TestPlace_OnlyPredecessor(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}}

	plan, err := Place(items, 1, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int64{1: 40}, plan.Updates)
	assert.Equal(t, []uint64{2, 3, 1}, ids(apply(items, plan)))
}

func TestPlace_OnlySuccessor(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}}

	plan, err := Place(items, 3, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int64{3: 0}, plan.Updates)
	assert.Equal(t, []uint64{3, 1, 2}, ids(apply(items, plan)))
}

func TestPlace_PredecessorWithImplicitSuccessor(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}, {4, 40}}

	plan, err := Place(items, 4, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]int64{4: 15}, plan.Updates)
}

func TestPlace_Unchanged(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}}

	plan, err := Place(items, 2, 1, 3)
	require.NoError(t, err)
	assert.Empty(t, plan.Updates)

	plan, err = Place(items, 3, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Updates)
}

func TestPlace_SingleItem(t *testing.T) {
	plan, err := Place([]Item{{7, 10}}, 7, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Updates)
}

func TestPlace_RenumberAfterManyMoves(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}, {4, 40}}

	// keep squeezing items between 1 and 2 until the gap closes
	for _, moved := range []uint64{3, 4} {
		plan, err := Place(items, moved, 1, 0)
		require.NoError(t, err)
		items = apply(items, plan)
		assertDistinct(t, items)
	}
	assert.Equal(t, []uint64{1, 4, 3, 2}, ids(items))

	for range 5 {
		plan, err := Place(items, items[len(items)-1].ID, 1, items[1].ID)
		require.NoError(t, err)
		items = apply(items, plan)
		assertDistinct(t, items)
		assert.Equal(t, uint64(1), items[0].ID)
	}
}

func TestPlace_Errors(t *testing.T) {
	items := []Item{{1, 10}, {2, 20}, {3, 30}}

	_, err := Place(items, 9, 1, 2)
	assert.ErrorIs(t, err, ErrUnknownNeighbor)

	_, err = Place(items, 1, 9, 0)
	assert.ErrorIs(t, err, ErrUnknownNeighbor)

	_, err = Place(items, 1, 3, 2)
	assert.ErrorIs(t, err, ErrNeighborOrder)

	_, err = Place(items, 1, 1, 0)
	assert.ErrorIs(t, err, ErrNeighborOrder)

	// 1 and 3 are not adjacent once 2 is removed
	_, err = Place([]Item{{1, 10}, {2, 20}, {3, 30}, {4, 40}}, 4, 1, 3)
	assert.ErrorIs(t, err, ErrNeighborOrder)
}

func TestRenumber(t *testing.T) {
	plan := Renumber([]Item{{1, 10}, {2, 11}, {3, 12}})
	assert.True(t, plan.Renumbered)
	assert.Equal(t, map[uint64]int64{2: 20, 3: 30}, plan.Updates)
}

func TestTop(t *testing.T) {
	assert.Equal(t, Gap, Top(nil))
	assert.Equal(t, int64(-5), Top([]Item{{1, 30}, {2, 5}}))
}
