// Package ordering assigns manual sort keys with gaps so that most moves
// rewrite a single row.
package ordering

import (
	"errors"
	"fmt"
)

// Gap is the spacing between freshly assigned indexes.
const Gap int64 = 10

var (
	// ErrConflict reports that the scope changed under a write.
	ErrConflict = errors.New("order changed concurrently")

	ErrUnknownNeighbor = errors.New("neighbor not in ordering scope")
	ErrNeighborOrder   = errors.New("predecessor must come before successor")
)

// Item is one row of an ordering scope.
type Item struct {
	ID    uint64
	Index int64
}

// Plan is the set of index writes that realizes a move.
type Plan struct {
	Updates    map[uint64]int64
	Renumbered bool
}

// Place computes the writes that put moved directly after pred, or directly
// before succ when pred is 0. Items must be sorted by Index ascending and must
// contain moved. A zero neighbor means "none"; both zero moves to the end.
//
// The moved item gets the midpoint of its new neighbors when one exists and is
// free. Otherwise every item in the scope is renumbered to (i+1)*Gap in its new
// order, and only changed rows appear in the plan.
func Place(items []Item, moved, pred, succ uint64) (Plan, error) {
	pos := make(map[uint64]int, len(items))
	for i, it := range items {
		pos[it.ID] = i
	}
	if _, ok := pos[moved]; !ok {
		return Plan{}, fmt.Errorf("%w: moved item %d", ErrUnknownNeighbor, moved)
	}
	for _, n := range []uint64{pred, succ} {
		if n == 0 {
			continue
		}
		if n == moved {
			return Plan{}, fmt.Errorf("%w: item %d cannot neighbor itself", ErrNeighborOrder, n)
		}
		if _, ok := pos[n]; !ok {
			return Plan{}, fmt.Errorf("%w: %d", ErrUnknownNeighbor, n)
		}
	}
	if pred != 0 && succ != 0 && pos[pred] >= pos[succ] {
		return Plan{}, ErrNeighborOrder
	}

	rest := make([]Item, 0, len(items)-1)
	for _, it := range items {
		if it.ID != moved {
			rest = append(rest, it)
		}
	}

	// slot is where moved lands in rest
	var slot int
	switch {
	case pred != 0:
		slot = indexOf(rest, pred) + 1
		if succ != 0 && indexOf(rest, succ) != slot {
			return Plan{}, fmt.Errorf("%w: %d and %d are not adjacent", ErrNeighborOrder, pred, succ)
		}
	case succ != 0:
		slot = indexOf(rest, succ)
	default:
		slot = len(rest)
	}

	if pos[moved] == slot {
		return Plan{Updates: map[uint64]int64{}}, nil
	}

	current := items[pos[moved]].Index
	if idx, ok := between(rest, slot); ok {
		return Plan{Updates: map[uint64]int64{moved: idx}}, nil
	}

	order := make([]Item, 0, len(items))
	order = append(order, rest[:slot]...)
	order = append(order, Item{ID: moved, Index: current})
	order = append(order, rest[slot:]...)
	return Renumber(order), nil
}

// Renumber spaces items Gap apart in the given order, reporting only the rows
// whose index changes.
func Renumber(order []Item) Plan {
	plan := Plan{Updates: make(map[uint64]int64), Renumbered: true}
	for i, it := range order {
		want := int64(i+1) * Gap
		if it.Index != want {
			plan.Updates[it.ID] = want
		}
	}
	return plan
}

// Top is the index for an item entering the head of a scope.
func Top(items []Item) int64 {
	if len(items) == 0 {
		return Gap
	}
	lowest := items[0].Index
	for _, it := range items[1:] {
		lowest = min(lowest, it.Index)
	}
	return lowest - Gap
}

// between finds a free index strictly between the neighbors of slot. The
// moved item is not in rest, so its old index counts as free.
func between(rest []Item, slot int) (int64, bool) {
	used := make(map[int64]bool, len(rest))
	for _, it := range rest {
		used[it.Index] = true
	}

	var idx int64
	switch {
	case len(rest) == 0:
		return Gap, true
	case slot == 0:
		idx = rest[0].Index - Gap
	case slot == len(rest):
		idx = rest[len(rest)-1].Index + Gap
	default:
		lo, hi := rest[slot-1].Index, rest[slot].Index
		if hi-lo < 2 {
			return 0, false
		}
		idx = lo + (hi-lo)/2
	}
	if used[idx] {
		return 0, false
	}
	return idx, true
}

func indexOf(items []Item, id uint64) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
