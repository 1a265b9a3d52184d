package visibleset

import "math"

// MaxGridCapacity is the largest window a grid renders.
const MaxGridCapacity = 25

var capacitySteps = []struct {
	upTo     int
	capacity int
}{
	{1, 1},
	{2, 2},
	{4, 4},
	{9, 9},
	{16, 16},
}

// Capacity maps a participant count to a squarish grid size.
func Capacity(participants int) int {
	if participants <= 0 {
		return 0
	}
	for _, step := range capacitySteps {
		if participants <= step.upTo {
			return step.capacity
		}
	}
	return MaxGridCapacity
}

// Grid returns the columns and rows used to lay out capacity tiles.
func Grid(capacity int) (columns int, rows int) {
	if capacity <= 0 {
		return 0, 0
	}
	columns = int(math.Ceil(math.Sqrt(float64(capacity))))
	rows = (capacity + columns - 1) / columns
	return columns, rows
}
