package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name        string
		targets     []int
		size        int
		wantBatches int
		wantLast    int
	}{
		{name: "exact multiple", targets: make([]int, 100), size: 50, wantBatches: 2, wantLast: 50},
		{name: "remainder batch is short", targets: make([]int, 125), size: 50, wantBatches: 3, wantLast: 25},
		{name: "size larger than input", targets: make([]int, 10), size: 50, wantBatches: 1, wantLast: 10},
		{name: "single element", targets: make([]int, 1), size: 50, wantBatches: 1, wantLast: 1},
		{name: "empty input", targets: nil, size: 50, wantBatches: 0},
		{name: "non-positive size", targets: make([]int, 10), size: 0, wantBatches: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Partition(tt.targets, tt.size)

			assert.Len(t, batches, tt.wantBatches)
			if tt.wantBatches > 0 {
				assert.Len(t, batches[len(batches)-1], tt.wantLast)
			}
		})
	}
}

// Concatenating the batches must reproduce the input exactly, in order,
// with nothing dropped or duplicated.
func TestPartitionPreservesOrder(t *testing.T) {
	targets := make([]int, 125)
	for i := range targets {
		targets[i] = i
	}

	var flattened []int
	for _, batch := range Partition(targets, 50) {
		flattened = append(flattened, batch...)
	}

	assert.Equal(t, targets, flattened)
}
