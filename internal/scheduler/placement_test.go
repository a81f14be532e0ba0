package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/domain"
)

func indexes(tasks []domain.Task) map[string]int {
	out := map[string]int{}
	for _, t := range tasks {
		out[t.ID] = t.Index
	}
	return out
}

func TestPlace(t *testing.T) {
	siblings := []domain.Task{
		seq("a", 0, domain.StatusCompleted),
		par("b", 1, domain.StatusActive),
		par("c", 1, domain.StatusActive),
		seq("d", 2, domain.StatusLocked),
	}
	cases := []struct {
		name      string
		taskType  string
		placement Placement
		wantIndex int
		wantIdx   map[string]int
	}{
		{"default end", domain.TaskSequential, Placement{}, 3, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2}},
		{"start shifts all", domain.TaskSequential, Placement{Mode: PlaceStart}, 0, map[string]int{"a": 1, "b": 2, "c": 2, "d": 3}},
		{"after parallel group", domain.TaskSequential, Placement{Mode: PlaceAfter, AfterTaskID: "b"}, 2, map[string]int{"a": 0, "b": 1, "c": 1, "d": 3}},
		{"join parallel group", domain.TaskParallel, Placement{Mode: PlaceIndex, Index: 1}, 1, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2}},
		{"free index", domain.TaskSequential, Placement{Mode: PlaceIndex, Index: 7}, 7, map[string]int{"a": 0, "b": 1, "c": 1, "d": 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx, out, err := Place(siblings, tc.taskType, tc.placement)
			require.NoError(t, err)
			assert.Equal(t, tc.wantIndex, idx)
			assert.Equal(t, tc.wantIdx, indexes(out))
		})
	}
	// input is never modified
	assert.Equal(t, 0, siblings[0].Index)
}

func TestPlaceRejectsMalformed(t *testing.T) {
	siblings := []domain.Task{seq("a", 0, domain.StatusActive), par("b", 1, domain.StatusLocked)}
	cases := []struct {
		name      string
		taskType  string
		placement Placement
		want      error
	}{
		{"sequential reuses index", domain.TaskSequential, Placement{Mode: PlaceIndex, Index: 0}, domain.ErrInvalidPlacement},
		{"sequential joins parallel", domain.TaskSequential, Placement{Mode: PlaceIndex, Index: 1}, domain.ErrInvalidPlacement},
		{"parallel joins sequential", domain.TaskParallel, Placement{Mode: PlaceIndex, Index: 0}, domain.ErrInvalidPlacement},
		{"negative index", domain.TaskParallel, Placement{Mode: PlaceIndex, Index: -1}, domain.ErrInvalidPlacement},
		{"unknown mode", domain.TaskSequential, Placement{Mode: "middle"}, domain.ErrInvalidPlacement},
		{"unknown type", "BATCH", Placement{}, domain.ErrInvalidPlacement},
		{"missing anchor", domain.TaskSequential, Placement{Mode: PlaceAfter, AfterTaskID: "zzz"}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Place(siblings, tc.taskType, tc.placement)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlacementString(t *testing.T) {
	assert.Equal(t, "end", Placement{}.String())
	assert.Equal(t, "after t1", Placement{Mode: PlaceAfter, AfterTaskID: "t1"}.String())
	assert.Equal(t, "index 3", Placement{Mode: PlaceIndex, Index: 3}.String())
}
