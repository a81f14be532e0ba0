package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteline/internal/domain"
)

func task(id string, typ string, index int, status string) domain.Task {
	return domain.Task{ID: id, Type: typ, Index: index, Status: status}
}

func seq(id string, index int, status string) domain.Task {
	return task(id, domain.TaskSequential, index, status)
}

func par(id string, index int, status string) domain.Task {
	return task(id, domain.TaskParallel, index, status)
}

func TestGroupByIndex(t *testing.T) {
	groups := GroupByIndex([]domain.Task{
		par("c", 2, domain.StatusLocked),
		seq("a", 0, domain.StatusActive),
		par("d", 2, domain.StatusLocked),
		seq("b", 1, domain.StatusLocked),
	})
	require.Len(t, groups, 3)
	assert.Equal(t, 0, groups[0].Index)
	assert.Equal(t, 2, groups[2].Index)
	require.Len(t, groups[2].Tasks, 2)
	assert.Equal(t, "c", groups[2].Tasks[0].ID)
}

func TestEligibility(t *testing.T) {
	cases := []struct {
		name  string
		tasks []domain.Task
		want  map[string]bool
	}{
		{
			name:  "first group always eligible",
			tasks: []domain.Task{seq("a", 3, domain.StatusLocked), seq("b", 5, domain.StatusLocked)},
			want:  map[string]bool{"a": true, "b": false},
		},
		{
			name: "parallel barrier waits for all members",
			tasks: []domain.Task{
				seq("a", 0, domain.StatusCompleted),
				par("b", 1, domain.StatusCompleted),
				par("c", 1, domain.StatusUnderReviewPM),
				seq("d", 2, domain.StatusLocked),
			},
			want: map[string]bool{"a": true, "b": true, "c": true, "d": false},
		},
		{
			name: "completed barrier opens next group",
			tasks: []domain.Task{
				par("b", 1, domain.StatusCompleted),
				par("c", 1, domain.StatusCompleted),
				par("d", 2, domain.StatusLocked),
				par("e", 2, domain.StatusLocked),
				seq("f", 3, domain.StatusLocked),
			},
			want: map[string]bool{"b": true, "c": true, "d": true, "e": true, "f": false},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligibility(tc.tasks))
		})
	}
}

func TestCascadeOnlyTouchesLocked(t *testing.T) {
	tasks := []domain.Task{
		seq("a", 0, domain.StatusCompleted),
		par("b", 1, domain.StatusLocked),
		par("c", 1, domain.StatusReworkForeman),
		seq("d", 2, domain.StatusLocked),
	}
	changes := Cascade(tasks)
	assert.Equal(t, []Change{{TaskID: "b", From: domain.StatusLocked, To: domain.StatusActive}}, changes)
}

func TestCascadeIgnoresDeadlineAndPriority(t *testing.T) {
	late := "2020-01-01T00:00:00Z"
	high := 9
	b := par("b", 0, domain.StatusCompleted)
	b.Deadline = &late
	c := par("c", 0, domain.StatusActive)
	c.Priority = &high
	changes := Cascade([]domain.Task{b, c, seq("d", 1, domain.StatusLocked)})
	assert.Empty(t, changes)
}

func TestReconcileRelocksActive(t *testing.T) {
	tasks := []domain.Task{
		seq("new", 0, domain.StatusActive),
		seq("a", 1, domain.StatusActive),
		seq("b", 2, domain.StatusLocked),
	}
	changes := Reconcile(tasks)
	assert.Equal(t, []Change{{TaskID: "a", From: domain.StatusActive, To: domain.StatusLocked}}, changes)
	assert.Empty(t, Violations(Apply(tasks, changes)))
}

func TestViolations(t *testing.T) {
	assert.Empty(t, Violations([]domain.Task{seq("a", 0, domain.StatusActive), seq("b", 1, domain.StatusLocked)}))
	v := Violations([]domain.Task{seq("a", 0, domain.StatusActive), seq("b", 1, domain.StatusUnderReviewForeman)})
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "task b")
}

func TestCheckStructure(t *testing.T) {
	assert.NoError(t, CheckStructure([]domain.Task{par("a", 0, domain.StatusActive), par("b", 0, domain.StatusActive)}))
	assert.ErrorIs(t, CheckStructure([]domain.Task{seq("a", 0, domain.StatusActive), par("b", 0, domain.StatusActive)}), domain.ErrInvalidPlacement)
	assert.ErrorIs(t, CheckStructure([]domain.Task{
		seq("new", 0, domain.StatusActive),
		seq("a", 1, domain.StatusUnderReviewForeman),
	}), domain.ErrInvalidPlacement)
	assert.NoError(t, CheckStructure([]domain.Task{
		seq("done", 0, domain.StatusCompleted),
		seq("a", 1, domain.StatusUnderReviewForeman),
		seq("new", 2, domain.StatusActive),
	}))
}

// Reconcile on any well-formed sibling list yields a list with no
// violations, whatever the mix of statuses.
func TestReconcileRestoresInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{
		domain.StatusLocked, domain.StatusActive, domain.StatusUnderReviewForeman,
		domain.StatusReworkForeman, domain.StatusUnderReviewPM, domain.StatusReworkPM, domain.StatusCompleted,
	}
	checked := 0
	for iter := 0; iter < 2000; iter++ {
		var tasks []domain.Task
		groups := 1 + rng.Intn(5)
		for g := 0; g < groups; g++ {
			members := 1
			typ := domain.TaskSequential
			if rng.Intn(2) == 0 {
				typ = domain.TaskParallel
				members = 1 + rng.Intn(3)
			}
			for m := 0; m < members; m++ {
				tasks = append(tasks, task(fmt.Sprintf("t%d-%d", g, m), typ, g*2, statuses[rng.Intn(len(statuses))]))
			}
		}
		if CheckStructure(tasks) != nil {
			continue
		}
		checked++
		after := Apply(tasks, Reconcile(tasks))
		assert.Empty(t, Violations(after), "tasks: %+v", tasks)
		assert.Empty(t, Reconcile(after), "reconcile must be idempotent")
	}
	assert.Positive(t, checked)
}

func TestInitialStatus(t *testing.T) {
	siblings := []domain.Task{seq("a", 0, domain.StatusCompleted), seq("b", 1, domain.StatusActive)}
	assert.Equal(t, domain.StatusActive, InitialStatus(nil, 0))
	assert.Equal(t, domain.StatusActive, InitialStatus(siblings, 1))
	assert.Equal(t, domain.StatusLocked, InitialStatus(siblings, 2))
}
