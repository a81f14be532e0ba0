// Package scheduler decides which tasks of a sub-object are workable.
//
// Siblings are grouped by index in ascending order. A group is either one
// SEQUENTIAL task or any number of PARALLEL tasks sharing the index, and it
// is eligible only when every group before it is entirely COMPLETED.
// Deadlines and priorities never influence eligibility.
package scheduler

import (
	"fmt"
	"sort"

	"siteline/internal/domain"
)

// Group is the set of siblings sharing one index.
type Group struct {
	Index int
	Tasks []domain.Task
}

// Completed reports whether every member of the group is COMPLETED.
func (g Group) Completed() bool {
	for _, t := range g.Tasks {
		if t.Status != domain.StatusCompleted {
			return false
		}
	}
	return true
}

// GroupByIndex buckets tasks by index, ascending. Members keep their input
// order.
func GroupByIndex(tasks []domain.Task) []Group {
	byIndex := map[int][]domain.Task{}
	var keys []int
	for _, t := range tasks {
		if _, ok := byIndex[t.Index]; !ok {
			keys = append(keys, t.Index)
		}
		byIndex[t.Index] = append(byIndex[t.Index], t)
	}
	sort.Ints(keys)
	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, Group{Index: k, Tasks: byIndex[k]})
	}
	return groups
}

// Eligibility maps each task id to whether its group may be worked.
func Eligibility(tasks []domain.Task) map[string]bool {
	out := make(map[string]bool, len(tasks))
	open := true
	for _, g := range GroupByIndex(tasks) {
		for _, t := range g.Tasks {
			out[t.ID] = open
		}
		if !g.Completed() {
			open = false
		}
	}
	return out
}

// EligibleAt reports whether a task placed at index would be eligible given
// the current siblings.
func EligibleAt(siblings []domain.Task, index int) bool {
	for _, t := range siblings {
		if t.Index < index && t.Status != domain.StatusCompleted {
			return false
		}
	}
	return true
}

// InitialStatus is the status a new task at index starts in.
func InitialStatus(siblings []domain.Task, index int) string {
	if EligibleAt(siblings, index) {
		return domain.StatusActive
	}
	return domain.StatusLocked
}

// Change is one scheduler-driven status change.
type Change struct {
	TaskID string
	From   string
	To     string
}

// Cascade returns the LOCKED tasks that have become eligible. Tasks in any
// other status are left alone.
func Cascade(tasks []domain.Task) []Change {
	elig := Eligibility(tasks)
	var changes []Change
	for _, t := range ordered(tasks) {
		if t.Status == domain.StatusLocked && elig[t.ID] {
			changes = append(changes, Change{TaskID: t.ID, From: t.Status, To: domain.StatusActive})
		}
	}
	return changes
}

// Reconcile is Cascade plus relocking ACTIVE tasks that lost eligibility
// after a structural edit. Review, rework and completed tasks are never
// touched.
func Reconcile(tasks []domain.Task) []Change {
	elig := Eligibility(tasks)
	var changes []Change
	for _, t := range ordered(tasks) {
		switch {
		case t.Status == domain.StatusLocked && elig[t.ID]:
			changes = append(changes, Change{TaskID: t.ID, From: t.Status, To: domain.StatusActive})
		case t.Status == domain.StatusActive && !elig[t.ID]:
			changes = append(changes, Change{TaskID: t.ID, From: t.Status, To: domain.StatusLocked})
		}
	}
	return changes
}

// Apply returns a copy of tasks with changes applied.
func Apply(tasks []domain.Task, changes []Change) []domain.Task {
	to := make(map[string]string, len(changes))
	for _, c := range changes {
		to[c.TaskID] = c.To
	}
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		if s, ok := to[out[i].ID]; ok {
			out[i].Status = s
		}
	}
	return out
}

// Violations lists every task that is ACTIVE or further along while an
// earlier group is still incomplete. An empty result means the sibling list
// satisfies the scheduler invariant.
func Violations(tasks []domain.Task) []string {
	var out []string
	blocked := false
	blocker := 0
	for _, g := range GroupByIndex(tasks) {
		if blocked {
			for _, t := range g.Tasks {
				if t.Status != domain.StatusLocked {
					out = append(out, fmt.Sprintf("task %s at index %d is %s while index %d is incomplete", t.ID, t.Index, t.Status, blocker))
				}
			}
			continue
		}
		if !g.Completed() {
			blocked = true
			blocker = g.Index
		}
	}
	return out
}

// CheckStructure validates a proposed sibling list after a structural edit.
// Index/type combinations must be well formed, and no task already in
// review, in rework or COMPLETED may end up behind an incomplete group,
// since such tasks are never relocked.
func CheckStructure(tasks []domain.Task) error {
	for _, g := range GroupByIndex(tasks) {
		if g.Index < 0 {
			return domain.Placement("index %d is negative", g.Index)
		}
		if len(g.Tasks) > 1 {
			for _, t := range g.Tasks {
				if t.Type == domain.TaskSequential {
					return domain.Placement("sequential task %s shares index %d", t.ID, g.Index)
				}
			}
		}
	}
	blocked := false
	for _, g := range GroupByIndex(tasks) {
		if blocked {
			for _, t := range g.Tasks {
				if t.Status != domain.StatusLocked && t.Status != domain.StatusActive {
					return domain.Placement("task %s is %s and cannot follow an incomplete group", t.ID, t.Status)
				}
			}
		}
		if !g.Completed() {
			blocked = true
		}
	}
	return nil
}

func ordered(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
