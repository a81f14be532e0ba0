package scheduler

import (
	"fmt"

	"siteline/internal/domain"
)

// Placement modes accepted when creating or moving a task.
const (
	PlaceEnd   = "end"
	PlaceStart = "start"
	PlaceAfter = "after"
	PlaceIndex = "index"
)

// Placement says where a task goes among its siblings. It only chooses an
// index; eligibility is still decided by the scheduler.
type Placement struct {
	Mode        string `json:"mode,omitempty" enum:"end,start,after,index"`
	AfterTaskID string `json:"after_task_id,omitempty"`
	Index       int    `json:"index,omitempty"`
}

func (p Placement) String() string {
	switch p.Mode {
	case PlaceAfter:
		return "after " + p.AfterTaskID
	case PlaceIndex:
		return fmt.Sprintf("index %d", p.Index)
	case "":
		return PlaceEnd
	}
	return p.Mode
}

// Place resolves p against siblings for a task of taskType. It returns the
// chosen index and the siblings with any shifted indices applied. siblings
// must not contain the task being placed.
func Place(siblings []domain.Task, taskType string, p Placement) (int, []domain.Task, error) {
	if taskType != domain.TaskSequential && taskType != domain.TaskParallel {
		return 0, nil, domain.Placement("unknown task type %q", taskType)
	}
	out := make([]domain.Task, len(siblings))
	copy(out, siblings)
	switch p.Mode {
	case "", PlaceEnd:
		next := 0
		for _, t := range out {
			if t.Index >= next {
				next = t.Index + 1
			}
		}
		return next, out, nil
	case PlaceStart:
		for i := range out {
			out[i].Index++
		}
		return 0, out, nil
	case PlaceAfter:
		if p.AfterTaskID == "" {
			return 0, nil, domain.Placement("after requires a task id")
		}
		anchor := -1
		for _, t := range out {
			if t.ID == p.AfterTaskID {
				anchor = t.Index
				break
			}
		}
		if anchor < 0 {
			return 0, nil, fmt.Errorf("anchor task %s: %w", p.AfterTaskID, domain.ErrNotFound)
		}
		for i := range out {
			if out[i].Index > anchor {
				out[i].Index++
			}
		}
		return anchor + 1, out, nil
	case PlaceIndex:
		if err := ValidateIndex(out, taskType, p.Index); err != nil {
			return 0, nil, err
		}
		return p.Index, out, nil
	default:
		return 0, nil, domain.Placement("unknown placement mode %q", p.Mode)
	}
}

// ValidateIndex checks that a task of taskType may occupy index. A
// SEQUENTIAL task needs the index to itself and a PARALLEL task may only
// join other PARALLEL tasks.
func ValidateIndex(siblings []domain.Task, taskType string, index int) error {
	if index < 0 {
		return domain.Placement("index %d is negative", index)
	}
	for _, t := range siblings {
		if t.Index != index {
			continue
		}
		if taskType == domain.TaskSequential {
			return domain.Placement("index %d is already used by task %s", index, t.ID)
		}
		if t.Type == domain.TaskSequential {
			return domain.Placement("index %d holds sequential task %s", index, t.ID)
		}
	}
	return nil
}
