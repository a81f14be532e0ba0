package domain

// Project statuses.
const (
	ProjectDraft     = "DRAFT"
	ProjectPublished = "PUBLISHED"
)

// Task types.
const (
	TaskSequential = "SEQUENTIAL"
	TaskParallel   = "PARALLEL"
)

// Task statuses.
const (
	StatusLocked             = "LOCKED"
	StatusActive             = "ACTIVE"
	StatusUnderReviewForeman = "UNDER_REVIEW_FOREMAN"
	StatusReworkForeman      = "REWORK_FOREMAN"
	StatusUnderReviewPM      = "UNDER_REVIEW_PM"
	StatusReworkPM           = "REWORK_PM"
	StatusCompleted          = "COMPLETED"
)

// Actor roles. RoleSystem is never assigned to a stored actor; it drives
// scheduler transitions.
const (
	RoleWorker     = "WORKER"
	RoleForeman    = "FOREMAN"
	RolePM         = "PM"
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleEstimator  = "ESTIMATOR"
	RoleSystem     = "SYSTEM"
)

// ValidRole reports whether r may be stored on an actor.
func ValidRole(r string) bool {
	switch r {
	case RoleWorker, RoleForeman, RolePM, RoleSuperAdmin, RoleEstimator:
		return true
	}
	return false
}

// InReview reports whether status is one of the review tiers.
func InReview(status string) bool {
	return status == StatusUnderReviewForeman || status == StatusUnderReviewPM
}

// InRework reports whether status is one of the rework states.
func InRework(status string) bool {
	return status == StatusReworkForeman || status == StatusReworkPM
}

// Workable reports whether a worker can act on a task in this status.
func Workable(status string) bool {
	return status == StatusActive || InRework(status)
}

type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"WORKER,FOREMAN,PM,SUPER_ADMIN,ESTIMATOR"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status" enum:"DRAFT,PUBLISHED"`
	Deadline  *string `json:"deadline,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type ConstructionObject struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type SubObject struct {
	ID        string   `json:"id"`
	ObjectID  string   `json:"object_id"`
	ProjectID string   `json:"project_id"`
	Name      string   `json:"name"`
	Workers   []string `json:"workers"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type Task struct {
	ID               string   `json:"id"`
	SubObjectID      string   `json:"sub_object_id"`
	ProjectID        string   `json:"project_id"`
	Title            string   `json:"title"`
	Type             string   `json:"type" enum:"SEQUENTIAL,PARALLEL"`
	Index            int      `json:"index"`
	Status           string   `json:"status" enum:"LOCKED,ACTIVE,UNDER_REVIEW_FOREMAN,REWORK_FOREMAN,UNDER_REVIEW_PM,REWORK_PM,COMPLETED"`
	Assignees        []string `json:"assignees"`
	Deadline         *string  `json:"deadline,omitempty"`
	Priority         *int     `json:"priority,omitempty"`
	SourceTemplateID *string  `json:"source_template_id,omitempty"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
	UpdatedAt        string   `json:"updated_at" format:"date-time"`
	CompletedAt      *string  `json:"completed_at,omitempty" format:"date-time"`
}

// HasAssignee reports whether actorID is assigned to the task.
func (t Task) HasAssignee(actorID string) bool {
	for _, a := range t.Assignees {
		if a == actorID {
			return true
		}
	}
	return false
}

type ChecklistItem struct {
	ID              string  `json:"id"`
	TaskID          string  `json:"task_id"`
	Description     string  `json:"description"`
	IsPhotoRequired bool    `json:"is_photo_required"`
	Methodology     *string `json:"methodology,omitempty"`
	IsCompleted     bool    `json:"is_completed"`
	OrderIndex      int     `json:"order_index"`
}

type Checklist struct {
	TaskID string          `json:"task_id"`
	Items  []ChecklistItem `json:"items"`
}

type ChecklistTemplateItem struct {
	Description     string  `json:"description" yaml:"description"`
	IsPhotoRequired bool    `json:"is_photo_required" yaml:"is_photo_required"`
	Methodology     *string `json:"methodology,omitempty" yaml:"methodology,omitempty"`
	OrderIndex      int     `json:"order_index" yaml:"order_index"`
}

type ChecklistTemplate struct {
	ID        string                  `json:"id" yaml:"id,omitempty"`
	Name      string                  `json:"name" yaml:"name"`
	Items     []ChecklistTemplateItem `json:"items" yaml:"items"`
	CreatedAt string                  `json:"created_at" yaml:"-" format:"date-time"`
	UpdatedAt string                  `json:"updated_at" yaml:"-" format:"date-time"`
}

type TaskTemplate struct {
	Name                string `json:"name" yaml:"name"`
	ChecklistTemplateID string `json:"checklist_template_id" yaml:"checklist_template_id"`
	OrderIndex          int    `json:"order_index" yaml:"order_index"`
}

type SubObjectTemplate struct {
	ID        string         `json:"id" yaml:"id,omitempty"`
	Name      string         `json:"name" yaml:"name"`
	Tasks     []TaskTemplate `json:"tasks" yaml:"tasks"`
	CreatedAt string         `json:"created_at" yaml:"-" format:"date-time"`
	UpdatedAt string         `json:"updated_at" yaml:"-" format:"date-time"`
}

type ChecklistAnswer struct {
	ChecklistItemID string `json:"checklist_item_id"`
	Completed       bool   `json:"completed"`
}

type PhotoRef struct {
	ChecklistItemID string `json:"checklist_item_id"`
	Ref             string `json:"ref"`
}

type Report struct {
	TaskID      string            `json:"task_id"`
	ActorID     string            `json:"actor_id"`
	Comment     string            `json:"comment,omitempty"`
	Answers     []ChecklistAnswer `json:"answers"`
	Photos      []PhotoRef        `json:"photos"`
	SubmittedAt string            `json:"submitted_at" format:"date-time"`
}

type Review struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	ActorID    string `json:"actor_id"`
	Role       string `json:"role"`
	Approve    bool   `json:"approve"`
	Comment    string `json:"comment,omitempty"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// TaskDetail bundles a task with everything it owns.
type TaskDetail struct {
	Task      Task      `json:"task"`
	Checklist Checklist `json:"checklist"`
	Report    *Report   `json:"report,omitempty"`
	Reviews   []Review  `json:"reviews"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
