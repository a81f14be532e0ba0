package server

import (
	"siteline/internal/domain"
	"siteline/internal/scheduler"
)

// Request payloads

type CreateActorRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role" enum:"WORKER,FOREMAN,PM,SUPER_ADMIN,ESTIMATOR"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateProjectRequest struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Deadline *string `json:"deadline,omitempty"`
}

type UpdateProjectRequest struct {
	Name     *string `json:"name,omitempty"`
	Deadline *string `json:"deadline,omitempty"`
}

type CreateObjectRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type UpdateObjectRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateSubObjectRequest struct {
	Name    string   `json:"name"`
	Workers []string `json:"workers,omitempty"`
}

type RenameSubObjectRequest struct {
	Name string `json:"name"`
}

type AssignWorkersRequest struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

type ApplyTemplateRequest struct {
	TemplateID string `json:"template_id"`
}

type CreateTaskRequest struct {
	Title               string               `json:"title"`
	Type                string               `json:"type" enum:"SEQUENTIAL,PARALLEL"`
	Placement           *scheduler.Placement `json:"placement,omitempty"`
	Assignees           []string             `json:"assignees,omitempty"`
	Deadline            *string              `json:"deadline,omitempty"`
	Priority            *int                 `json:"priority,omitempty"`
	ChecklistTemplateID string               `json:"checklist_template_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title         *string  `json:"title,omitempty"`
	Deadline      *string  `json:"deadline,omitempty"`
	Priority      *int     `json:"priority,omitempty"`
	ClearPriority bool     `json:"clear_priority,omitempty"`
	Assignees     []string `json:"assignees,omitempty"`
}

type MoveTaskRequest struct {
	Placement scheduler.Placement `json:"placement"`
}

type ChangeTaskTypeRequest struct {
	Type string `json:"type" enum:"SEQUENTIAL,PARALLEL"`
}

type AddChecklistItemRequest struct {
	Description     string  `json:"description"`
	OrderIndex      *int    `json:"order_index,omitempty"`
	IsPhotoRequired bool    `json:"is_photo_required,omitempty"`
	Methodology     *string `json:"methodology,omitempty"`
}

// UpdateChecklistItemRequest patches one item. Absent fields are left
// alone; an empty methodology clears it.
type UpdateChecklistItemRequest struct {
	Description     *string `json:"description,omitempty"`
	IsPhotoRequired *bool   `json:"is_photo_required,omitempty"`
	Methodology     *string `json:"methodology,omitempty"`
}

type MoveChecklistItemRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type ToggleChecklistItemRequest struct {
	Completed bool `json:"completed"`
}

type SubmitRequest struct {
	Comment string                   `json:"comment,omitempty"`
	Answers []domain.ChecklistAnswer `json:"answers,omitempty"`
	Photos  []domain.PhotoRef        `json:"photos,omitempty"`
}

type DecisionRequest struct {
	Decision string `json:"decision" enum:"approve,reject"`
	Comment  string `json:"comment,omitempty"`
}

type ChecklistTemplateRequest struct {
	ID    string                         `json:"id,omitempty"`
	Name  string                         `json:"name"`
	Items []domain.ChecklistTemplateItem `json:"items,omitempty"`
}

type SubObjectTemplateRequest struct {
	ID    string                `json:"id,omitempty"`
	Name  string                `json:"name"`
	Tasks []domain.TaskTemplate `json:"tasks,omitempty"`
}

// Response payloads

type CreateAPIKeyResponse struct {
	Key    string        `json:"key"`
	APIKey domain.APIKey `json:"api_key"`
}

type ProgressResponse struct {
	ProjectID string         `json:"project_id"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
}

type EvidenceResponse struct {
	TaskID string   `json:"task_id"`
	Refs   []string `json:"refs"`
}

type UploadEvidenceResponse struct {
	Ref string `json:"ref"`
}

type EventsResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor *int64         `json:"next_cursor,omitempty"`
}
