package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"siteline/internal/db"
)

// Event types appended by the engine.
const (
	ProjectCreated    = "project.created"
	ProjectUpdated    = "project.updated"
	ProjectPublished  = "project.published"
	ProjectDeleted    = "project.deleted"
	ObjectCreated     = "object.created"
	ObjectUpdated     = "object.updated"
	ObjectDeleted     = "object.deleted"
	SubObjectCreated  = "subobject.created"
	SubObjectUpdated  = "subobject.updated"
	SubObjectDeleted  = "subobject.deleted"
	TemplateApplied   = "subobject.template.applied"
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskMoved         = "task.moved"
	TaskDeleted       = "task.deleted"
	TaskStatusChanged = "task.status.changed"
	ChecklistChanged  = "checklist.changed"
	ReportSubmitted   = "report.submitted"
	ReviewDecided     = "review.decided"
	EvidenceUploaded  = "evidence.uploaded"
	TemplateCreated   = "template.created"
	TemplateUpdated   = "template.updated"
	TemplateDeleted   = "template.deleted"
	TemplateReplaced  = "template.replaced"
	ActorCreated      = "actor.created"
	APIKeyCreated     = "actor.api_key.created"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event row using q, which is normally the transaction
// carrying the change the event describes.
func (w Writer) Append(ctx context.Context, q db.DBTX, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
