// Package notify delivers fire-and-forget notifications about task status
// changes. Sinks never report failure to the caller; they log it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Notification kinds.
const (
	ReviewRequested = "review.requested"
	ReworkAssigned  = "rework.assigned"
	TaskUnlocked    = "task.unlocked"
	TaskCompleted   = "task.completed"
)

// Notification describes one status change worth telling someone about.
type Notification struct {
	Kind        string   `json:"kind"`
	ProjectID   string   `json:"project_id"`
	SubObjectID string   `json:"sub_object_id"`
	TaskID      string   `json:"task_id"`
	Title       string   `json:"title,omitempty"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	ActorID     string   `json:"actor_id,omitempty"`
	Assignees   []string `json:"assignees,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	TS          string   `json:"ts"`
}

// Sink receives notifications after the change that produced them commits.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// Log writes each notification as a structured log line.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"project_id", n.ProjectID,
		"task_id", n.TaskID,
		"from", n.From,
		"to", n.To,
	)
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}

// Recorder keeps notifications in memory. It is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Kinds returns the kinds recorded for taskID, in order.
func (r *Recorder) Kinds(taskID string) []string {
	var out []string
	for _, n := range r.Sent() {
		if n.TaskID == taskID {
			out = append(out, n.Kind)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// Publisher is the part of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATS publishes JSON notifications on <Prefix>.<kind>.
type NATS struct {
	Conn   Publisher
	Prefix string
	Logger *slog.Logger
}

// Subject returns the subject a notification of kind is published on.
func (s NATS) Subject(kind string) string {
	prefix := strings.TrimSuffix(s.Prefix, ".")
	if prefix == "" {
		prefix = "siteline"
	}
	return fmt.Sprintf("%s.%s", prefix, kind)
}

func (s NATS) Notify(ctx context.Context, n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	data, err := json.Marshal(n)
	if err != nil {
		logger.WarnContext(ctx, "marshal notification", "kind", n.Kind, "error", err)
		return
	}
	if err := s.Conn.Publish(s.Subject(n.Kind), data); err != nil {
		logger.WarnContext(ctx, "publish notification", "subject", s.Subject(n.Kind), "task_id", n.TaskID, "error", err)
	}
}
