package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteline/internal/config"
	"siteline/internal/db"
	"siteline/internal/domain"
	"siteline/internal/engine/auth"
	"siteline/internal/events"
	"siteline/internal/evidence"
	"siteline/internal/metrics"
	"siteline/internal/notify"
	"siteline/internal/repo"
)

// Engine runs every domain operation. It is a value; copies share the
// database, the sinks and the per-sub-object locks.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Config   *config.Config
	Notify   notify.Sink
	Evidence evidence.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string

	locks *keyedMutex
}

func New(conn *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	ev := evidence.NewMemory()
	ev.MaxBytes = cfg.Evidence.MaxBytes
	return Engine{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Events:   events.Writer{},
		Auth:     auth.Service{DB: conn},
		Config:   cfg,
		Notify:   notify.Nop{},
		Evidence: ev,
		Logger:   slog.Default(),
		Now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// effects are published once the transaction that produced them commits.
type effects struct {
	moves []statusMove
	notes []notify.Notification
}

type statusMove struct {
	TaskID string
	From   string
	To     string
	Event  string
}

// mutate runs fn in one transaction. A non-empty key is locked for the
// whole transaction. Repositories handed to fn are bound to the
// transaction; the Engine's own Repo and Auth must not be used inside fn.
func (e Engine) mutate(ctx context.Context, key string, fn func(tx *sql.Tx, r repo.Repo, fx *effects) error) error {
	if key != "" {
		unlock := e.lock(key)
		defer unlock()
	}
	fx := &effects{}
	err := db.WithinTx(ctx, e.DB, func(tx *sql.Tx) error {
		return fn(tx, e.Repo.WithTx(tx), fx)
	})
	if err != nil {
		return err
	}
	e.flush(ctx, fx)
	return nil
}

func (e Engine) flush(ctx context.Context, fx *effects) {
	for _, m := range fx.moves {
		e.Metrics.Transition(m.From, m.To, m.Event)
		e.logger().DebugContext(ctx, "task transition", "task_id", m.TaskID, "from", m.From, "to", m.To, "event", m.Event)
	}
	if e.Notify == nil {
		return
	}
	for _, n := range fx.notes {
		e.Notify.Notify(ctx, n)
	}
}

func (e Engine) lock(key string) func() {
	km := e.locks
	if km == nil {
		km = sharedLocks
	}
	return km.Lock(key)
}

var sharedLocks = newKeyedMutex()

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: map[string]*keyedEntry{}}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	ent, ok := k.entries[key]
	if !ok {
		ent = &keyedEntry{}
		k.entries[key] = ent
	}
	ent.refs++
	k.mu.Unlock()

	ent.mu.Lock()
	return func() {
		ent.mu.Unlock()
		k.mu.Lock()
		ent.refs--
		if ent.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

func (e Engine) require(ctx context.Context, actor domain.Actor, perm string) error {
	return e.Auth.Require(ctx, actor, perm)
}

// visibleProject loads a project the actor may see. DRAFT projects are
// reported as missing to roles that cannot see drafts.
func visibleProject(ctx context.Context, r repo.Repo, actor domain.Actor, id string) (domain.Project, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return p, err
	}
	if p.Status == domain.ProjectDraft && !auth.CanSeeDrafts(actor.Role) {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func visibleTask(ctx context.Context, r repo.Repo, actor domain.Actor, id string) (domain.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return t, err
	}
	if _, err := visibleProject(ctx, r, actor, t.ProjectID); err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func visibleSubObject(ctx context.Context, r repo.Repo, actor domain.Actor, id string) (domain.SubObject, error) {
	s, err := r.GetSubObject(ctx, id)
	if err != nil {
		return s, err
	}
	if _, err := visibleProject(ctx, r, actor, s.ProjectID); err != nil {
		return domain.SubObject{}, fmt.Errorf("sub-object %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.Validation("%s is required", field)
	}
	return nil
}

// validDeadline accepts RFC3339 timestamps and plain dates.
func validDeadline(d *string) error {
	if d == nil || *d == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, *d); err == nil {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, *d); err == nil {
		return nil
	}
	return domain.Validation("deadline %q is not an RFC3339 timestamp or YYYY-MM-DD date", *d)
}

// ensureActors fails with NotFound for the first id that is not a stored actor.
func ensureActors(ctx context.Context, r repo.Repo, ids []string) error {
	for _, id := range ids {
		if _, err := r.GetActor(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
