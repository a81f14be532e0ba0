package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	subj []string
	data [][]byte
	err  error
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subj = append(p.subj, subj)
	p.data = append(p.data, data)
	return nil
}

func TestNATSPublishesJSONOnKindSubject(t *testing.T) {
	pub := &fakePublisher{}
	sink := NATS{Conn: pub, Prefix: "site."}
	sink.Notify(context.Background(), Notification{Kind: TaskUnlocked, TaskID: "t-2", From: "LOCKED", To: "ACTIVE"})

	require.Len(t, pub.subj, 1)
	assert.Equal(t, "site.task.unlocked", pub.subj[0])
	var got Notification
	require.NoError(t, json.Unmarshal(pub.data[0], &got))
	assert.Equal(t, "t-2", got.TaskID)
	assert.Equal(t, "ACTIVE", got.To)
}

func TestNATSDefaultPrefix(t *testing.T) {
	assert.Equal(t, "siteline.review.requested", NATS{}.Subject(ReviewRequested))
}

func TestNATSFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NATS{Conn: &fakePublisher{err: errors.New("no responders")}, Logger: logger}
	sink.Notify(context.Background(), Notification{Kind: TaskCompleted, TaskID: "t-1"})
	assert.Contains(t, buf.String(), "publish notification")
	assert.Contains(t, buf.String(), "no responders")
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, Nop{}, b}.Notify(context.Background(), Notification{Kind: ReworkAssigned, TaskID: "t-9"})
	assert.Equal(t, []string{ReworkAssigned}, a.Kinds("t-9"))
	assert.Equal(t, []string{ReworkAssigned}, b.Kinds("t-9"))
}

func TestRecorderReset(t *testing.T) {
	r := &Recorder{}
	r.Notify(context.Background(), Notification{Kind: TaskUnlocked, TaskID: "x"})
	require.Len(t, r.Sent(), 1)
	r.Reset()
	assert.Empty(t, r.Sent())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	Log{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}.Notify(context.Background(), Notification{Kind: TaskCompleted, TaskID: "t-3"})
	assert.Contains(t, buf.String(), `"kind":"task.completed"`)
	assert.Contains(t, buf.String(), `"task_id":"t-3"`)
}
