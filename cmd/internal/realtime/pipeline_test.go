package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	v1 "chord/shared/contracts/realtime/v1"
)

func newTestPipeline(t *testing.T) (*Pipeline, *InMemoryStore, *Hub) {
	t.Helper()
	log := testLogger()
	st := NewInMemoryStore()
	hub := NewHub(log)
	return NewPipeline(log, st, hub), st, hub
}

func TestPipeline_SendPersistsAndBroadcasts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, st, hub := newTestPipeline(t)

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	bob := NewClient("bob", "conn-bob", 8)
	hub.Register(bob)
	hub.Join(bob, th.ID)

	msg, err := p.Send(ctx, "alice", th.ID, "  hello bob  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Body != "hello bob" {
		t.Fatalf("body = %q, want trimmed %q", msg.Body, "hello bob")
	}
	if msg.Seq != 1 {
		t.Fatalf("seq = %d, want 1", msg.Seq)
	}

	env := drainOne(t, bob)
	if env.Type != v1.TypeMessageNew {
		t.Fatalf("type = %q, want %q", env.Type, v1.TypeMessageNew)
	}
	var payload v1.MessageNewPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.SenderID != "alice" || payload.Body != "hello bob" || payload.ThreadID != th.ID {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	msgs, err := st.ListMessages(ctx, th.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(msgs))
	}
}

func TestPipeline_SendValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, st, _ := newTestPipeline(t)

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	tests := []struct {
		name     string
		threadID string
		body     string
		wantErr  error
	}{
		{name: "missing thread id", threadID: "  ", body: "hi", wantErr: ErrMissingThreadID},
		{name: "empty body", threadID: th.ID, body: "   ", wantErr: ErrEmptyBody},
		{name: "body too long", threadID: th.ID, body: strings.Repeat("x", maxMessageChars+1), wantErr: ErrBodyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := p.Send(ctx, "alice", tt.threadID, tt.body)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	msgs, err := st.ListMessages(ctx, th.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected sends must not persist, got %d messages", len(msgs))
	}
}

func TestPipeline_SendBodyAtLimitAllowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, st, _ := newTestPipeline(t)

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	if _, err := p.Send(ctx, "alice", th.ID, strings.Repeat("x", maxMessageChars)); err != nil {
		t.Fatalf("body exactly at limit must be accepted: %v", err)
	}
}

func TestPipeline_NonParticipantDropped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, st, hub := newTestPipeline(t)

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	// A third party that joined the room still has no send rights.
	carol := NewClient("carol", "conn-carol", 8)
	bob := NewClient("bob", "conn-bob", 8)
	hub.Register(carol)
	hub.Register(bob)
	hub.Join(carol, th.ID)
	hub.Join(bob, th.ID)

	_, err = p.Send(ctx, "carol", th.ID, "let me in")
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}

	select {
	case env := <-bob.Send:
		t.Fatalf("dropped message must not be broadcast, got %q", env.ID)
	default:
	}

	msgs, err := st.ListMessages(ctx, th.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("dropped message must not persist, got %d", len(msgs))
	}
}

func TestPipeline_UnknownThreadIndistinguishableFromNonParticipant(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t)

	_, err := p.Send(context.Background(), "alice", "no-such-thread", "hello")
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant (no thread-existence leak)", err)
	}
}

type failingStore struct {
	Store
	insertErr error
}

func (s *failingStore) InsertMessage(ctx context.Context, threadID, senderID, body string) (Message, error) {
	return Message{}, s.insertErr
}

func TestPipeline_StoreFailureDropsWithoutBroadcast(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := testLogger()

	base := NewInMemoryStore()
	th, err := base.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	boom := errors.New("disk on fire")
	hub := NewHub(log)
	p := NewPipeline(log, &failingStore{Store: base, insertErr: boom}, hub)

	bob := NewClient("bob", "conn-bob", 8)
	hub.Register(bob)
	hub.Join(bob, th.ID)

	_, err = p.Send(ctx, "alice", th.ID, "hello")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}

	select {
	case env := <-bob.Send:
		t.Fatalf("failed persist must not broadcast, got %q", env.ID)
	default:
	}
}

func TestPipeline_BothParticipantsCanSend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, st, _ := newTestPipeline(t)

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	m1, err := p.Send(ctx, "alice", th.ID, "hi")
	if err != nil {
		t.Fatalf("alice send: %v", err)
	}
	m2, err := p.Send(ctx, "bob", th.ID, "hey")
	if err != nil {
		t.Fatalf("bob send: %v", err)
	}
	if m1.Seq != 1 || m2.Seq != 2 {
		t.Fatalf("seqs = (%d, %d), want (1, 2)", m1.Seq, m2.Seq)
	}
}
