package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chord/cmd/internal/metrics"
	v1 "chord/shared/contracts/realtime/v1"
)

var (
	// ErrNotParticipant covers both an absent thread and a sender outside
	// the thread's pair. The two cases are deliberately indistinguishable
	// so that a probe cannot learn whether a thread id exists.
	ErrNotParticipant = errors.New("sender is not a participant of the thread")

	// ErrEmptyBody is returned when the body is empty after trimming.
	ErrEmptyBody = errors.New("empty message body")

	// ErrMissingThreadID is returned when the thread id is absent.
	ErrMissingThreadID = errors.New("missing thread id")

	// ErrBodyTooLong is returned when the body exceeds the rune limit.
	ErrBodyTooLong = fmt.Errorf("message too long: max=%d chars", maxMessageChars)
)

// Pipeline handles one inbound chat send end to end:
// validate -> authorize -> persist -> fan out.
//
// Authorization is re-done per message against the Store: room membership
// never implies send rights, since joins are unauthenticated by design.
//
// Fanout ordering: a per-thread mutex covers persist + broadcast, so a
// room's subscribers observe messages in persistence order even when both
// participants send concurrently.
type Pipeline struct {
	log   *slog.Logger
	store Store
	hub   *Hub

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// NewPipeline constructs a Pipeline.
func NewPipeline(log *slog.Logger, store Store, hub *Hub) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:     log,
		store:   store,
		hub:     hub,
		threads: make(map[string]*sync.Mutex),
	}
}

// Send processes a single chat-send request. senderID always comes from the
// authenticated connection, never from the payload.
//
// Every returned error means the message was dropped: nothing persisted
// beyond what the error names, nothing broadcast. The gateway surfaces none
// of them to the client.
func (p *Pipeline) Send(ctx context.Context, senderID, threadID, body string) (Message, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		metrics.MessagesDropped.WithLabelValues("invalid").Inc()
		return Message{}, ErrMissingThreadID
	}

	body = strings.TrimSpace(body)
	if body == "" {
		metrics.MessagesDropped.WithLabelValues("invalid").Inc()
		return Message{}, ErrEmptyBody
	}
	if len([]rune(body)) > maxMessageChars {
		metrics.MessagesDropped.WithLabelValues("invalid").Inc()
		return Message{}, ErrBodyTooLong
	}

	lock := p.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	thread, err := p.store.FindThreadByID(ctx, threadID)
	if errors.Is(err, ErrThreadNotFound) {
		metrics.MessagesDropped.WithLabelValues("unauthorized").Inc()
		return Message{}, ErrNotParticipant
	}
	if err != nil {
		metrics.MessagesDropped.WithLabelValues("store").Inc()
		return Message{}, fmt.Errorf("thread lookup: %w", err)
	}
	if !thread.HasParticipant(senderID) {
		metrics.MessagesDropped.WithLabelValues("unauthorized").Inc()
		return Message{}, ErrNotParticipant
	}

	msg, err := p.store.InsertMessage(ctx, threadID, senderID, body)
	if err != nil {
		// Transient by policy: no partial broadcast, no automatic retry.
		metrics.MessagesDropped.WithLabelValues("store").Inc()
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	metrics.MessagesPersisted.Inc()

	p.broadcastNew(msg)
	return msg, nil
}

func (p *Pipeline) broadcastNew(msg Message) {
	payload, err := json.Marshal(v1.MessageNewPayload{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		Seq:       msg.Seq,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		p.log.Error("pipeline.broadcast.marshal.fail", "err", err)
		return
	}

	env := NewEnvelope(v1.TypeMessageNew, payload, msg.CreatedAt)
	p.hub.Broadcast(msg.ThreadID, env)
	metrics.BroadcastsTotal.Inc()
}

func (p *Pipeline) threadLock(threadID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		p.threads[threadID] = lock
	}
	return lock
}

// NewEnvelope wraps a payload in the canonical wire envelope.
func NewEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	id, err := NewEnvelopeID(ts)
	if err != nil {
		id = ""
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      ts,
		Payload: payload,
	}
}
