package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestCanonicalPair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		wantLo  string
		wantHi  string
		wantErr error
	}{
		{name: "ordered", a: "alice", b: "bob", wantLo: "alice", wantHi: "bob"},
		{name: "reversed", a: "bob", b: "alice", wantLo: "alice", wantHi: "bob"},
		{name: "trims whitespace", a: "  bob ", b: "alice", wantLo: "alice", wantHi: "bob"},
		{name: "self pair", a: "alice", b: "alice", wantErr: ErrSelfThread},
		{name: "empty a", a: "", b: "bob", wantErr: errors.New("empty participant id")},
		{name: "empty b", a: "alice", b: "  ", wantErr: errors.New("empty participant id")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lo, hi, err := CanonicalPair(tt.a, tt.b)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error, got lo=%q hi=%q", lo, hi)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lo != tt.wantLo || hi != tt.wantHi {
				t.Fatalf("got (%q, %q), want (%q, %q)", lo, hi, tt.wantLo, tt.wantHi)
			}
		})
	}
}

func TestInMemoryStore_FindOrCreateThreadIsSymmetric(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	t1, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}
	t2, err := st.FindOrCreateThread(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("FindOrCreateThread reversed: %v", err)
	}

	if t1.ID != t2.ID {
		t.Fatalf("pair order must not matter: got %q and %q", t1.ID, t2.ID)
	}
	if t1.UserLo != "alice" || t1.UserHi != "bob" {
		t.Fatalf("canonical pair = (%q, %q), want (alice, bob)", t1.UserLo, t1.UserHi)
	}
}

func TestInMemoryStore_FindOrCreateThreadSelfRejected(t *testing.T) {
	t.Parallel()

	_, err := NewInMemoryStore().FindOrCreateThread(context.Background(), "alice", "alice")
	if !errors.Is(err, ErrSelfThread) {
		t.Fatalf("err = %v, want ErrSelfThread", err)
	}
}

func TestInMemoryStore_ConcurrentFindOrCreateSingleThread(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	const workers = 16
	ids := make([]string, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			th, err := st.FindOrCreateThread(ctx, a, b)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = th.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d resolved thread %q, worker 0 resolved %q", i, ids[i], ids[0])
		}
	}
}

func TestInMemoryStore_InsertMessageSeqMonotonic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	for i := 1; i <= 5; i++ {
		msg, err := st.InsertMessage(ctx, th.ID, "alice", fmt.Sprintf("msg %d", i))
		if err != nil {
			t.Fatalf("InsertMessage %d: %v", i, err)
		}
		if msg.Seq != int64(i) {
			t.Fatalf("seq = %d, want %d", msg.Seq, i)
		}
	}
}

func TestInMemoryStore_InsertMessageUnknownThread(t *testing.T) {
	t.Parallel()

	_, err := NewInMemoryStore().InsertMessage(context.Background(), "nope", "alice", "hi")
	if !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("err = %v, want ErrThreadNotFound", err)
	}
}

func TestInMemoryStore_ListMessagesAscendingAndLimited(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := st.InsertMessage(ctx, th.ID, "alice", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	msgs, err := st.ListMessages(ctx, th.ID, 4)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("seq not ascending: %d then %d", msgs[i-1].Seq, msgs[i].Seq)
		}
	}
}

func TestInMemoryStore_MarkReadSkipsOwnMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	if _, err := st.InsertMessage(ctx, th.ID, "alice", "one"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := st.InsertMessage(ctx, th.ID, "alice", "two"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := st.InsertMessage(ctx, th.ID, "bob", "three"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	updated, err := st.MarkRead(ctx, th.ID, "bob")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2 (only alice's messages)", updated)
	}

	// Second pass: nothing left unread for bob.
	updated, err = st.MarkRead(ctx, th.ID, "bob")
	if err != nil {
		t.Fatalf("MarkRead second pass: %v", err)
	}
	if updated != 0 {
		t.Fatalf("updated = %d, want 0", updated)
	}

	msgs, err := st.ListMessages(ctx, th.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	for _, m := range msgs {
		if m.SenderID == "alice" && m.ReadAt == nil {
			t.Fatalf("alice's message seq=%d should be read", m.Seq)
		}
		if m.SenderID == "bob" && m.ReadAt != nil {
			t.Fatalf("bob's own message seq=%d must stay unread", m.Seq)
		}
	}
}

func TestInMemoryStore_FindThreadByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := NewInMemoryStore()

	th, err := st.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	got, err := st.FindThreadByID(ctx, th.ID)
	if err != nil {
		t.Fatalf("FindThreadByID: %v", err)
	}
	if got.ID != th.ID {
		t.Fatalf("id = %q, want %q", got.ID, th.ID)
	}

	if _, err := st.FindThreadByID(ctx, "missing"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("err = %v, want ErrThreadNotFound", err)
	}
}

func TestThread_HasParticipant(t *testing.T) {
	t.Parallel()

	th := Thread{UserLo: "alice", UserHi: "bob"}

	if !th.HasParticipant("alice") || !th.HasParticipant("bob") {
		t.Fatalf("both pair members must be participants")
	}
	if th.HasParticipant("carol") {
		t.Fatalf("outsider must not be a participant")
	}
	if th.HasParticipant("") {
		t.Fatalf("empty id must not be a participant")
	}
}
