package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chord/cmd/internal/auth/session"
	"chord/cmd/internal/realtime"
)

type chatFixture struct {
	mux      *http.ServeMux
	store    *realtime.InMemoryStore
	sessions *session.Service
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := realtime.NewInMemoryStore()
	sessions := session.NewService(session.DefaultConfig(), session.NewInMemoryStore())

	h := NewHandler(log, Config{}, store, sessions)
	mux := http.NewServeMux()
	h.Register(mux)

	return &chatFixture{mux: mux, store: store, sessions: sessions}
}

// issueToken mints a session for userID and returns the bearer token.
func (f *chatFixture) issueToken(t *testing.T, userID string) string {
	t.Helper()

	issued, err := f.sessions.Issue(context.Background(), time.Now().UTC(), userID)
	if err != nil {
		t.Fatalf("issue session for %q: %v", userID, err)
	}
	return issued.Token
}

func (f *chatFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func chatErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestCreateThread(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	token := f.issueToken(t, "bob")

	rec := f.do(t, http.MethodPost, "/api/threads", token, createThreadRequest{PeerID: "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp threadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Fatalf("thread has no id")
	}
	if resp.Participants != [2]string{"alice", "bob"} {
		t.Fatalf("participants = %v, want canonical [alice bob]", resp.Participants)
	}

	// Creating from the other side resolves to the same thread.
	aliceToken := f.issueToken(t, "alice")
	rec = f.do(t, http.MethodPost, "/api/threads", aliceToken, createThreadRequest{PeerID: "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reverse create status = %d", rec.Code)
	}
	var resp2 threadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp2.ID != resp.ID {
		t.Fatalf("reverse create returned %q, want same thread %q", resp2.ID, resp.ID)
	}
}

func TestCreateThread_Validation(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)
	token := f.issueToken(t, "alice")

	tests := []struct {
		name     string
		peerID   string
		wantCode string
	}{
		{name: "empty peer", peerID: "   ", wantCode: "invalid_request"},
		{name: "self thread", peerID: "alice", wantCode: "self_thread"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/threads", token, createThreadRequest{PeerID: tt.peerID})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if code := chatErrorCode(t, rec); code != tt.wantCode {
				t.Fatalf("error code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestCreateThread_Unauthorized(t *testing.T) {
	t.Parallel()

	f := newChatFixture(t)

	rec := f.do(t, http.MethodPost, "/api/threads", "", createThreadRequest{PeerID: "alice"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newChatFixture(t)

	th, err := f.store.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.store.InsertMessage(ctx, th.ID, "alice", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	token := f.issueToken(t, "bob")
	rec := f.do(t, http.MethodGet, "/api/threads/"+th.ID+"/messages", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp messagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ThreadID != th.ID {
		t.Fatalf("thread_id = %q, want %q", resp.ThreadID, th.ID)
	}
	if len(resp.Messages) != 5 {
		t.Fatalf("len = %d, want 5", len(resp.Messages))
	}
	for i := 1; i < len(resp.Messages); i++ {
		if resp.Messages[i].Seq <= resp.Messages[i-1].Seq {
			t.Fatalf("seq not ascending at %d", i)
		}
	}
}

func TestListMessages_Limit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newChatFixture(t)

	th, err := f.store.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.store.InsertMessage(ctx, th.ID, "alice", "m"); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	token := f.issueToken(t, "alice")

	rec := f.do(t, http.MethodGet, "/api/threads/"+th.ID+"/messages?limit=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp messagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("len = %d, want 2", len(resp.Messages))
	}

	for _, bad := range []string{"0", "-1", "abc"} {
		rec := f.do(t, http.MethodGet, "/api/threads/"+th.ID+"/messages?limit="+bad, token, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%q: status = %d, want 400", bad, rec.Code)
		}
		if code := chatErrorCode(t, rec); code != "invalid_limit" {
			t.Fatalf("limit=%q: error code = %q, want invalid_limit", bad, code)
		}
	}
}

func TestListMessages_NotFoundIsUniform(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newChatFixture(t)

	th, err := f.store.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	outsider := f.issueToken(t, "carol")

	// Non-participant and missing thread must be indistinguishable.
	recReal := f.do(t, http.MethodGet, "/api/threads/"+th.ID+"/messages", outsider, nil)
	recGhost := f.do(t, http.MethodGet, "/api/threads/no-such-thread/messages", outsider, nil)

	if recReal.Code != http.StatusNotFound || recGhost.Code != http.StatusNotFound {
		t.Fatalf("statuses = (%d, %d), want both 404", recReal.Code, recGhost.Code)
	}
	if recReal.Body.String() != recGhost.Body.String() {
		t.Fatalf("bodies differ:\nexisting: %s\nmissing:  %s", recReal.Body.String(), recGhost.Body.String())
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newChatFixture(t)

	th, err := f.store.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}
	if _, err := f.store.InsertMessage(ctx, th.ID, "alice", "one"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if _, err := f.store.InsertMessage(ctx, th.ID, "bob", "two"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	token := f.issueToken(t, "bob")
	rec := f.do(t, http.MethodPost, "/api/threads/"+th.ID+"/read", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp markReadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Updated != 1 {
		t.Fatalf("updated = %d, want 1 (only alice's message)", resp.Updated)
	}

	// Second pass has nothing left to mark.
	rec = f.do(t, http.MethodPost, "/api/threads/"+th.ID+"/read", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second pass status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Updated != 0 {
		t.Fatalf("updated = %d, want 0", resp.Updated)
	}
}

func TestMarkRead_NonParticipant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newChatFixture(t)

	th, err := f.store.FindOrCreateThread(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("FindOrCreateThread: %v", err)
	}

	token := f.issueToken(t, "carol")
	rec := f.do(t, http.MethodPost, "/api/threads/"+th.ID+"/read", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
