// Package main provides a CI-friendly WebSocket smoke test for chord realtime.
//
// It validates:
//   - register/login + session cookie issuance
//   - authenticated handshake + subprotocol selection
//   - thread creation (canonical pair)
//   - join echo
//   - send -> fanout message_new to the peer
//   - presence online broadcast
//   - silent drop for a non-participant sender
//   - history fetch + read receipts over HTTP
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "chord/shared/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const (
	defaultSubprotocol = "chord.realtime.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type smokeClient struct {
	name   string
	userID string
	token  string
	conn   *websocket.Conn

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "HTTP base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello chord", "Message body to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	suffix := time.Now().UnixNano() % 1_000_000_000

	a := mustRegister(root, *baseURL, "A", fmt.Sprintf("smoke-a-%d", suffix), *timeout)
	b := mustRegister(root, *baseURL, "B", fmt.Sprintf("smoke-b-%d", suffix), *timeout)
	c := mustRegister(root, *baseURL, "C", fmt.Sprintf("smoke-c-%d", suffix), *timeout)

	threadID := mustCreateThread(root, *baseURL, a, b.userID, *timeout)

	wsURL := deriveWSURL(*baseURL)

	mustConnect(root, a, wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	mustConnect(root, b, wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s thread=%s\n", a.userID, b.userID, threadID)
	}

	// A is already online when B connects, so A must see B flip online.
	mustAssertPresence(root, a, b.userID, true, *timeout)

	mustJoin(root, a, threadID, *timeout)
	mustJoin(root, b, threadID, *timeout)

	seq := mustSendAndAssertNew(root, a, b, threadID, *text, *timeout)

	// Non-participant sends are dropped without any reply to anyone.
	mustConnect(root, c, wsURL, *origin, *timeout)
	defer closeWS(c.conn)
	mustJoin(root, c, threadID, *timeout)
	sendMessage(root, c, threadID, "should never arrive", *timeout)
	mustAssertNoType(root, b, v1.TypeMessageNew, 1200*time.Millisecond)
	mustAssertNoType(root, c, v1.TypeMessageNew, 1200*time.Millisecond)

	mustHistoryContains(root, *baseURL, b, threadID, a.userID, *text, seq, *timeout)
	mustMarkRead(root, *baseURL, b, threadID, 1, *timeout)

	fmt.Printf("OK: A=%s B=%s thread_id=%s seq=%d\n", a.userID, b.userID, threadID, seq)
}

// ---- HTTP steps ----

type registerResp struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Session struct {
		Token string `json:"token"`
	} `json:"session"`
}

func mustRegister(parent context.Context, baseURL, name, username string, stepTimeout time.Duration) *smokeClient {
	var out registerResp
	body := map[string]string{
		"username": username,
		"name":     name,
		"password": "smoke-password-1",
	}
	mustHTTP(parent, http.MethodPost, baseURL+"/api/auth/register", "", body, http.StatusCreated, &out, stepTimeout)

	if strings.TrimSpace(out.User.ID) == "" || strings.TrimSpace(out.Session.Token) == "" {
		fatalf("register %s: missing user id or token", name)
	}

	return &smokeClient{
		name:   name,
		userID: out.User.ID,
		token:  out.Session.Token,
		inbox:  make(chan v1.Envelope, 512),
		errCh:  make(chan error, 1),
	}
}

func mustCreateThread(parent context.Context, baseURL string, c *smokeClient, peerID string, stepTimeout time.Duration) string {
	var out struct {
		ID string `json:"id"`
	}
	mustHTTP(parent, http.MethodPost, baseURL+"/api/threads", c.token, map[string]string{"peer_id": peerID}, http.StatusOK, &out, stepTimeout)

	if strings.TrimSpace(out.ID) == "" {
		fatalf("create thread (%s): missing id", c.name)
	}
	return out.ID
}

func mustHistoryContains(parent context.Context, baseURL string, c *smokeClient, threadID, senderID, body string, seq int64, stepTimeout time.Duration) {
	var out struct {
		Messages []struct {
			SenderID string `json:"sender_id"`
			Body     string `json:"body"`
			Seq      int64  `json:"seq"`
		} `json:"messages"`
	}
	mustHTTP(parent, http.MethodGet, baseURL+"/api/threads/"+threadID+"/messages?limit=50", c.token, nil, http.StatusOK, &out, stepTimeout)

	for _, m := range out.Messages {
		if m.SenderID == senderID && m.Body == body && m.Seq == seq {
			return
		}
	}
	fatalf("history missing expected message (%s)", c.name)
}

func mustMarkRead(parent context.Context, baseURL string, c *smokeClient, threadID string, wantUpdated int64, stepTimeout time.Duration) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	mustHTTP(parent, http.MethodPost, baseURL+"/api/threads/"+threadID+"/read", c.token, nil, http.StatusOK, &out, stepTimeout)

	if out.Updated != wantUpdated {
		fatalf("mark read (%s): updated=%d want=%d", c.name, out.Updated, wantUpdated)
	}
}

func mustHTTP(parent context.Context, method, rawURL, token string, body any, wantStatus int, dst any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		fatalf("build request %s %s: %v", method, rawURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, rawURL, resp.StatusCode, wantStatus, strings.TrimSpace(string(data)))
	}
	if dst != nil {
		if err := json.Unmarshal(data, dst); err != nil {
			fatalf("%s %s: unmarshal response: %v", method, rawURL, err)
		}
	}
}

// ---- WS steps ----

func mustConnect(parent context.Context, c *smokeClient, wsURL, origin string, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	h.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		fatalf("connect %s: %v", c.name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)
	c.conn = conn
	c.startReadLoop()
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}
			if err := env.Validate(); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad envelope: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustJoin(parent context.Context, c *smokeClient, threadID string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeThreadJoin,
		ID:      fmt.Sprintf("%s-join", c.name),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.ThreadJoinPayload{ThreadID: threadID}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)

	echo := c.mustReadUntilType(parent, v1.TypeThreadJoin, stepTimeout, map[string]struct{}{v1.TypePresence: {}})

	var p v1.ThreadJoinPayload
	if err := json.Unmarshal(echo.Payload, &p); err != nil {
		fatalf("unmarshal join echo payload (%s): %v", c.name, err)
	}
	if p.ThreadID != threadID {
		fatalf("join echo thread_id mismatch (%s): got=%q want=%q", c.name, p.ThreadID, threadID)
	}
}

func sendMessage(parent context.Context, c *smokeClient, threadID, body string, stepTimeout time.Duration) {
	env := v1.Envelope{
		V:       v1.Version,
		Type:    v1.TypeMessageSend,
		ID:      fmt.Sprintf("%s-send-%d", c.name, time.Now().UnixNano()),
		TS:      time.Now().UTC(),
		Payload: mustJSON(v1.MessageSendPayload{ThreadID: threadID, Body: body}),
	}
	mustWriteWithTimeout(parent, c.conn, env, stepTimeout)
}

func mustSendAndAssertNew(parent context.Context, sender, receiver *smokeClient, threadID, body string, stepTimeout time.Duration) int64 {
	sendMessage(parent, sender, threadID, body, stepTimeout)

	skip := map[string]struct{}{v1.TypePresence: {}}
	env := receiver.mustReadUntilType(parent, v1.TypeMessageNew, stepTimeout, skip)

	var p v1.MessageNewPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		fatalf("unmarshal message.new payload (%s): %v", receiver.name, err)
	}

	if p.ThreadID != threadID {
		fatalf("new thread_id mismatch (%s): got=%q want=%q", receiver.name, p.ThreadID, threadID)
	}
	if p.SenderID != sender.userID {
		fatalf("new sender mismatch (%s): got=%q want=%q", receiver.name, p.SenderID, sender.userID)
	}
	if p.Body != body {
		fatalf("new body mismatch (%s): got=%q want=%q", receiver.name, p.Body, body)
	}
	if p.Seq <= 0 {
		fatalf("new invalid seq (%s): %d", receiver.name, p.Seq)
	}
	if strings.TrimSpace(p.MessageID) == "" {
		fatalf("new missing message_id (%s)", receiver.name)
	}
	if p.CreatedAt.IsZero() {
		fatalf("new created_at missing/zero (%s)", receiver.name)
	}
	return p.Seq
}

func mustAssertPresence(parent context.Context, c *smokeClient, userID string, online bool, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for presence of %s (%s)", userID, c.name)
		case err := <-c.errCh:
			fatalf("connection error while waiting for presence (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for presence (%s)", c.name)
			}
			if env.Type != v1.TypePresence {
				continue
			}
			var p v1.PresencePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				fatalf("unmarshal presence payload (%s): %v", c.name, err)
			}
			if p.UserID == userID && p.Online == online {
				return
			}
		}
	}
}

func mustAssertNoType(parent context.Context, c *smokeClient, forbiddenType string, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if env.Type == forbiddenType {
				fatalf("unexpected %s received (%s)", forbiddenType, c.name)
			}
		}
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration, skipTypes map[string]struct{}) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				var ep v1.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if skipTypes != nil {
				if _, ok := skipTypes[env.Type]; ok {
					continue
				}
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

// ---- misc ----

func deriveWSURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		fatalf("derive ws url: %v", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
