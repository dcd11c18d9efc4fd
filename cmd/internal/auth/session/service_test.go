package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(DefaultConfig(), NewInMemoryStore())
}

func TestService_IssueAndResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Token == "" || issued.SessionID == "" {
		t.Fatalf("issued session missing token or id: %+v", issued)
	}
	if !issued.ExpiresAt.After(now) {
		t.Fatalf("expiry %v not after now %v", issued.ExpiresAt, now)
	}

	ident, err := svc.Resolve(ctx, issued.Token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ident.UserID != "user-1" || ident.SessionID != issued.SessionID {
		t.Fatalf("identity = %+v, want user-1/%s", ident, issued.SessionID)
	}
}

func TestService_ResolveUnknownToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, err := svc.Resolve(context.Background(), "bogus", time.Now().UTC())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestService_ResolveEmptyAndOversizedToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	now := time.Now().UTC()

	if _, err := svc.Resolve(context.Background(), "   ", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("empty token: err = %v, want ErrSessionNotFound", err)
	}

	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := svc.Resolve(context.Background(), string(big), now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("oversized token: err = %v, want ErrSessionNotFound", err)
	}
}

func TestService_ResolveExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = svc.Resolve(ctx, issued.Token, issued.ExpiresAt.Add(time.Second))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestService_ResolveRevoked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, "user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, now, issued.SessionID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = svc.Resolve(ctx, issued.Token, now.Add(time.Minute))
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("err = %v, want ErrSessionRevoked", err)
	}
}

func TestService_RevokeAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	now := time.Now().UTC()

	i1, err := svc.Issue(ctx, now, "user-1")
	if err != nil {
		t.Fatalf("Issue 1: %v", err)
	}
	i2, err := svc.Issue(ctx, now, "user-1")
	if err != nil {
		t.Fatalf("Issue 2: %v", err)
	}
	other, err := svc.Issue(ctx, now, "user-2")
	if err != nil {
		t.Fatalf("Issue other: %v", err)
	}

	if err := svc.RevokeAll(ctx, now, "user-1"); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	later := now.Add(time.Minute)
	if _, err := svc.Resolve(ctx, i1.Token, later); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("i1: err = %v, want ErrSessionRevoked", err)
	}
	if _, err := svc.Resolve(ctx, i2.Token, later); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("i2: err = %v, want ErrSessionRevoked", err)
	}
	if _, err := svc.Resolve(ctx, other.Token, later); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestService_TokensAreUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t)
	now := time.Now().UTC()

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		issued, err := svc.Issue(ctx, now, "user-1")
		if err != nil {
			t.Fatalf("Issue %d: %v", i, err)
		}
		if _, dup := seen[issued.Token]; dup {
			t.Fatalf("duplicate token issued at round %d", i)
		}
		seen[issued.Token] = struct{}{}
	}
}
