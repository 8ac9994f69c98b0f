package goGate

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestForgeryTokenConsumedOnMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	token, err := env.engine.IssueForgeryToken(ctx, sid)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d %v", len(raw), err)
	}

	ok, err := env.engine.ValidateForgeryToken(ctx, sid, token)
	if err != nil || !ok {
		t.Fatalf("expected first validation to pass, got %v %v", ok, err)
	}
	ok, err = env.engine.ValidateForgeryToken(ctx, sid, token)
	if err != nil || ok {
		t.Fatalf("a token must validate at most once, got %v %v", ok, err)
	}
}

func TestForgeryTokenMismatchKeepsStored(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	token, err := env.engine.IssueForgeryToken(ctx, sid)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, bad := range []string{"", "x", token[:len(token)-1], token + "A"} {
		if ok, _ := env.engine.ValidateForgeryToken(ctx, sid, bad); ok {
			t.Fatalf("token %q must not validate", bad)
		}
	}
	if ok, _ := env.engine.ValidateForgeryToken(ctx, sid, token); !ok {
		t.Fatal("stored token must survive failed attempts")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricForgeryRejected]; got != 4 {
		t.Fatalf("expected 4 rejections, got %d", got)
	}
}

func TestStaleForgeryTokenRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	stale, _ := env.engine.IssueForgeryToken(ctx, sid)
	fresh, _ := env.engine.IssueForgeryToken(ctx, sid)
	if stale == fresh {
		t.Fatal("each render must produce a new token")
	}
	if ok, _ := env.engine.ValidateForgeryToken(ctx, sid, stale); ok {
		t.Fatal("stale token must be rejected")
	}
	if ok, _ := env.engine.ValidateForgeryToken(ctx, sid, fresh); !ok {
		t.Fatal("fresh token must still validate")
	}
}

func TestForgeryTokenBoundToSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.session(t)
	b := env.session(t)

	token, _ := env.engine.IssueForgeryToken(ctx, a)
	if ok, _ := env.engine.ValidateForgeryToken(ctx, b, token); ok {
		t.Fatal("a token must not validate for another session")
	}
	if ok, _ := env.engine.ValidateForgeryToken(ctx, "garbage", token); ok {
		t.Fatal("malformed session must not validate")
	}

	if _, err := env.engine.IssueForgeryToken(ctx, "garbage"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	_ = env.engine.Destroy(ctx, a)
	if _, err := env.engine.IssueForgeryToken(ctx, a); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("issuing into a destroyed session must fail, got %v", err)
	}
}

func TestFlashIsOneShot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sid := env.session(t)

	if err := env.engine.SetFlash(ctx, sid, FlashInvalidCredentials); err != nil {
		t.Fatalf("set flash: %v", err)
	}
	msg, err := env.engine.PopFlash(ctx, sid)
	if err != nil || msg != FlashInvalidCredentials {
		t.Fatalf("expected flash, got %q %v", msg, err)
	}
	if msg, _ := env.engine.PopFlash(ctx, sid); msg != "" {
		t.Fatalf("flash must clear after render, got %q", msg)
	}
}

func TestEnsureSessionReusesLiveSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	sid := env.session(t)
	again, err := env.engine.EnsureSession(ctx, sid)
	if err != nil || again != sid {
		t.Fatalf("expected live session reused, got %q %v", again, err)
	}
	fresh, err := env.engine.EnsureSession(ctx, "not-base64!")
	if err != nil || fresh == "" || fresh == sid {
		t.Fatalf("expected a new session for garbage input, got %q %v", fresh, err)
	}
}
