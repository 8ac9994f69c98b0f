package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T, absolute time.Duration) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "gs", true, absolute), mr, rdb
}

func testIdentity() *Identity {
	return &Identity{
		UserID:        7,
		Identity:      "alice@example.com",
		Role:          "user",
		Roles:         []string{"user"},
		Active:        true,
		IdleTTL:       24 * time.Minute,
		EstablishedAt: time.Now().Unix(),
	}
}

func TestEncodeDecode(t *testing.T) {
	id := testIdentity()
	id.Details = map[string]string{"first_name": "Alice", "locale": "en"}
	id.RememberMe = true

	data, err := Encode(id)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != id.UserID || got.Identity != id.Identity || got.Role != id.Role ||
		!got.Active || !got.RememberMe || got.IdleTTL != id.IdleTTL || got.EstablishedAt != id.EstablishedAt {
		t.Fatalf("decoded identity mismatch: %+v", got)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "user" {
		t.Fatalf("roles mismatch: %v", got.Roles)
	}
	if got.Details["first_name"] != "Alice" || got.Details["locale"] != "en" {
		t.Fatalf("details mismatch: %v", got.Details)
	}

	if _, err := Decode([]byte{99}); !errors.Is(err, ErrUnsupportedSchema) {
		t.Fatalf("expected unsupported schema error, got %v", err)
	}
	if _, err := Decode(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}

	id.Identity = strings.Repeat("x", maxStringLen+1)
	if _, err := Encode(id); err == nil {
		t.Fatal("expected oversized identity to be rejected")
	}
}

func TestEncodeDecodeLongStrings(t *testing.T) {
	id := testIdentity()
	id.Identity = strings.Repeat("é", 150) + "@x.com"
	id.Details = map[string]string{"bio": strings.Repeat("x", 300)}

	data, err := Encode(id)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Identity != id.Identity {
		t.Fatalf("identity mismatch: %d bytes, want %d", len(got.Identity), len(id.Identity))
	}
	if got.Details["bio"] != id.Details["bio"] {
		t.Fatalf("detail mismatch: %d bytes", len(got.Details["bio"]))
	}
}

func TestDecodeSchemaV1(t *testing.T) {
	data := []byte{schemaV1, 0, 0, 0, 0, 0, 0, 0, 9}
	data = append(data, 5)
	data = append(data, "a@b.c"...)
	data = append(data, 4)
	data = append(data, "user"...)
	data = append(data, 1, 0)
	data = append(data, 0, 0, 0x05, 0xa0) // 1440s
	data = append(data, 0, 0, 0, 0, 0x65, 0x53, 0xf1, 0x00)
	data = append(data, 1, 4)
	data = append(data, "user"...)
	data = append(data, 1, 1, 'k', 1, 'v')

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if got.UserID != 9 || got.Identity != "a@b.c" || got.Role != "user" || !got.Active || got.RememberMe {
		t.Fatalf("v1 identity mismatch: %+v", got)
	}
	if got.IdleTTL != 1440*time.Second || got.EstablishedAt != 1700000000 {
		t.Fatalf("v1 timing mismatch: %+v", got)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "user" || got.Details["k"] != "v" {
		t.Fatalf("v1 lists mismatch: %+v", got)
	}
}

func TestDecodeRejectsOverlongLength(t *testing.T) {
	data := []byte{CurrentSchemaVersion, 0, 0, 0, 0, 0, 0, 0, 1, 0xff, 0xff, 0x03, 'a'}
	if _, err := Decode(data); err == nil {
		t.Fatal("expected length beyond input to be rejected")
	}
}

func TestEstablishReplacesPriorSession(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := store.Create(ctx, "anon", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Set(ctx, "anon", FieldNext, "/admin"); err != nil {
		t.Fatalf("set next: %v", err)
	}

	id := testIdentity()
	if err := store.Establish(ctx, "anon", "authd", id); err != nil {
		t.Fatalf("establish: %v", err)
	}

	if mr.Exists("gs:anon") {
		t.Fatal("expected prior session key to be removed")
	}
	if ttl := mr.TTL("gs:authd"); ttl != id.IdleTTL {
		t.Fatalf("expected ttl %v, got %v", id.IdleTTL, ttl)
	}

	state, err := store.Load(ctx, "authd", time.Minute)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Identity == nil || state.Identity.Identity != "alice@example.com" {
		t.Fatalf("expected identity to be bound, got %+v", state.Identity)
	}
	if state.Next != "" {
		t.Fatalf("expected nothing carried over, got next=%q", state.Next)
	}
}

func TestEstablishIsAllOrNothing(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := store.Create(ctx, "anon", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.SetError("ERR simulated outage")
	err := store.Establish(ctx, "anon", "authd", testIdentity())
	mr.SetError("")

	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected redis unavailable, got %v", err)
	}
	if !mr.Exists("gs:anon") {
		t.Fatal("prior session must survive a failed establish")
	}
	if mr.Exists("gs:authd") {
		t.Fatal("new session must not exist after a failed establish")
	}
}

func TestLoadSlidesExpiry(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	id := testIdentity()
	if err := store.Establish(ctx, "", "s1", id); err != nil {
		t.Fatalf("establish: %v", err)
	}

	mr.FastForward(20 * time.Minute)
	if _, err := store.Load(ctx, "s1", time.Minute); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ttl := mr.TTL("gs:s1"); ttl != id.IdleTTL {
		t.Fatalf("expected ttl reset to %v, got %v", id.IdleTTL, ttl)
	}

	mr.FastForward(id.IdleTTL + time.Second)
	if _, err := store.Load(ctx, "s1", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestLoadAbsoluteLifetime(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, time.Hour)
	ctx := context.Background()

	id := testIdentity()
	id.EstablishedAt = time.Now().Add(-2 * time.Hour).Unix()
	id.IdleTTL = 7 * 24 * time.Hour

	// Establish refuses a session that is already past its absolute cap.
	if err := store.Establish(ctx, "", "old", id); err == nil {
		t.Fatal("expected establish to refuse an exhausted session")
	}

	id.EstablishedAt = time.Now().Add(-30 * time.Minute).Unix()
	if err := store.Establish(ctx, "", "capped", id); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if _, err := store.Load(ctx, "capped", time.Minute); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	store, mr, rdb := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := rdb.HSet(ctx, "gs:bad", fieldIdentity, "\x01\x02").Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(ctx, "bad", time.Minute); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	if mr.Exists("gs:bad") {
		t.Fatal("corrupt session must be removed")
	}
}

func TestSetOnlyWhenSessionExists(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	ok, err := store.Set(ctx, "ghost", FieldFlash, "hello")
	if err != nil || ok {
		t.Fatalf("expected no write to missing session, ok=%v err=%v", ok, err)
	}
	if mr.Exists("gs:ghost") {
		t.Fatal("set must not resurrect a missing session")
	}
}

func TestPopIsOneShot(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := store.Create(ctx, "s", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Set(ctx, "s", FieldFlash, "invalid credentials"); err != nil {
		t.Fatalf("set: %v", err)
	}

	first, err := store.Pop(ctx, "s", FieldFlash)
	if err != nil || first != "invalid credentials" {
		t.Fatalf("first pop: %q %v", first, err)
	}
	second, err := store.Pop(ctx, "s", FieldFlash)
	if err != nil || second != "" {
		t.Fatalf("second pop: %q %v", second, err)
	}
}

func TestCompareAndDelete(t *testing.T) {
	store, _, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := store.Create(ctx, "s", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Set(ctx, "s", FieldForgeryToken, "tok-1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if ok, err := store.CompareAndDelete(ctx, "s", FieldForgeryToken, "tok-0"); err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
	if v, _ := store.Get(ctx, "s", FieldForgeryToken); v != "tok-1" {
		t.Fatalf("mismatch must keep token, got %q", v)
	}

	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.CompareAndDelete(ctx, "s", FieldForgeryToken, "tok-1")
			if err == nil {
				wins <- ok
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for ok := range wins {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", n)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	ctx := context.Background()

	if err := store.Establish(ctx, "", "s", testIdentity()); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if mr.Exists("gs:s") {
		t.Fatal("expected session to be gone")
	}
}

func TestRedisDownIsReported(t *testing.T) {
	store, mr, _ := newSessionStoreTest(t, 0)
	mr.Close()

	if _, err := store.Load(context.Background(), "s", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected redis unavailable on load, got %v", err)
	}
	if err := store.Delete(context.Background(), "s"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected redis unavailable on delete, got %v", err)
	}
}
