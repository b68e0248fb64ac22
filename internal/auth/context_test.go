package auth

import (
	"context"
	"testing"
	"time"
)

func TestUserIDContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := UserID(ctx); ok {
		t.Fatalf("empty context must carry no identity")
	}

	ctx = WithUserID(ctx, 42)
	id, ok := UserID(ctx)
	if !ok || id != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", id, ok)
	}
}

func TestResolveUserID_ContextIdentitySkipsTokens(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	dir := &fakeDirectory{}
	r := newTestResolver(t, now, dir)

	ctx := WithUserID(context.Background(), 11)
	id, ok := UserID(ctx)
	if !ok {
		t.Fatalf("expected context identity")
	}

	got, ok, err := r.ResolveUserID(ctx, Credentials{SessionUserID: &id})
	if err != nil || !ok || got != 11 {
		t.Fatalf("expected (11, true), got (%d, %v, %v)", got, ok, err)
	}
	if dir.lookups != 0 {
		t.Fatalf("session identity must not hit the directory")
	}
}
