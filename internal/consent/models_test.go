package consent

import (
	"context"
	"testing"
	"time"
)

func TestDeriveStatus_AllCombinations(t *testing.T) {
	for i := 0; i < 16; i++ {
		p := Preferences{
			Functional:  i&1 != 0,
			Preferences: i&2 != 0,
			Analytics:   i&4 != 0,
			Marketing:   i&8 != 0,
		}
		got := DeriveStatus(p)

		var want Status
		switch {
		case p.Functional && p.Preferences && p.Analytics && p.Marketing:
			want = StatusAccepted
		case !p.Functional && !p.Preferences && !p.Analytics && !p.Marketing:
			want = StatusRejected
		default:
			want = StatusPartial
		}
		if got != want {
			t.Errorf("DeriveStatus(%+v) = %q, want %q", p, got, want)
		}
	}
}

func TestApplyStaleness(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		updated time.Time
		wantAck bool
	}{
		{"updated yesterday", now.AddDate(0, 0, -1), true},
		{"updated five months ago", now.AddDate(0, -5, 0), true},
		{"updated exactly six months ago", now.AddDate(0, -6, 0), false},
		{"updated a year ago", now.AddDate(-1, 0, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := applyStaleness(Record{Ack: true, DateUpdated: tc.updated}, now)
			if rec.Ack != tc.wantAck {
				t.Fatalf("ack = %v, want %v", rec.Ack, tc.wantAck)
			}
		})
	}
}

func TestMemoryStore_StalenessResetOnLoad(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return now.AddDate(0, -7, 0) }

	rec, err := store.Insert(context.Background(), Record{
		Ack:         true,
		Preferences: Preferences{Functional: true},
		Status:      StatusPartial,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Seven months later the stored ack must read back as false.
	store.Clock = func() time.Time { return now }
	got, ok, err := store.Load(context.Background(), Selector{UUID: rec.UUID})
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Ack {
		t.Fatalf("expected ack reset on stale record")
	}
}

func TestMemoryStore_LoadRequiresSelector(t *testing.T) {
	store := NewMemoryStore()
	if _, _, err := store.Load(context.Background(), Selector{}); err != ErrInvalidSelector {
		t.Fatalf("expected ErrInvalidSelector, got %v", err)
	}
}

func TestMemoryStore_BindUserIDIsOneWay(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec, err := store.Insert(ctx, Record{Preferences: Preferences{Functional: true}, Status: StatusPartial})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := store.BindUserID(ctx, rec.UUID, 10); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := store.BindUserID(ctx, rec.UUID, 20); err != nil {
		t.Fatalf("bind: %v", err)
	}

	got, _, err := store.Load(ctx, Selector{UUID: rec.UUID})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.UserID == nil || *got.UserID != 10 {
		t.Fatalf("expected userId to stay 10, got %v", got.UserID)
	}
}

func TestMemoryStore_UpdateRefreshesExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Clock = func() time.Time { return t0 }

	rec, err := store.Insert(ctx, Record{Preferences: Preferences{Functional: true}, Status: StatusPartial})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !rec.DateExpires.Equal(t0.AddDate(1, 0, 0)) {
		t.Fatalf("insert expiry = %v, want %v", rec.DateExpires, t0.AddDate(1, 0, 0))
	}

	t1 := t0.AddDate(0, 2, 0)
	store.Clock = func() time.Time { return t1 }
	if err := store.Update(ctx, rec.UUID, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, err := store.Load(ctx, Selector{UUID: rec.UUID})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.DateExpires.Equal(t1.AddDate(1, 0, 0)) {
		t.Fatalf("update expiry = %v, want %v", got.DateExpires, t1.AddDate(1, 0, 0))
	}
	if !got.DateCreated.Equal(t0) {
		t.Fatalf("dateCreated must survive updates, got %v", got.DateCreated)
	}
}
