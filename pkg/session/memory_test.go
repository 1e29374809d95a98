package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	payload := Payload{"user": "ada", "count": 3}
	if err := store.Set(ctx, "s1", payload, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record for s1")
	}
	if got["user"] != "ada" {
		t.Errorf("payload[user] = %v, want %q", got["user"], "ada")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, ok, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected absent for unknown id")
	}
}

func TestMemoryStoreExpiryDeletesLazily(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "s1", Payload{"k": "v"}, time.Now().Add(20*time.Millisecond)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	_, ok, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expected expired record to be absent")
	}

	// The read that discovered the stale record must have removed it.
	if n := store.Count(); n != 0 {
		t.Errorf("Count() = %d after expired read, want 0", n)
	}
}

func TestMemoryStoreZeroExpiryNeverExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "s1", Payload{"k": "v"}, time.Time{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, ok, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Error("record with zero expiry should never expire")
	}
}

func TestMemoryStoreDeleteMissingIsNoop(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Delete(context.Background(), "ghost"); err != nil {
		t.Fatalf("Delete of missing id: %v", err)
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Close()

	if err := store.Set(ctx, "s1", Payload{}, time.Time{}); err == nil {
		t.Error("expected error from Set on closed store")
	}
	if _, _, err := store.Get(ctx, "s1"); err == nil {
		t.Error("expected error from Get on closed store")
	}
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	payload := Payload{"k": "v"}
	store.Set(ctx, "s1", payload, time.Time{})
	payload["k"] = "mutated"

	got, _, _ := store.Get(ctx, "s1")
	if got["k"] != "v" {
		t.Errorf("stored payload mutated through caller map: got %v", got["k"])
	}

	got["k"] = "mutated again"
	again, _, _ := store.Get(ctx, "s1")
	if again["k"] != "v" {
		t.Errorf("stored payload mutated through returned map: got %v", again["k"])
	}
}
