package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/wizard"
)

func newWizard(t *testing.T) wizard.Wizard {
	t.Helper()
	id := "1"
	w, err := wizard.New("salon-1", []model.Service{{ID: "1", Name: "Haircut", DurationMinutes: 60, PriceCents: 4500}}).
		UpdateDraft(wizard.Patch{ServiceID: &id})
	if err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	return w
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, time.Minute, "test:wizard")
	ctx := context.Background()

	id, err := store.Create(ctx, newWizard(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !mr.Exists("test:wizard:" + id) {
		t.Fatalf("expected key in redis")
	}
	if ttl := mr.TTL("test:wizard:" + id); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	w, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w.Draft().TotalPriceCents != 4500 {
		t.Fatalf("price lost: %+v", w.Draft())
	}

	w, err = w.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := store.Save(ctx, id, w); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL("test:wizard:" + id); ttl != time.Minute {
		t.Fatalf("save should refresh ttl, got %v", ttl)
	}
	reloaded, err := store.Load(ctx, id)
	if err != nil || reloaded.Step() != wizard.StepStaff {
		t.Fatalf("reload: step=%v err=%v", reloaded.Step(), err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, time.Minute, "")
	ctx := context.Background()

	id, err := store.Create(ctx, newWizard(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if err := store.Save(ctx, id, newWizard(t)); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("save of expired session should fail, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(rdb, time.Minute, "")
	mr.Close()

	if _, err := store.Create(context.Background(), newWizard(t)); !errors.Is(err, model.ErrNetworkError) {
		t.Fatalf("expected ErrNetworkError, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	id, err := store.Create(ctx, newWizard(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Load(ctx, id); err != nil {
		t.Fatalf("Load: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Load(ctx, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, id, newWizard(t)); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on save, got %v", err)
	}
}
