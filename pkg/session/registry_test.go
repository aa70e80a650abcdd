package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
)

func TestRegistry_CreateLookupRemove(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(focus.DefaultConfig(), "test", func() time.Time { return start })

	s, err := r.Create("conn-1", "u1", "m1", "sec")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if s.ID == "" {
		t.Error("session id is empty")
	}
	if !s.CreatedAt.Equal(start) || !s.LastFlush().Equal(start) {
		t.Errorf("CreatedAt/LastFlush = %v/%v, want %v", s.CreatedAt, s.LastFlush(), start)
	}

	if _, err := r.Create("conn-1", "u1", "m1", ""); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("duplicate Create error = %v, want ErrDuplicateSession", err)
	}

	got, err := r.Lookup("conn-1")
	if err != nil || got != s {
		t.Fatalf("Lookup = %v, %v", got, err)
	}
	if _, err := r.Lookup("conn-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Lookup unknown error = %v, want ErrSessionNotFound", err)
	}

	removed, err := r.Remove("conn-1")
	if err != nil || removed != s {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, err := r.Remove("conn-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Remove error = %v, want ErrSessionNotFound", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_ListOrdered(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(focus.DefaultConfig(), "test", func() time.Time {
		now = now.Add(time.Second)
		return now
	})

	for _, id := range []string{"c", "a", "b"} {
		if _, err := r.Create(id, "u", "m", ""); err != nil {
			t.Fatal(err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List len = %d, want 3", len(list))
	}
	for i, want := range []string{"c", "a", "b"} {
		if list[i].ConnectionID != want {
			t.Errorf("List[%d] = %s, want %s", i, list[i].ConnectionID, want)
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(focus.DefaultConfig(), "test", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			if _, err := r.Create(id, "u", "m", ""); err != nil {
				t.Errorf("Create %s: %v", id, err)
				return
			}
			if _, err := r.Remove(id); err != nil {
				t.Errorf("Remove %s: %v", id, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			for _, s := range r.List() {
				_ = s.Info()
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
