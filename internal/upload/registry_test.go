package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func spool(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestTakeKeepsSpoolFile(t *testing.T) {
	r := NewRegistry(4, time.Minute)
	path := spool(t, "a.csv")
	id := r.Put(&Pending{OriginalName: "a.csv", SpoolPath: path})
	if id == "" {
		t.Fatalf("expected an id")
	}
	if _, err := r.Get(id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	p, err := r.Take(id)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if p.OriginalName != "a.csv" {
		t.Fatalf("unexpected pending: %+v", p)
	}
	if !exists(path) {
		t.Fatalf("taken spool file was removed")
	}
	if _, err := r.Take(id); !errors.Is(err, ErrExpired) {
		t.Fatalf("second Take: want ErrExpired, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestEvictionRemovesSpoolFile(t *testing.T) {
	r := NewRegistry(1, time.Minute)
	first := spool(t, "first.csv")
	second := spool(t, "second.csv")
	id := r.Put(&Pending{SpoolPath: first})
	r.Put(&Pending{SpoolPath: second})
	if exists(first) {
		t.Fatalf("evicted spool file still on disk")
	}
	if !exists(second) {
		t.Fatalf("live spool file removed")
	}
	if _, err := r.Get(id); !errors.Is(err, ErrExpired) {
		t.Fatalf("evicted entry still readable: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	r := NewRegistry(4, 20*time.Millisecond)
	path := spool(t, "a.csv")
	id := r.Put(&Pending{SpoolPath: path})
	time.Sleep(60 * time.Millisecond)
	if _, err := r.Get(id); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired after ttl, got %v", err)
	}
}

func TestDiscardAndClose(t *testing.T) {
	r := NewRegistry(4, time.Minute)
	a, b := spool(t, "a.csv"), spool(t, "b.csv")
	idA := r.Put(&Pending{SpoolPath: a})
	r.Put(&Pending{SpoolPath: b})
	if !r.Discard(idA) || exists(a) {
		t.Fatalf("Discard should drop the entry and its file")
	}
	r.Close()
	if exists(b) || r.Len() != 0 {
		t.Fatalf("Close should discard everything")
	}
}

func TestTakeAfterEvictionFails(t *testing.T) {
	r := NewRegistry(4, time.Minute)
	path := spool(t, "a.csv")
	p := &Pending{SpoolPath: path}
	id := r.Put(p)
	// The expiry callback claims the entry before Take gets to it.
	onEvict(id, p)
	if exists(path) {
		t.Fatalf("evicted spool file still on disk")
	}
	if _, err := r.Take(id); !errors.Is(err, ErrExpired) {
		t.Fatalf("Take after eviction: want ErrExpired, got %v", err)
	}
}

func TestTakeRacingExpiry(t *testing.T) {
	const n = 40
	ttl := 5 * time.Millisecond
	r := NewRegistry(n, ttl)
	dir := t.TempDir()
	paths := make([]string, n)
	ids := make([]string, n)
	for i := range n {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%d.csv", i))
		if err := os.WriteFile(paths[i], []byte("a\n1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		ids[i] = r.Put(&Pending{SpoolPath: paths[i]})
	}

	taken := make([]bool, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i%10) * time.Millisecond)
			if _, err := r.Take(ids[i]); err == nil {
				taken[i] = true
			}
		}(i)
	}
	wg.Wait()
	// Let the expiry sweep finish with whatever is left.
	time.Sleep(4 * ttl)
	for i := range n {
		if taken[i] && !exists(paths[i]) {
			t.Fatalf("upload %d was taken but its spool file was removed", i)
		}
	}
}
