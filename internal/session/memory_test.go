package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCreateSessionYieldsDistinctIDs(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		meta, err := store.CreateSession(context.Background())
		if err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
		if meta.ID == "" {
			t.Fatal("expected non-empty session id")
		}
		if seen[meta.ID] {
			t.Fatalf("duplicate session id %q", meta.ID)
		}
		seen[meta.ID] = true
	}
}

func TestCreateSessionRetriesOnCollision(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	ids := []string{"dup", "dup", "fresh"}
	store.newID = func() string {
		id := ids[0]
		if len(ids) > 1 {
			ids = ids[1:]
		}
		return id
	}

	first, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if first.ID != "dup" {
		t.Fatalf("first id = %q", first.ID)
	}

	second, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() after collision error = %v", err)
	}
	if second.ID != "fresh" {
		t.Fatalf("second id = %q, collision should be retried internally", second.ID)
	}
}

func TestHistoryOnNewSessionIsEmpty(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	meta, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	records, err := store.History(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("len(records) = %d, want 0", len(records))
	}
}

func TestAppendUnknownSessionReturnsNotFound(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	err := store.Append(context.Background(), "missing", QueryRecord{Kind: RecordExecute})
	if err != ErrSessionNotFound {
		t.Fatalf("error = %v, want %v", err, ErrSessionNotFound)
	}
	if _, err := store.History(context.Background(), "missing"); err != ErrSessionNotFound {
		t.Fatalf("History error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	meta, _ := store.CreateSession(context.Background())

	for i := 0; i < 10; i++ {
		record := QueryRecord{Kind: RecordExecute, SQL: fmt.Sprintf("SELECT %d", i)}
		if err := store.Append(context.Background(), meta.ID, record); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records, err := store.History(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("len(records) = %d", len(records))
	}
	for i, record := range records {
		if record.SQL != fmt.Sprintf("SELECT %d", i) {
			t.Fatalf("records[%d].SQL = %q", i, record.SQL)
		}
	}
}

func TestHistorySnapshotIsImmutable(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	meta, _ := store.CreateSession(context.Background())
	_ = store.Append(context.Background(), meta.ID, QueryRecord{Kind: RecordExecute, SQL: "SELECT 1"})

	first, err := store.History(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	_ = store.Append(context.Background(), meta.ID, QueryRecord{Kind: RecordExecute, SQL: "SELECT 2"})

	if len(first) != 1 {
		t.Fatalf("snapshot mutated, len = %d", len(first))
	}

	second, _ := store.History(context.Background(), meta.ID)
	third, _ := store.History(context.Background(), meta.ID)
	if len(second) != len(third) {
		t.Fatalf("idempotent reads differ: %d vs %d", len(second), len(third))
	}
	for i := range second {
		if second[i].SQL != third[i].SQL {
			t.Fatalf("records[%d] differ between identical reads", i)
		}
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{})
	meta, _ := store.CreateSession(context.Background())

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				record := QueryRecord{Kind: RecordExecute, SQL: fmt.Sprintf("w%d-%d", w, i)}
				if err := store.Append(context.Background(), meta.ID, record); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	records, err := store.History(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(records) != writers*perWriter {
		t.Fatalf("len(records) = %d, want %d", len(records), writers*perWriter)
	}

	// Per-writer order must survive interleaving.
	next := map[string]int{}
	for _, record := range records {
		var w, i int
		if _, err := fmt.Sscanf(record.SQL, "w%d-%d", &w, &i); err != nil {
			t.Fatalf("unexpected record %q", record.SQL)
		}
		key := fmt.Sprintf("w%d", w)
		if i != next[key] {
			t.Fatalf("writer %d out of order: got %d, want %d", w, i, next[key])
		}
		next[key]++
	}
}

func TestTTLExpiresIdleSessions(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{TTL: time.Minute})
	current := time.Unix(1000, 0).UTC()
	store.now = func() time.Time { return current }

	meta, _ := store.CreateSession(context.Background())
	current = current.Add(2 * time.Minute)

	if _, err := store.History(context.Background(), meta.ID); err != ErrSessionNotFound {
		t.Fatalf("error = %v, want %v", err, ErrSessionNotFound)
	}
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{MaxSessions: 2})
	current := time.Unix(1000, 0).UTC()
	store.now = func() time.Time { return current }

	first, _ := store.CreateSession(context.Background())
	current = current.Add(time.Second)
	_, _ = store.CreateSession(context.Background())
	current = current.Add(time.Second)
	_, _ = store.CreateSession(context.Background())

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, err := store.GetSession(context.Background(), first.ID); err != ErrSessionNotFound {
		t.Fatalf("oldest session should be evicted, error = %v", err)
	}
}
