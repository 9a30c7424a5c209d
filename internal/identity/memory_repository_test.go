package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryRepositoryCreateAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, User{Username: "alice", PasswordHash: "hash-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	found, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.PasswordHash != "hash-1" || found.ID != created.ID {
		t.Fatalf("unexpected user %+v", found)
	}

	if _, err := repo.FindByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryRejectsDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, User{Username: "alice", PasswordHash: "hash-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, User{Username: "alice", PasswordHash: "hash-2"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	found, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.PasswordHash != "hash-1" {
		t.Fatalf("original record was overwritten: %+v", found)
	}
}

func TestMemoryRepositorySessionsAreSerialized(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithinSession(ctx, func(r Repository) error {
				if _, err := r.FindByUsername(ctx, "alice"); err == nil {
					return ErrUserExists
				}
				_, err := r.Create(ctx, User{Username: "alice", PasswordHash: "h"})
				return err
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one session to create the user, got %d", created)
	}
}

func TestMemoryRepositorySessionHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.WithinSession(ctx, func(Repository) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("session body should not run on a cancelled context")
	}
}
