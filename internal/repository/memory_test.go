package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"notevault-server/internal/domain"
)

func TestMemoryNoteRepository_UpdateRequiresCurrentRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Notes()

	note := &domain.Note{ID: "n1", OwnerID: "u1", Title: "a", Description: "b", Status: domain.NoteStatusVisible}
	if err := repo.Create(ctx, note); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, _ := repo.FindByID(ctx, "n1")
	second, _ := repo.FindByID(ctx, "n1")

	first.Title = "first"
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	second.Title = "second"
	if err := repo.Update(ctx, second); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Update() with stale revision error = %v, want ErrRevisionConflict", err)
	}

	stored, _ := repo.FindByID(ctx, "n1")
	if stored.Title != "first" {
		t.Errorf("stored title = %q, want %q", stored.Title, "first")
	}
}

func TestMemoryNoteRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Notes()

	note := &domain.Note{
		ID:      "n1",
		OwnerID: "u1",
		Status:  domain.NoteStatusVisible,
		Changes: []domain.ChangeEntry{{Title: "a", Description: "b", Timestamp: time.Now()}},
	}
	repo.Create(ctx, note)

	got, _ := repo.FindByID(ctx, "n1")
	got.Changes = append(got.Changes, domain.ChangeEntry{Title: "x"})
	got.Title = "mutated"

	again, _ := repo.FindByID(ctx, "n1")
	if len(again.Changes) != 1 || again.Title != "" {
		t.Errorf("repository state leaked through returned pointer: %+v", again)
	}
}

func TestMemoryNoteRepository_ListAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Notes()

	repo.Create(ctx, &domain.Note{ID: "1", OwnerID: "u1", Title: "Groceries", Description: "milk", Status: domain.NoteStatusVisible,
		Changes: []domain.ChangeEntry{{Title: "Groceries"}}})
	repo.Create(ctx, &domain.Note{ID: "2", OwnerID: "u1", Title: "Work", Description: "buy MILK for office", Status: domain.NoteStatusVisible})
	repo.Create(ctx, &domain.Note{ID: "3", OwnerID: "u1", Title: "Old milk", Description: "x", Status: domain.NoteStatusHidden})
	repo.Create(ctx, &domain.Note{ID: "4", OwnerID: "u2", Title: "milk", Description: "y", Status: domain.NoteStatusVisible})

	visible, err := repo.ListByOwner(ctx, "u1", domain.NoteStatusVisible)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("ListByOwner() returned %d notes, want 2", len(visible))
	}
	for _, n := range visible {
		if n.Changes != nil {
			t.Errorf("ListByOwner() must not project history, note %s has %d entries", n.ID, len(n.Changes))
		}
	}

	found, err := repo.Search(ctx, "u1", "Milk")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Search() returned %d notes, want 2 (hidden and foreign notes excluded)", len(found))
	}
}

func TestMemoryUserRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Users()

	if err := repo.Create(ctx, &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		user *domain.User
		want error
	}{
		{"same email different case", &domain.User{ID: "u2", Username: "bob", Email: "ALICE@example.com"}, ErrEmailTaken},
		{"same username", &domain.User{ID: "u3", Username: "Alice", Email: "other@example.com"}, ErrUsernameTaken},
		{"distinct", &domain.User{ID: "u4", Username: "carol", Email: "carol@example.com"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	carol, _ := repo.FindByEmail(ctx, "carol@example.com")
	carol.Email = "alice@example.com"
	if err := repo.Update(ctx, carol); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Update() onto a taken email error = %v, want ErrEmailTaken", err)
	}

	if _, err := repo.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByEmail() after delete error = %v, want ErrNotFound", err)
	}

	carol, _ = repo.FindByID(ctx, "u4")
	carol.Email = "alice@example.com"
	if err := repo.Update(ctx, carol); err != nil {
		t.Errorf("Update() onto a released email error = %v", err)
	}
}
