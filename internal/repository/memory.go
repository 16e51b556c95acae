package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"notevault-server/internal/domain"
)

// MemoryStore keeps notes and users in process memory with the same revision
// and uniqueness rules as the CouchDB repositories.
type MemoryStore struct {
	mu     sync.Mutex
	seq    int64
	notes  map[string]*domain.Note
	users  map[string]*domain.User
	claims map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes:  make(map[string]*domain.Note),
		users:  make(map[string]*domain.User),
		claims: make(map[string]string),
	}
}

func (s *MemoryStore) Notes() NoteRepository {
	return &memoryNoteRepository{store: s}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepository{store: s}
}

func (s *MemoryStore) nextRev() string {
	s.seq++
	return fmt.Sprintf("%d-mem", s.seq)
}

func copyNote(n *domain.Note, withChanges bool) *domain.Note {
	c := *n
	c.Changes = nil
	if withChanges && len(n.Changes) > 0 {
		c.Changes = append([]domain.ChangeEntry(nil), n.Changes...)
	}
	return &c
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

type memoryNoteRepository struct {
	store *MemoryStore
}

func (r *memoryNoteRepository) Create(_ context.Context, note *domain.Note) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[note.ID]; exists {
		return ErrRevisionConflict
	}

	note.Type = domain.DocTypeNote
	note.Rev = s.nextRev()
	s.notes[note.ID] = copyNote(note, true)

	return nil
}

func (r *memoryNoteRepository) FindByID(_ context.Context, id string) (*domain.Note, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyNote(note, true), nil
}

func (r *memoryNoteRepository) ListByOwner(_ context.Context, ownerID string, status domain.NoteStatus) ([]*domain.Note, error) {
	return r.filter(func(n *domain.Note) bool {
		return n.OwnerID == ownerID && n.Status == status
	}), nil
}

func (r *memoryNoteRepository) Search(_ context.Context, ownerID, query string) ([]*domain.Note, error) {
	needle := strings.ToLower(query)

	return r.filter(func(n *domain.Note) bool {
		if n.OwnerID != ownerID || n.Status != domain.NoteStatusVisible {
			return false
		}
		return strings.Contains(strings.ToLower(n.Title), needle) ||
			strings.Contains(strings.ToLower(n.Description), needle)
	}), nil
}

func (r *memoryNoteRepository) Update(_ context.Context, note *domain.Note) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.notes[note.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Rev != note.Rev {
		return ErrRevisionConflict
	}

	note.Rev = s.nextRev()
	s.notes[note.ID] = copyNote(note, true)

	return nil
}

func (r *memoryNoteRepository) filter(keep func(*domain.Note) bool) []*domain.Note {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var notes []*domain.Note
	for _, n := range s.notes {
		if keep(n) {
			notes = append(notes, copyNote(n, false))
		}
	}

	return notes
}

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkClaims(user); err != nil {
		return err
	}

	user.Type = domain.DocTypeUser
	user.Rev = s.nextRev()
	s.users[user.ID] = copyUser(user)
	s.claims[claimDocID("email", user.Email)] = user.ID
	s.claims[claimDocID("username", user.Username)] = user.ID

	return nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(user), nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.claims[claimDocID("email", email)]
	if !ok {
		return nil, ErrNotFound
	}

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyUser(user), nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Rev != user.Rev {
		return ErrRevisionConflict
	}
	if err := s.checkClaims(user); err != nil {
		return err
	}

	delete(s.claims, claimDocID("email", current.Email))
	delete(s.claims, claimDocID("username", current.Username))
	s.claims[claimDocID("email", user.Email)] = user.ID
	s.claims[claimDocID("username", user.Username)] = user.ID

	user.Type = domain.DocTypeUser
	user.Rev = s.nextRev()
	s.users[user.ID] = copyUser(user)

	return nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	delete(s.users, id)
	delete(s.claims, claimDocID("email", user.Email))
	delete(s.claims, claimDocID("username", user.Username))

	return copyUser(user), nil
}

// checkClaims must be called with s.mu held.
func (s *MemoryStore) checkClaims(user *domain.User) error {
	if owner, taken := s.claims[claimDocID("email", user.Email)]; taken && owner != user.ID {
		return ErrEmailTaken
	}
	if owner, taken := s.claims[claimDocID("username", user.Username)]; taken && owner != user.ID {
		return ErrUsernameTaken
	}
	return nil
}
