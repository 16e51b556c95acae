package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"notevault-server/internal/domain"
	"notevault-server/internal/repository"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotePublisher receives an event after every successful note mutation.
type NotePublisher interface {
	PublishNoteEvent(ownerID string, event *domain.NoteEvent)
}

type NoteService struct {
	repo      repository.NoteRepository
	publisher NotePublisher
	logger    *zap.SugaredLogger
	attempts  uint
}

func NewNoteService(repo repository.NoteRepository, publisher NotePublisher, logger *zap.SugaredLogger, attempts uint) *NoteService {
	if attempts == 0 {
		attempts = 1
	}
	return &NoteService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		attempts:  attempts,
	}
}

func (s *NoteService) List(ctx context.Context, ownerID string) ([]*domain.NoteResponse, error) {
	notes, err := s.repo.ListByOwner(ctx, ownerID, domain.NoteStatusVisible)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	return summaries(notes), nil
}

func (s *NoteService) GetByID(ctx context.Context, ownerID, noteID string) (*domain.NoteResponse, error) {
	note, err := s.loadVisible(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	return domain.NewNoteResponse(note, false), nil
}

func (s *NoteService) Search(ctx context.Context, ownerID, query string) ([]*domain.NoteResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	notes, err := s.repo.Search(ctx, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, ErrNoNotesFound
	}

	return summaries(notes), nil
}

func (s *NoteService) History(ctx context.Context, ownerID, noteID string) ([]domain.ChangeEntry, error) {
	note, err := s.loadVisible(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	history := make([]domain.ChangeEntry, len(note.Changes))
	copy(history, note.Changes)
	return history, nil
}

func (s *NoteService) Create(ctx context.Context, ownerID string, req *domain.NoteContentRequest) (*domain.NoteResponse, error) {
	title, description, err := content(req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	note := &domain.Note{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      domain.NoteStatusVisible,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	note.Changes = []domain.ChangeEntry{note.Snapshot(now)}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.publish(ownerID, domain.NoteEventCreated, note)

	return domain.NewNoteResponse(note, true), nil
}

// AppendHistory records an extra history entry without touching the note's
// current content.
func (s *NoteService) AppendHistory(ctx context.Context, ownerID, noteID string, req *domain.NoteContentRequest) (*domain.NoteResponse, error) {
	title, description, err := content(req)
	if err != nil {
		return nil, err
	}

	note, err := s.mutate(ctx, ownerID, noteID, func(n *domain.Note, now time.Time) error {
		if n.IsHidden() {
			return ErrNoteDeleted
		}
		n.Changes = append(n.Changes, domain.ChangeEntry{Title: title, Description: description, Timestamp: now})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ownerID, domain.NoteEventHistoryAppended, note)

	return domain.NewNoteResponse(note, true), nil
}

// Update snapshots the current content into the history and then overwrites it.
func (s *NoteService) Update(ctx context.Context, ownerID, noteID string, req *domain.NoteContentRequest) (*domain.NoteResponse, error) {
	title, description, err := content(req)
	if err != nil {
		return nil, err
	}

	note, err := s.mutate(ctx, ownerID, noteID, func(n *domain.Note, now time.Time) error {
		if n.IsHidden() {
			return ErrNoteDeleted
		}
		n.Changes = append(n.Changes, n.Snapshot(now))
		n.Title = title
		n.Description = description
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ownerID, domain.NoteEventUpdated, note)

	return domain.NewNoteResponse(note, true), nil
}

func (s *NoteService) Delete(ctx context.Context, ownerID, noteID string) (*domain.NoteResponse, error) {
	note, err := s.mutate(ctx, ownerID, noteID, func(n *domain.Note, _ time.Time) error {
		if n.IsHidden() {
			return ErrNoteDeleted
		}
		n.Status = domain.NoteStatusHidden
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ownerID, domain.NoteEventDeleted, note)

	return domain.NewNoteResponse(note, true), nil
}

// HideAllForOwner soft-deletes every visible note of an owner and reports how
// many were hidden.
func (s *NoteService) HideAllForOwner(ctx context.Context, ownerID string) (int, error) {
	notes, err := s.repo.ListByOwner(ctx, ownerID, domain.NoteStatusVisible)
	if err != nil {
		return 0, fmt.Errorf("failed to list notes: %w", err)
	}

	hidden := 0
	for _, n := range notes {
		_, err := s.Delete(ctx, ownerID, n.ID)
		switch {
		case err == nil:
			hidden++
		case errors.Is(err, ErrNoteDeleted), errors.Is(err, ErrNoteNotFound):
		default:
			return hidden, err
		}
	}

	return hidden, nil
}

// mutate runs a read-modify-write cycle against the current revision of a
// note, re-reading and re-applying fn when a concurrent writer got there first.
func (s *NoteService) mutate(ctx context.Context, ownerID, noteID string, fn func(*domain.Note, time.Time) error) (*domain.Note, error) {
	var result *domain.Note

	err := retry.Do(
		func() error {
			note, err := s.load(ctx, ownerID, noteID)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := fn(note, now); err != nil {
				return err
			}
			note.UpdatedAt = now

			if err := s.repo.Update(ctx, note); err != nil {
				return err
			}

			result = note
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(5*time.Millisecond),
		retry.MaxDelay(200*time.Millisecond),
		retry.MaxJitter(20*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, repository.ErrRevisionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debugw("Retrying note write", "note_id", noteID, "attempt", n+1, "error", err)
		}),
	)

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, repository.ErrRevisionConflict):
		s.logger.Warnw("Giving up on contended note", "note_id", noteID, "attempts", s.attempts)
		return nil, ErrNoteBusy
	case errors.Is(err, ErrNoteNotFound), errors.Is(err, ErrNoteDeleted):
		return nil, err
	default:
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
}

// load returns an owned note regardless of status. Notes owned by someone else
// are reported as missing.
func (s *NoteService) load(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	if _, err := uuid.Parse(noteID); err != nil {
		return nil, ErrNoteNotFound
	}

	note, err := s.repo.FindByID(ctx, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}

	if note.OwnerID != ownerID {
		return nil, ErrNoteNotFound
	}

	return note, nil
}

func (s *NoteService) loadVisible(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.load(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	if note.IsHidden() {
		return nil, ErrNoteNotFound
	}
	return note, nil
}

func (s *NoteService) publish(ownerID string, eventType domain.NoteEventType, note *domain.Note) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishNoteEvent(ownerID, domain.NewNoteEvent(eventType, note))
}

func content(req *domain.NoteContentRequest) (string, string, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return "", "", ErrEmptyContent
	}
	return title, description, nil
}

func summaries(notes []*domain.Note) []*domain.NoteResponse {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})

	responses := make([]*domain.NoteResponse, 0, len(notes))
	for _, n := range notes {
		responses = append(responses, domain.NewNoteResponse(n, false))
	}
	return responses
}
