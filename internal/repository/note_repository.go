package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"notevault-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	// FindByID returns the full document, history and revision included.
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	// ListByOwner returns the owner's notes in the given status, without history.
	ListByOwner(ctx context.Context, ownerID string, status domain.NoteStatus) ([]*domain.Note, error)
	// Search matches query case-insensitively against title or description of
	// the owner's visible notes, without history.
	Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error)
	// Update writes note conditionally on note.Rev and refreshes it on success.
	// A stale revision yields ErrRevisionConflict.
	Update(ctx context.Context, note *domain.Note) error
}

// summaryFields is the projection used by list queries; it leaves out changes.
var summaryFields = []string{"id", "type", "owner_id", "title", "description", "status", "created_at", "updated_at"}

type noteRepository struct {
	client *kivik.Client
	dbName string
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{
		client: client,
		dbName: dbName,
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	db := r.client.DB(r.dbName)

	note.Type = domain.DocTypeNote
	rev, err := db.Put(ctx, noteDocID(note.ID), note)
	if err != nil {
		return classify("create note", err)
	}

	note.Rev = rev
	return nil
}

func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	db := r.client.DB(r.dbName)

	var note domain.Note
	if err := db.Get(ctx, noteDocID(id)).ScanDoc(&note); err != nil {
		return nil, classify("find note", err)
	}

	if note.Type != domain.DocTypeNote {
		return nil, ErrNotFound
	}

	return &note, nil
}

func (r *noteRepository) ListByOwner(ctx context.Context, ownerID string, status domain.NoteStatus) ([]*domain.Note, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":     domain.DocTypeNote,
			"owner_id": ownerID,
			"status":   status,
		},
		"fields": summaryFields,
		"limit":  findLimit,
	}

	notes, err := r.find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	return notes, nil
}

func (r *noteRepository) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	pattern := "(?i)" + regexp.QuoteMeta(query)

	mango := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":     domain.DocTypeNote,
			"owner_id": ownerID,
			"status":   domain.NoteStatusVisible,
			"$or": []interface{}{
				map[string]interface{}{"title": map[string]interface{}{"$regex": pattern}},
				map[string]interface{}{"description": map[string]interface{}{"$regex": pattern}},
			},
		},
		"fields": summaryFields,
		"limit":  findLimit,
	}

	notes, err := r.find(ctx, mango)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}

	return notes, nil
}

func (r *noteRepository) Update(ctx context.Context, note *domain.Note) error {
	if note.Rev == "" {
		return errors.New("failed to update note: missing revision")
	}

	db := r.client.DB(r.dbName)

	rev, err := db.Put(ctx, noteDocID(note.ID), note)
	if err != nil {
		return classify("update note", err)
	}

	note.Rev = rev
	return nil
}

func (r *noteRepository) find(ctx context.Context, query map[string]interface{}) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(ctx, query)
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.ScanDoc(&note); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}
