package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/definition"
)

// ErrDefinitionNotFound is returned when no definition exists for an ID.
var ErrDefinitionNotFound = errors.New("workflow definition not found")

// DefinitionRecord is one stored workflow definition document.
type DefinitionRecord struct {
	ID          string
	Description string
	Document    *definition.Workflow
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefinitionRepository handles workflow definition persistence. Documents
// are stored as serialized JSON keyed by the definition ID.
type DefinitionRepository struct {
	db *DB
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(db *DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Put inserts or replaces the definition document keyed by its ID.
// created_at is preserved when the ID already exists.
func (r *DefinitionRepository) Put(ctx context.Context, wf *definition.Workflow) error {
	if wf == nil {
		return fmt.Errorf("definition is required")
	}
	if wf.ID == "" {
		return fmt.Errorf("definition id is required")
	}

	documentJSON, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO definitions (id, description, document_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			document_json = excluded.document_json,
			updated_at = excluded.updated_at
	`, wf.ID, wf.Description, string(documentJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to store definition: %w", err)
	}

	return nil
}

// Get retrieves a definition by ID.
func (r *DefinitionRepository) Get(ctx context.Context, id string) (*DefinitionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, description, document_json, created_at, updated_at
		FROM definitions WHERE id = ?
	`, id)

	return scanDefinition(row)
}

// List retrieves all stored definitions ordered by ID.
func (r *DefinitionRepository) List(ctx context.Context) ([]*DefinitionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, document_json, created_at, updated_at
		FROM definitions ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	var records []*DefinitionRecord
	for rows.Next() {
		rec, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return records, nil
}

// Delete removes a definition by ID.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM definitions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrDefinitionNotFound
	}

	return nil
}

// Definition looks up a stored definition document by ID. A missing
// record reports (nil, false, nil) so callers can fall through to other
// definition sources.
func (r *DefinitionRepository) Definition(ctx context.Context, id string) (*definition.Workflow, bool, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec.Document, true, nil
}

func scanDefinition(scanner interface {
	Scan(...any) error
}) (*DefinitionRecord, error) {
	var rec DefinitionRecord
	var documentJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(&rec.ID, &rec.Description, &documentJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	wf, err := definition.Parse([]byte(documentJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored definition %q: %w", rec.ID, err)
	}
	rec.Document = wf

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}

	return &rec, nil
}
