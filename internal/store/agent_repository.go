package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weftlabs/weft/internal/registry"
)

// Agent repository errors.
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentAlreadyExists = errors.New("agent with this name already exists")
)

// AgentRecord is a stored agent profile. Profiles carry the prompt
// scaffolding and model selection; actual generation is delegated to an
// Invoker at resolve time.
type AgentRecord struct {
	ID           string
	Name         string
	Instructions string
	Model        string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentRepository handles agent profile persistence.
type AgentRepository struct {
	db *DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Create adds a new agent profile to the database.
func (r *AgentRepository) Create(ctx context.Context, rec *AgentRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, instructions, model, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Name,
		rec.Instructions,
		rec.Model,
		string(metadataJSON),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAgentAlreadyExists
		}
		return fmt.Errorf("failed to insert agent: %w", err)
	}

	return nil
}

// Get retrieves an agent profile by ID.
func (r *AgentRepository) Get(ctx context.Context, id string) (*AgentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, instructions, model, metadata_json, created_at, updated_at
		FROM agents WHERE id = ?
	`, id)

	return scanAgent(row)
}

// GetByName retrieves an agent profile by name.
func (r *AgentRepository) GetByName(ctx context.Context, name string) (*AgentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, instructions, model, metadata_json, created_at, updated_at
		FROM agents WHERE name = ?
	`, name)

	return scanAgent(row)
}

// List retrieves all agent profiles ordered by name.
func (r *AgentRepository) List(ctx context.Context) ([]*AgentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, instructions, model, metadata_json, created_at, updated_at
		FROM agents ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var records []*AgentRecord
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return records, nil
}

// Update updates an existing agent profile.
func (r *AgentRepository) Update(ctx context.Context, rec *AgentRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	rec.UpdatedAt = time.Now().UTC()

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE agents SET
			name = ?,
			instructions = ?,
			model = ?,
			metadata_json = ?,
			updated_at = ?
		WHERE id = ?
	`,
		rec.Name,
		rec.Instructions,
		rec.Model,
		string(metadataJSON),
		rec.UpdatedAt.Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAgentAlreadyExists
		}
		return fmt.Errorf("failed to update agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAgentNotFound
	}

	return nil
}

// Delete removes an agent profile by ID.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAgentNotFound
	}

	return nil
}

func scanAgent(scanner interface {
	Scan(...any) error
}) (*AgentRecord, error) {
	var rec AgentRecord
	var metadataJSON sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Instructions,
		&rec.Model,
		&metadataJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata)
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}

	return &rec, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Invoker produces generation output for a stored agent profile.
type Invoker interface {
	Generate(ctx context.Context, rec *AgentRecord, req registry.GenerateRequest) (*registry.GenerateResult, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, rec *AgentRecord, req registry.GenerateRequest) (*registry.GenerateResult, error)

// Generate calls the function.
func (f InvokerFunc) Generate(ctx context.Context, rec *AgentRecord, req registry.GenerateRequest) (*registry.GenerateResult, error) {
	return f(ctx, rec, req)
}

// StoredAgents exposes stored agent profiles as an agent source. Lookup
// tries the profile ID first, then the profile name.
type StoredAgents struct {
	repo    *AgentRepository
	invoker Invoker
}

// Agents returns an agent source backed by this repository. The invoker
// performs generation for resolved profiles.
func (r *AgentRepository) Agents(invoker Invoker) *StoredAgents {
	return &StoredAgents{repo: r, invoker: invoker}
}

// Agent looks up a stored profile by ID or name. A missing profile
// reports (nil, false, nil) so callers can fall through to other sources.
func (s *StoredAgents) Agent(ctx context.Context, id string) (registry.Agent, bool, error) {
	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrAgentNotFound) {
		rec, err = s.repo.GetByName(ctx, id)
	}
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &storedAgent{rec: rec, invoker: s.invoker}, true, nil
}

type storedAgent struct {
	rec     *AgentRecord
	invoker Invoker
}

func (a *storedAgent) ID() string { return a.rec.ID }

func (a *storedAgent) Tools() map[string]registry.Tool { return nil }

func (a *storedAgent) Generate(ctx context.Context, req registry.GenerateRequest) (*registry.GenerateResult, error) {
	if a.invoker == nil {
		return nil, fmt.Errorf("no invoker configured for stored agent %q", a.rec.Name)
	}
	if req.Instructions == "" {
		req.Instructions = a.rec.Instructions
	}
	return a.invoker.Generate(ctx, a.rec, req)
}
