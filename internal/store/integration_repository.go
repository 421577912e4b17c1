package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/integration"
)

// IntegrationRepository handles integration records and the cached tool
// catalog. It implements integration.Store: misses surface the package
// sentinels so tool lookup treats them as exhausted tiers.
type IntegrationRepository struct {
	db *DB
}

// NewIntegrationRepository creates a new IntegrationRepository.
func NewIntegrationRepository(db *DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// PutIntegration inserts or replaces the integration record for a provider.
func (r *IntegrationRepository) PutIntegration(ctx context.Context, integ *integration.Integration) error {
	if integ == nil {
		return fmt.Errorf("integration is required")
	}
	if integ.Provider == "" {
		return fmt.Errorf("integration provider is required")
	}

	authFieldsJSON, err := json.Marshal(integ.AuthFields)
	if err != nil {
		return fmt.Errorf("failed to marshal auth fields: %w", err)
	}
	headersJSON, err := json.Marshal(integ.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO integrations (provider, kind, base_url, auth_type, auth_fields_json, headers_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			kind = excluded.kind,
			base_url = excluded.base_url,
			auth_type = excluded.auth_type,
			auth_fields_json = excluded.auth_fields_json,
			headers_json = excluded.headers_json,
			updated_at = excluded.updated_at
	`,
		integ.Provider,
		string(integ.Kind),
		integ.BaseURL,
		string(integ.AuthType),
		string(authFieldsJSON),
		string(headersJSON),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store integration: %w", err)
	}

	return nil
}

// Integration retrieves the integration record for a provider.
func (r *IntegrationRepository) Integration(ctx context.Context, provider string) (*integration.Integration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT provider, kind, base_url, auth_type, auth_fields_json, headers_json
		FROM integrations WHERE provider = ?
	`, provider)

	var integ integration.Integration
	var kind, authType string
	var authFieldsJSON, headersJSON sql.NullString

	err := row.Scan(&integ.Provider, &kind, &integ.BaseURL, &authType, &authFieldsJSON, &headersJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, integration.ErrNoIntegration
		}
		return nil, fmt.Errorf("failed to scan integration: %w", err)
	}

	integ.Kind = integration.Kind(kind)
	integ.AuthType = integration.AuthType(authType)
	if authFieldsJSON.Valid && authFieldsJSON.String != "" {
		_ = json.Unmarshal([]byte(authFieldsJSON.String), &integ.AuthFields)
	}
	if headersJSON.Valid && headersJSON.String != "" {
		_ = json.Unmarshal([]byte(headersJSON.String), &integ.Headers)
	}

	return &integ, nil
}

// ListIntegrations retrieves all integration records ordered by provider.
func (r *IntegrationRepository) ListIntegrations(ctx context.Context) ([]*integration.Integration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider FROM integrations ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, fmt.Errorf("failed to scan integration row: %w", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}

	var records []*integration.Integration
	for _, provider := range providers {
		integ, err := r.Integration(ctx, provider)
		if err != nil {
			return nil, err
		}
		records = append(records, integ)
	}

	return records, nil
}

// DeleteIntegration removes the integration record for a provider.
func (r *IntegrationRepository) DeleteIntegration(ctx context.Context, provider string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM integrations WHERE provider = ?", provider)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return integration.ErrNoIntegration
	}

	return nil
}

// PutTool inserts or replaces a cached tool. The row is keyed by the
// reassembled provider_toolkit_slug id.
func (r *IntegrationRepository) PutTool(ctx context.Context, tool *integration.CachedTool) error {
	if tool == nil {
		return fmt.Errorf("tool is required")
	}
	if tool.Provider == "" || tool.Toolkit == "" || tool.Slug == "" {
		return fmt.Errorf("tool provider, toolkit and slug are required")
	}

	id := tool.ID
	if id == "" {
		id = integration.ToolID{Provider: tool.Provider, Toolkit: tool.Toolkit, Slug: tool.Slug}.String()
	}

	inputSchemaJSON, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal input schema: %w", err)
	}

	var transportJSON *string
	if tool.Transport != nil {
		buf, err := json.Marshal(tool.Transport)
		if err != nil {
			return fmt.Errorf("failed to marshal transport: %w", err)
		}
		s := string(buf)
		transportJSON = &s
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO integration_tools (id, provider, toolkit, slug, name, description, input_schema_json, transport_json, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			input_schema_json = excluded.input_schema_json,
			transport_json = excluded.transport_json,
			cached_at = excluded.cached_at
	`,
		id,
		tool.Provider,
		tool.Toolkit,
		tool.Slug,
		tool.Name,
		tool.Description,
		string(inputSchemaJSON),
		transportJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to cache tool: %w", err)
	}

	return nil
}

// CachedTool retrieves the cached metadata for a parsed tool id.
func (r *IntegrationRepository) CachedTool(ctx context.Context, id integration.ToolID) (*integration.CachedTool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, provider, toolkit, slug, name, description, input_schema_json, transport_json
		FROM integration_tools WHERE id = ?
	`, id.String())

	return scanCachedTool(row)
}

// ListTools retrieves the cached tools for a provider ordered by id. An
// empty provider lists the whole catalog.
func (r *IntegrationRepository) ListTools(ctx context.Context, provider string) ([]*integration.CachedTool, error) {
	query := `
		SELECT id, provider, toolkit, slug, name, description, input_schema_json, transport_json
		FROM integration_tools ORDER BY id
	`
	args := []any{}
	if provider != "" {
		query = `
			SELECT id, provider, toolkit, slug, name, description, input_schema_json, transport_json
			FROM integration_tools WHERE provider = ? ORDER BY id
		`
		args = append(args, provider)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached tools: %w", err)
	}
	defer rows.Close()

	var tools []*integration.CachedTool
	for rows.Next() {
		tool, err := scanCachedTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached tools: %w", err)
	}

	return tools, nil
}

// DeleteTool removes a cached tool by its parsed id.
func (r *IntegrationRepository) DeleteTool(ctx context.Context, id integration.ToolID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM integration_tools WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete cached tool: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return integration.ErrNotCached
	}

	return nil
}

func scanCachedTool(scanner interface {
	Scan(...any) error
}) (*integration.CachedTool, error) {
	var tool integration.CachedTool
	var inputSchemaJSON, transportJSON sql.NullString

	err := scanner.Scan(
		&tool.ID,
		&tool.Provider,
		&tool.Toolkit,
		&tool.Slug,
		&tool.Name,
		&tool.Description,
		&inputSchemaJSON,
		&transportJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, integration.ErrNotCached
		}
		return nil, fmt.Errorf("failed to scan cached tool: %w", err)
	}

	if inputSchemaJSON.Valid && inputSchemaJSON.String != "" {
		_ = json.Unmarshal([]byte(inputSchemaJSON.String), &tool.InputSchema)
	}
	if transportJSON.Valid && transportJSON.String != "" {
		var transport integration.Transport
		if err := json.Unmarshal([]byte(transportJSON.String), &transport); err == nil {
			tool.Transport = &transport
		}
	}

	return &tool, nil
}
