package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/natija-hub/results-engine/internal/domain/shared"
	"github.com/natija-hub/results-engine/internal/domain/stage"
)

// ══════════════════════════════════════════════════════════════════════════════
// STAGE STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StageStore implements stage.Store against the educational_stages table.
type StageStore struct {
	conn *Connection
}

// NewStageStore creates a new StageStore.
func NewStageStore(conn *Connection) *StageStore {
	return &StageStore{conn: conn}
}

const stageColumns = `
	id, name, name_en, description, icon, color, regions, display_order, is_active
`

// FetchAll returns all active stages ordered by display order.
func (s *StageStore) FetchAll(ctx context.Context) ([]*stage.Stage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM educational_stages
		WHERE is_active
		ORDER BY display_order, id
	`, stageColumns)

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, storeError("FetchAll", err)
	}
	defer rows.Close()

	stages := make([]*stage.Stage, 0, 8)
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("FetchAll", err)
	}
	return stages, nil
}

// FetchByID returns the stage with the given id.
func (s *StageStore) FetchByID(ctx context.Context, id string) (*stage.Stage, error) {
	query := fmt.Sprintf("SELECT %s FROM educational_stages WHERE id = $1", stageColumns)

	st, err := scanStage(s.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStageNotFound
		}
		return nil, storeError("FetchByID", err)
	}
	return st, nil
}

// Seed inserts the default stage set when the table is empty, so a fresh
// deployment serves the five certificate stages before the first import.
func (s *StageStore) Seed(ctx context.Context) error {
	var count int
	if err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM educational_stages").Scan(&count); err != nil {
		return storeError("Seed", err)
	}
	if count > 0 {
		return nil
	}

	query := `
		INSERT INTO educational_stages (
			id, name, name_en, description, icon, color, regions, display_order, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	for _, st := range stage.Defaults() {
		regionsJSON, err := json.Marshal(st.Regions)
		if err != nil {
			return fmt.Errorf("failed to marshal regions: %w", err)
		}
		_, err = s.conn.Exec(ctx, query,
			st.ID, st.Name, st.NameEN, st.Description, st.Icon, st.Color,
			regionsJSON, st.DisplayOrder, st.IsActive,
		)
		if err != nil {
			return storeError("Seed", err)
		}
	}
	return nil
}

func scanStage(row rowScanner) (*stage.Stage, error) {
	var (
		st          stage.Stage
		regionsJSON []byte
	)
	err := row.Scan(
		&st.ID, &st.Name, &st.NameEN, &st.Description, &st.Icon, &st.Color,
		&regionsJSON, &st.DisplayOrder, &st.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if len(regionsJSON) > 0 {
		if err := json.Unmarshal(regionsJSON, &st.Regions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal regions: %w", err)
		}
	}
	return &st, nil
}
