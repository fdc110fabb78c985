package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/natija-hub/results-engine/internal/domain/record"
	"github.com/natija-hub/results-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecordStore implements record.Store against the students table written by
// the import pipeline. All methods are reads.
type RecordStore struct {
	conn *Connection
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(conn *Connection) *RecordStore {
	return &RecordStore{conn: conn}
}

const recordColumns = `
	id, student_id, name, school_name, administration, region,
	educational_stage_id, class_name, subjects, average, created_at, updated_at
`

// FetchAll returns the full current snapshot of records.
func (r *RecordStore) FetchAll(ctx context.Context) ([]*record.StudentRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM students", recordColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, storeError("FetchAll", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// FetchByFilter returns records matching the filter scope.
func (r *RecordStore) FetchByFilter(ctx context.Context, filter record.Filter) ([]*record.StudentRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM students", recordColumns)
	where, args := filterClause(filter)
	query += where

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("FetchByFilter", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// FetchByID returns the first record with the given seating number.
func (r *RecordStore) FetchByID(ctx context.Context, studentID string) (*record.StudentRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM students
		WHERE student_id = $1
		ORDER BY educational_stage_id, region
		LIMIT 1
	`, recordColumns)

	row := r.conn.QueryRow(ctx, query, studentID)
	rec, err := scanRecord(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, storeError("FetchByID", err)
	}
	return rec, nil
}

// Count returns the number of records in the current snapshot.
func (r *RecordStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, storeError("Count", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.StudentRecord, error) {
	var (
		rec          record.StudentRecord
		schoolName   *string
		admin        *string
		region       *string
		className    *string
		subjectsJSON []byte
	)

	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.Name,
		&schoolName,
		&admin,
		&region,
		&rec.StageID,
		&className,
		&subjectsJSON,
		&rec.StoredAverage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if schoolName != nil {
		rec.SchoolName = *schoolName
	}
	if admin != nil {
		rec.Administration = *admin
	}
	if region != nil {
		rec.Region = *region
	}
	if className != nil {
		rec.ClassName = *className
	}
	if len(subjectsJSON) > 0 {
		if err := json.Unmarshal(subjectsJSON, &rec.Subjects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subjects: %w", err)
		}
	}
	return &rec, nil
}

func (r *RecordStore) scanRecords(rows pgx.Rows) ([]*record.StudentRecord, error) {
	records := make([]*record.StudentRecord, 0, 1024)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("scan", err)
	}
	return records, nil
}

// filterClause builds the WHERE clause for a record filter.
func filterClause(filter record.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.StageID != "" {
		args = append(args, filter.StageID)
		conds = append(conds, fmt.Sprintf("educational_stage_id = $%d", len(args)))
	}
	if filter.Region != "" {
		args = append(args, filter.Region)
		conds = append(conds, fmt.Sprintf("region = $%d", len(args)))
	}
	if filter.Administration != "" {
		args = append(args, filter.Administration)
		conds = append(conds, fmt.Sprintf("administration = $%d", len(args)))
	}
	if filter.School != "" {
		args = append(args, filter.School)
		conds = append(conds, fmt.Sprintf("school_name = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// storeError maps low-level failures onto the domain's store errors so the
// retry policy can classify them.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		return shared.WrapError("store", op, shared.ErrTimeout, "record store request timed out", err)
	}
	return shared.WrapError("store", op, shared.ErrServiceUnavailable, "record store query failed", err)
}
