package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSheetTable emulates one sheet tab on top of the sheet_rows table.
// Rows are ordered by id so scans follow insertion order. Nothing is indexed
// beyond the sheet name.
type PostgresSheetTable struct {
	pool    *pgxpool.Pool
	sheet   string
	columns []string
}

// NewPostgresSheetTable returns a table bound to sheet.
func NewPostgresSheetTable(pool *pgxpool.Pool, sheet string, columns []string) *PostgresSheetTable {
	return &PostgresSheetTable{pool: pool, sheet: sheet, columns: columns}
}

func (t *PostgresSheetTable) Name() string { return t.sheet }

func (t *PostgresSheetTable) Rows(ctx context.Context) ([]Row, error) {
	const query = `SELECT id, data FROM sheet_rows WHERE sheet = $1 ORDER BY id`
	rows, err := t.pool.Query(ctx, query, t.sheet)
	if err != nil {
		return nil, fmt.Errorf("scan sheet %s: %w", t.sheet, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		values := map[string]string{}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("decode sheet %s row %d: %w", t.sheet, id, err)
		}
		out = append(out, Row{Number: int(id), Values: t.normalize(values)})
	}
	return out, rows.Err()
}

func (t *PostgresSheetTable) Append(ctx context.Context, values map[string]string) (Row, error) {
	normalized := t.normalize(values)
	data, err := json.Marshal(normalized)
	if err != nil {
		return Row{}, err
	}
	const query = `INSERT INTO sheet_rows (sheet, data) VALUES ($1, $2) RETURNING id`
	var id int64
	if err := t.pool.QueryRow(ctx, query, t.sheet, data).Scan(&id); err != nil {
		return Row{}, fmt.Errorf("append to sheet %s: %w", t.sheet, err)
	}
	return Row{Number: int(id), Values: normalized}, nil
}

func (t *PostgresSheetTable) Save(ctx context.Context, row Row) error {
	data, err := json.Marshal(t.normalize(row.Values))
	if err != nil {
		return err
	}
	const query = `UPDATE sheet_rows SET data = $1, updated_at = NOW() WHERE id = $2 AND sheet = $3 RETURNING id`
	var id int64
	if err := t.pool.QueryRow(ctx, query, data, row.Number, t.sheet).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRowNotFound
		}
		return fmt.Errorf("update sheet %s row %d: %w", t.sheet, row.Number, err)
	}
	return nil
}

func (t *PostgresSheetTable) normalize(values map[string]string) map[string]string {
	out := make(map[string]string, len(t.columns))
	for _, col := range t.columns {
		out[col] = values[col]
	}
	return out
}
