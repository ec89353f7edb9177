package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/orchestrator"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/order"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/strategy"
)

// StrategyStore keeps strategy records and their execution journal in SQLite.
type StrategyStore struct {
	db *sql.DB
}

var _ orchestrator.Store = (*StrategyStore)(nil)

// Strategies returns the store backed by d.
func (d *Database) Strategies() *StrategyStore {
	return &StrategyStore{db: d.DB}
}

// Save upserts rec.
func (s *StrategyStore) Save(ctx context.Context, rec strategy.Record) error {
	params, err := json.Marshal(nonNil(rec.Parameters))
	if err != nil {
		return fmt.Errorf("marshal parameters for %s: %w", rec.ID, err)
	}
	meta, err := json.Marshal(nonNil(rec.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", rec.ID, err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	status := rec.Status
	if status == "" {
		status = strategy.StatusPending
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, name, strategy_type, parameters, enabled, status, last_error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy_type = excluded.strategy_type,
			parameters = excluded.parameters,
			enabled = excluded.enabled,
			status = excluded.status,
			last_error = excluded.last_error,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.Type, string(params), rec.Enabled, string(status), rec.LastError, string(meta), created.UTC().Format(time.RFC3339Nano), updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert strategy %s: %w", rec.ID, err)
	}
	return nil
}

const selectStrategy = `SELECT id, name, strategy_type, parameters, enabled, status, last_error, metadata, created_at, updated_at FROM strategies`

// Get loads one record; orchestrator.ErrNotFound when absent.
func (s *StrategyStore) Get(ctx context.Context, id string) (strategy.Record, error) {
	row := s.db.QueryRowContext(ctx, selectStrategy+` WHERE id = ?`, id)
	rec, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.Record{}, orchestrator.ErrNotFound
	}
	return rec, err
}

// List returns all records ordered by id.
func (s *StrategyStore) List(ctx context.Context) ([]strategy.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectStrategy+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	defer rows.Close()

	out := []strategy.Record{}
	for rows.Next() {
		rec, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AppendExecution adds exec to the strategy's journal.
func (s *StrategyStore) AppendExecution(ctx context.Context, strategyID string, exec order.Execution) error {
	payload, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", exec.OrderID, err)
	}
	var avg sql.NullString
	if exec.AvgPrice != nil {
		avg = sql.NullString{String: exec.AvgPrice.String(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO strategy_executions (strategy_id, order_id, symbol, side, status, quantity, filled_quantity, avg_price, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strategyID, exec.OrderID, exec.Symbol, string(exec.Side), string(exec.Status),
		exec.Quantity.String(), exec.FilledQuantity.String(), avg, string(payload))
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", exec.OrderID, err)
	}
	return nil
}

// Executions returns the newest journal entries of a strategy first.
func (s *StrategyStore) Executions(ctx context.Context, strategyID string, limit int) ([]order.Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM strategy_executions
		WHERE strategy_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	out := []order.Execution{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var exec order.Execution
		if err := json.Unmarshal([]byte(payload), &exec); err != nil {
			return nil, fmt.Errorf("decode execution: %w", err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStrategy(sc scanner) (strategy.Record, error) {
	var (
		rec              strategy.Record
		params, meta     string
		status           string
		created, updated string
	)
	if err := sc.Scan(&rec.ID, &rec.Name, &rec.Type, &params, &rec.Enabled, &status, &rec.LastError, &meta, &created, &updated); err != nil {
		return strategy.Record{}, err
	}
	if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
		return strategy.Record{}, fmt.Errorf("decode parameters for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return strategy.Record{}, fmt.Errorf("decode metadata for %s: %w", rec.ID, err)
	}
	rec.Status = strategy.Status(status)
	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return strategy.Record{}, fmt.Errorf("decode created_at for %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return strategy.Record{}, fmt.Errorf("decode updated_at for %s: %w", rec.ID, err)
	}
	return rec, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
