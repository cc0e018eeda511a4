package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Machine names the state machine a Transition record belongs to.
type Machine string

const (
	MachineSupervisor   Machine = "supervisor"
	MachineSubscription Machine = "subscription"
)

// Transition is one recorded state change.
type Transition struct {
	ID         int64
	Machine    Machine
	EntityID   string
	FromState  string
	ToState    string
	Detail     map[string]any
	OccurredAt time.Time
}

// ListOpts bounds and filters a List query.
type ListOpts struct {
	Machine  Machine
	EntityID string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Store records state-machine transitions using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Log appends one state transition with an optional JSONB detail map.
func (s *Store) Log(ctx context.Context, machine Machine, entityID, fromState, toState string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("audit: marshal transition detail: %w", err)
	}

	const query = `INSERT INTO state_transitions (machine, entity_id, from_state, to_state, detail)
VALUES ($1, $2, $3, $4, $5)`
	_, err = s.pool.Exec(ctx, query, string(machine), entityID, fromState, toState, detailJSON)
	if err != nil {
		return fmt.Errorf("audit: log transition %s %s->%s: %w", entityID, fromState, toState, err)
	}
	return nil
}

// List returns recorded transitions matching opts, most recent first.
func (s *Store) List(ctx context.Context, opts ListOpts) ([]Transition, error) {
	query := `SELECT id, machine, entity_id, from_state, to_state, detail, occurred_at
FROM state_transitions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Machine != "" {
		query += fmt.Sprintf(" AND machine = $%d", argIdx)
		args = append(args, string(opts.Machine))
		argIdx++
	}
	if opts.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, opts.EntityID)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY occurred_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var machine string
		var detailJSON []byte

		if err := rows.Scan(&t.ID, &machine, &t.EntityID, &t.FromState, &t.ToState, &detailJSON, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("audit: scan transition: %w", err)
		}
		t.Machine = Machine(machine)

		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &t.Detail); err != nil {
				return nil, fmt.Errorf("audit: unmarshal transition detail: %w", err)
			}
		}

		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list transitions rows: %w", err)
	}
	return out, nil
}
