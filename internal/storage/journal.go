package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/shopspring/decimal"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

// OrderJournal is the durable record of order lifecycle in SQLite. Every
// transition is appended to the transitions table; terminal orders are
// additionally snapshotted so they stay queryable across restarts.
//
// Signing-key material, encrypted or not, is never written here.
type OrderJournal struct {
	db *sql.DB
}

// NewOrderJournal opens (or creates) a journal database with WAL mode enabled.
func NewOrderJournal(dbPath string) (*OrderJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			from_state INTEGER NOT NULL,
			to_state INTEGER NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			ts INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			input_mint TEXT NOT NULL,
			output_mint TEXT NOT NULL,
			target_price TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount INTEGER NOT NULL,
			slippage_bps INTEGER NOT NULL,
			tip_lamports INTEGER NOT NULL,
			state INTEGER NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}

	return &OrderJournal{db: db}, nil
}

// Transition is one recorded lifecycle step.
type Transition struct {
	OrderID string
	From    domain.State
	To      domain.State
	Reason  string
	Ts      int64 // Unix Microseconds
}

// RecordTransition appends one lifecycle step.
func (j *OrderJournal) RecordTransition(orderID string, from, to domain.State, reason string, ts time.Time) error {
	_, err := j.db.Exec(
		"INSERT INTO transitions (order_id, from_state, to_state, reason, ts) VALUES (?, ?, ?, ?, ?)",
		orderID, int(from), int(to), reason, ts.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// RecordTerminal upserts the terminal snapshot of an order.
func (j *OrderJournal) RecordTerminal(o domain.Order) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
			(order_id, input_mint, output_mint, target_price, direction,
			 amount, slippage_bps, tip_lamports, state, failure_reason,
			 created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			state=excluded.state,
			failure_reason=excluded.failure_reason,
			resolved_at=excluded.resolved_at`,
		o.ID, o.InputMint, o.OutputMint, o.TargetPrice.String(), o.Trigger.String(),
		int64(o.Amount), int(o.SlippageBps), int64(o.TipLamports), int(o.State),
		o.FailureReason, o.CreatedAt.UnixMicro(), o.ResolvedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

// LoadTransitions returns all recorded steps for an order, oldest first.
func (j *OrderJournal) LoadTransitions(ctx context.Context, orderID string) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT order_id, from_state, to_state, reason, ts FROM transitions WHERE order_id = ? ORDER BY id ASC",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var tr Transition
		var from, to int
		if err := rows.Scan(&tr.OrderID, &from, &to, &tr.Reason, &tr.Ts); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.From = domain.State(from)
		tr.To = domain.State(to)
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return transitions, nil
}

// LoadTerminal returns the persisted snapshot of a resolved order.
func (j *OrderJournal) LoadTerminal(ctx context.Context, orderID string) (domain.Order, error) {
	var o domain.Order
	var targetPrice, direction string
	var amount, tip, createdAt, resolvedAt int64
	var slippage, state int

	err := j.db.QueryRowContext(ctx, `
		SELECT order_id, input_mint, output_mint, target_price, direction,
		       amount, slippage_bps, tip_lamports, state, failure_reason,
		       created_at, resolved_at
		FROM orders WHERE order_id = ?`, orderID,
	).Scan(&o.ID, &o.InputMint, &o.OutputMint, &targetPrice, &direction,
		&amount, &slippage, &tip, &state, &o.FailureReason,
		&createdAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to load order: %w", err)
	}

	o.TargetPrice, err = decimal.NewFromString(targetPrice)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to parse stored price: %w", err)
	}
	o.Trigger, err = domain.ParseTrigger(direction)
	if err != nil {
		return domain.Order{}, err
	}
	o.Amount = uint64(amount)
	o.SlippageBps = uint16(slippage)
	o.TipLamports = uint64(tip)
	o.State = domain.State(state)
	o.CreatedAt = time.UnixMicro(createdAt)
	o.ResolvedAt = time.UnixMicro(resolvedAt)
	return o, nil
}

// Close closes the database connection.
func (j *OrderJournal) Close() error {
	return j.db.Close()
}
