package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/model"
)

// Schema creates the tables used by PostgresStore. Market and position
// state is stored as JSONB; fixed-point values are encoded as decimal
// strings so no precision is lost.
const Schema = `
CREATE TABLE IF NOT EXISTS markets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	market_id  TEXT NOT NULL REFERENCES markets (id),
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS positions_owner_idx ON positions (owner);

CREATE TABLE IF NOT EXISTS action_entries (
	id          TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	market_id   TEXT NOT NULL,
	owner       TEXT NOT NULL DEFAULT '',
	position_id TEXT NOT NULL DEFAULT '',
	report      JSONB NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS action_entries_market_idx ON action_entries (market_id, timestamp);
CREATE INDEX IF NOT EXISTS action_entries_owner_idx ON action_entries (owner, timestamp);
`

const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *market.Market) error {
	state, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO markets (id, name, state) VALUES ($1, $2, $3::JSONB)`,
		m.ID, m.Name, string(state),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrMarketExists, m.ID)
	}
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*market.Market, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM markets WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: market %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return decodeMarket(state)
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]*market.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT state FROM markets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []*market.Market
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		m, err := decodeMarket(state)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*market.Position, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM positions WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	var p market.Position
	if err := json.Unmarshal(state, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPositionsByOwner(ctx context.Context, owner string) ([]*market.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state FROM positions WHERE owner = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*market.Position
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var p market.Position
		if err := json.Unmarshal(state, &p); err != nil {
			return nil, err
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// CommitAction writes everything in one transaction.
func (s *PostgresStore) CommitAction(ctx context.Context, markets []*market.Market, positions []*market.Position, entry *model.ActionEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, m := range markets {
			state, err := json.Marshal(m)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx,
				`UPDATE markets SET state = $2::JSONB, updated_at = now() WHERE id = $1`,
				m.ID, string(state))
			if err != nil {
				return fmt.Errorf("update market %s: %w", m.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: market %s", ErrNotFound, m.ID)
			}
		}

		for _, p := range positions {
			if p.IsEmpty() {
				if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE id = $1`, p.ID); err != nil {
					return fmt.Errorf("delete position %s: %w", p.ID, err)
				}
				continue
			}
			state, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO positions (id, owner, market_id, state)
				 VALUES ($1, $2, $3, $4::JSONB)
				 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
				p.ID, p.Owner, p.MarketID, string(state)); err != nil {
				return fmt.Errorf("upsert position %s: %w", p.ID, err)
			}
		}

		if entry == nil {
			return nil
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO action_entries (id, action, market_id, owner, position_id, report, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6::JSONB, $7)`,
			entry.ID, entry.Action, entry.MarketID, entry.Owner, entry.PositionID,
			string(entry.Report), entry.Timestamp)
		if err != nil {
			return fmt.Errorf("insert action entry: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetActionEntriesByMarket(ctx context.Context, marketID string) ([]model.ActionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, action, market_id, owner, position_id, report, timestamp
		 FROM action_entries WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActionEntries(rows)
}

func (s *PostgresStore) GetActionEntriesByOwner(ctx context.Context, owner string) ([]model.ActionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, action, market_id, owner, position_id, report, timestamp
		 FROM action_entries WHERE owner = $1 ORDER BY timestamp`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActionEntries(rows)
}

func decodeMarket(state []byte) (*market.Market, error) {
	var m market.Market
	if err := json.Unmarshal(state, &m); err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}
	return &m, nil
}

// scanActionEntries reads pgx rows into ActionEntry slices.
func scanActionEntries(rows pgx.Rows) ([]model.ActionEntry, error) {
	var entries []model.ActionEntry
	for rows.Next() {
		var e model.ActionEntry
		var report []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.MarketID, &e.Owner, &e.PositionID,
			&report, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Report = report
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
