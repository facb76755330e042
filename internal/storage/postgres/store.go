package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexAdapter/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pools (
	network            TEXT        NOT NULL,
	pool_address       TEXT        NOT NULL,
	token0             TEXT        NOT NULL,
	token1             TEXT        NOT NULL,
	fee                BIGINT      NOT NULL DEFAULT 0,
	tick_spacing       INTEGER     NOT NULL DEFAULT 0,
	created_block      BIGINT,
	created_ts         BIGINT,
	created_tx         TEXT,
	creator            TEXT,
	refined            BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network, pool_address)
)`

// upsertPoolSQL keeps refined fee and tick spacing over placeholder values.
const upsertPoolSQL = `
INSERT INTO pools (
	network, pool_address, token0, token1, fee, tick_spacing,
	created_block, created_ts, created_tx, creator, refined, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
ON CONFLICT (network, pool_address)
DO UPDATE SET
	token0 = EXCLUDED.token0,
	token1 = EXCLUDED.token1,
	fee = CASE WHEN EXCLUDED.refined OR NOT pools.refined THEN EXCLUDED.fee ELSE pools.fee END,
	tick_spacing = CASE WHEN EXCLUDED.refined OR NOT pools.refined THEN EXCLUDED.tick_spacing ELSE pools.tick_spacing END,
	created_block = LEAST(pools.created_block, EXCLUDED.created_block),
	created_ts = COALESCE(EXCLUDED.created_ts, pools.created_ts),
	created_tx = COALESCE(EXCLUDED.created_tx, pools.created_tx),
	creator = COALESCE(EXCLUDED.creator, pools.creator),
	refined = pools.refined OR EXCLUDED.refined,
	updated_at = now()`

// Store mirrors the pool registry into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the pools table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// UpsertPools inserts or updates pool descriptors. Refined values replace
// placeholders; a known creation block is never moved later.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(upsertPoolSQL, upsertArgs(pool)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPools returns the mirrored pools of a network, used to warm the
// resolver cache on startup.
func (s *Store) LoadPools(ctx context.Context, network string) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, token0, token1, fee, tick_spacing, created_block, created_ts, created_tx, creator, refined
		FROM pools WHERE network = $1
	`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		var row poolRow
		if err := rows.Scan(&row.addr, &row.token0, &row.token1, &row.fee, &row.tickSpacing,
			&row.createdBlock, &row.createdTS, &row.createdTx, &row.creator, &row.refined); err != nil {
			return nil, err
		}
		out = append(out, row.pool(network))
	}
	return out, rows.Err()
}

// upsertArgs maps pool onto the parameters of upsertPoolSQL.
func upsertArgs(pool model.Pool) []any {
	return []any{
		pool.Network,
		pool.Address.Hex(),
		pool.Token0.Address.Hex(),
		pool.Token1.Address.Hex(),
		int64(pool.Fee),
		pool.TickSpacing,
		optionalInt(pool.CreatedAtBlock),
		optionalInt(pool.CreatedAtTimestamp),
		optionalHex(pool.CreatedAtTx),
		optionalAddress(pool.Creator),
		pool.Refined,
	}
}

type poolRow struct {
	addr, token0, token1 string
	fee                  int64
	tickSpacing          int32
	createdBlock         *int64
	createdTS            *int64
	createdTx, creator   *string
	refined              bool
}

func (r poolRow) pool(network string) model.Pool {
	p := model.Pool{
		Network:     network,
		Address:     common.HexToAddress(r.addr),
		Token0:      model.PoolToken{Address: common.HexToAddress(r.token0)},
		Token1:      model.PoolToken{Address: common.HexToAddress(r.token1)},
		Fee:         uint32(r.fee),
		TickSpacing: r.tickSpacing,
		Refined:     r.refined,
	}
	if r.createdBlock != nil {
		v := uint64(*r.createdBlock)
		p.CreatedAtBlock = &v
	}
	if r.createdTS != nil {
		v := uint64(*r.createdTS)
		p.CreatedAtTimestamp = &v
	}
	if r.createdTx != nil {
		h := common.HexToHash(*r.createdTx)
		p.CreatedAtTx = &h
	}
	if r.creator != nil {
		a := common.HexToAddress(*r.creator)
		p.Creator = &a
	}
	return p
}

func optionalInt(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func optionalHex(h *common.Hash) *string {
	if h == nil {
		return nil
	}
	s := h.Hex()
	return &s
}

func optionalAddress(a *common.Address) *string {
	if a == nil {
		return nil
	}
	s := a.Hex()
	return &s
}
