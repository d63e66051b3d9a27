// Package postgres implements the store contract on pgx. Upserts use
// ON CONFLICT so racing discovery runs converge without application-level
// locking.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curveScope/internal/model"
)

// Store provides Postgres persistence for the reconciliation pipeline.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pgx pool against the DSN.
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

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store expects.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			address          TEXT PRIMARY KEY,
			creator          TEXT NOT NULL DEFAULT '',
			name             TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			image_url        TEXT NOT NULL DEFAULT '',
			twitter_link     TEXT NOT NULL DEFAULT '',
			telegram_link    TEXT NOT NULL DEFAULT '',
			website_link     TEXT NOT NULL DEFAULT '',
			initial_supply   TEXT NOT NULL DEFAULT '',
			token_created_at TIMESTAMPTZ NOT NULL,
			creation_price_usd DOUBLE PRECISION,
			last_price_usd   DOUBLE PRECISION,
			market_cap_usd   DOUBLE PRECISION,
			day_volume       DOUBLE PRECISION NOT NULL DEFAULT 0,
			progress_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			graduated        BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS token_transactions (
			transaction_hash  TEXT PRIMARY KEY,
			event_type        TEXT NOT NULL,
			token_address     TEXT NOT NULL,
			counterparty      TEXT NOT NULL DEFAULT '',
			base_amount       TEXT NOT NULL DEFAULT '0',
			quote_amount      TEXT NOT NULL DEFAULT '0',
			price_per_token   TEXT NOT NULL DEFAULT '0',
			usd_price_at_time DOUBLE PRECISION,
			block_number      BIGINT NOT NULL DEFAULT 0,
			log_index         BIGINT NOT NULL DEFAULT 0,
			ts                TIMESTAMPTZ NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS token_transactions_token_ts
			ON token_transactions (token_address, ts DESC);

		CREATE TABLE IF NOT EXISTS sync_state (
			token_address     TEXT PRIMARY KEY,
			last_synced_block BIGINT NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	return err
}

// UpsertTransactions inserts or replaces records keyed by transaction hash
// and returns the count of newly inserted rows. xmax = 0 distinguishes an
// insert from a conflict update. The USD snapshot is an observation made
// when the record was first stored; a re-sync must not overwrite it with a
// later price, so the update side keeps the existing value when set.
func (s *Store) UpsertTransactions(ctx context.Context, records []model.TransactionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO token_transactions (
				transaction_hash, event_type, token_address, counterparty,
				base_amount, quote_amount, price_per_token, usd_price_at_time,
				block_number, log_index, ts, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
			ON CONFLICT (transaction_hash)
			DO UPDATE SET
				event_type = EXCLUDED.event_type,
				token_address = EXCLUDED.token_address,
				counterparty = EXCLUDED.counterparty,
				base_amount = EXCLUDED.base_amount,
				quote_amount = EXCLUDED.quote_amount,
				price_per_token = EXCLUDED.price_per_token,
				usd_price_at_time = COALESCE(token_transactions.usd_price_at_time, EXCLUDED.usd_price_at_time),
				block_number = EXCLUDED.block_number,
				log_index = EXCLUDED.log_index,
				ts = EXCLUDED.ts,
				updated_at = now()
			RETURNING (xmax = 0)
		`,
			record.TransactionHash,
			string(record.EventType),
			record.TokenAddress,
			record.Counterparty,
			record.BaseAmount,
			record.QuoteAmount,
			record.PricePerToken,
			record.UsdPriceAtTime,
			int64(record.BlockNumber),
			int64(record.LogIndex),
			record.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range records {
		var isInsert bool
		if err := br.QueryRow().Scan(&isInsert); err != nil {
			return inserted, fmt.Errorf("upsert transaction: %w", err)
		}
		if isInsert {
			inserted++
		}
	}
	return inserted, nil
}

// TransactionsByToken returns a token's records newest first.
func (s *Store) TransactionsByToken(ctx context.Context, tokenAddress string) ([]model.TransactionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_hash, event_type, token_address, counterparty,
		       base_amount, quote_amount, price_per_token, usd_price_at_time,
		       block_number, log_index, ts
		FROM token_transactions
		WHERE token_address = $1
		ORDER BY ts DESC, block_number DESC, log_index DESC
	`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	records := make([]model.TransactionRecord, 0)
	for rows.Next() {
		var record model.TransactionRecord
		var eventType string
		var blockNumber, logIndex int64
		if err := rows.Scan(
			&record.TransactionHash,
			&eventType,
			&record.TokenAddress,
			&record.Counterparty,
			&record.BaseAmount,
			&record.QuoteAmount,
			&record.PricePerToken,
			&record.UsdPriceAtTime,
			&blockNumber,
			&logIndex,
			&record.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		record.EventType = model.EventType(eventType)
		record.BlockNumber = uint64(blockNumber)
		record.LogIndex = uint64(logIndex)
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertToken inserts or refreshes a token descriptor without touching the
// cached stats columns.
func (s *Store) UpsertToken(ctx context.Context, token model.Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (
			address, creator, name, symbol, description, image_url,
			twitter_link, telegram_link, website_link, initial_supply,
			token_created_at, creation_price_usd, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
		ON CONFLICT (address)
		DO UPDATE SET
			creator = EXCLUDED.creator,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			twitter_link = EXCLUDED.twitter_link,
			telegram_link = EXCLUDED.telegram_link,
			website_link = EXCLUDED.website_link,
			initial_supply = EXCLUDED.initial_supply,
			token_created_at = EXCLUDED.token_created_at,
			creation_price_usd = COALESCE(tokens.creation_price_usd, EXCLUDED.creation_price_usd),
			updated_at = now()
	`,
		token.Address,
		token.Creator,
		token.Name,
		token.Symbol,
		token.Description,
		token.ImageURL,
		token.TwitterLink,
		token.TelegramLink,
		token.WebsiteLink,
		token.InitialSupply,
		token.CreatedAt,
		token.CreationPriceUsd,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// TokenByAddress fetches a descriptor plus cached stats.
func (s *Store) TokenByAddress(ctx context.Context, address string) (model.Token, bool, error) {
	var token model.Token
	row := s.pool.QueryRow(ctx, `
		SELECT address, creator, name, symbol, description, image_url,
		       twitter_link, telegram_link, website_link, initial_supply,
		       token_created_at, creation_price_usd, last_price_usd,
		       market_cap_usd, day_volume, progress_percent, graduated
		FROM tokens
		WHERE address = $1
	`, address)
	err := row.Scan(
		&token.Address,
		&token.Creator,
		&token.Name,
		&token.Symbol,
		&token.Description,
		&token.ImageURL,
		&token.TwitterLink,
		&token.TelegramLink,
		&token.WebsiteLink,
		&token.InitialSupply,
		&token.CreatedAt,
		&token.CreationPriceUsd,
		&token.LastPriceUsd,
		&token.MarketCapUsd,
		&token.DayVolume,
		&token.ProgressPercent,
		&token.Graduated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, false, nil
		}
		return model.Token{}, false, fmt.Errorf("query token: %w", err)
	}
	return token, true, nil
}

// UpdateTokenStats replaces the cached stats of a token.
func (s *Store) UpdateTokenStats(ctx context.Context, address string, stats model.TokenStats) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tokens SET
			last_price_usd = $2,
			market_cap_usd = $3,
			day_volume = $4,
			progress_percent = $5,
			graduated = $6,
			updated_at = now()
		WHERE address = $1
	`,
		address,
		stats.LastPriceUsd,
		stats.MarketCapUsd,
		stats.DayVolume,
		stats.ProgressPercent,
		stats.Graduated,
	)
	if err != nil {
		return fmt.Errorf("update token stats: %w", err)
	}
	return nil
}

// LoadSyncState returns the last synced block for a token.
func (s *Store) LoadSyncState(ctx context.Context, tokenAddress string) (uint64, bool, error) {
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_synced_block FROM sync_state WHERE token_address = $1`, tokenAddress)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query sync state: %w", err)
	}
	return uint64(last), true, nil
}

// SaveSyncState upserts the last synced block for a token.
func (s *Store) SaveSyncState(ctx context.Context, tokenAddress string, lastBlock uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (token_address, last_synced_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (token_address) DO UPDATE
		SET last_synced_block = EXCLUDED.last_synced_block, updated_at = now()
	`, tokenAddress, int64(lastBlock))
	if err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}
