package shardsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	apperrors "github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/postgres"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS search_shards (
	kind    TEXT  NOT NULL,
	key     TEXT  NOT NULL,
	payload BYTEA NOT NULL,
	PRIMARY KEY (kind, key)
)`

// Postgres serves shards stored in the search_shards table.
type Postgres struct {
	client *postgres.Client
}

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{client: client}
}

func (p *Postgres) Name() string { return "postgres" }

// EnsureSchema creates the shard table if it is missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.client.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating search_shards: %w", err)
	}
	return nil
}

func (p *Postgres) Fetch(ctx context.Context, ref shard.Ref) ([]byte, error) {
	var payload []byte
	err := p.client.DB.QueryRowContext(ctx,
		`SELECT payload FROM search_shards WHERE kind = $1 AND key = $2`,
		string(ref.Kind), ref.Key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, apperrors.ErrShardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", apperrors.ErrSourceUnavailable, ref, err)
	}
	return payload, nil
}

// Load copies every shard in refs from src into the table in one
// transaction, replacing existing rows.
func (p *Postgres) Load(ctx context.Context, src Source, refs []shard.Ref) (int, error) {
	loaded := 0
	err := p.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_shards (kind, key, payload) VALUES ($1, $2, $3)
			ON CONFLICT (kind, key) DO UPDATE SET payload = EXCLUDED.payload`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, ref := range refs {
			data, err := src.Fetch(ctx, ref)
			if err != nil {
				return fmt.Errorf("reading %s: %w", ref, err)
			}
			if _, err := stmt.ExecContext(ctx, string(ref.Kind), ref.Key, data); err != nil {
				return fmt.Errorf("storing %s: %w", ref, err)
			}
			loaded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return loaded, nil
}
