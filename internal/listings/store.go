package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

// DefaultBatchSize is the page size used when none is given.
const DefaultBatchSize = 500

// keyset pagination on the text form of id, so uuid and serial keys both work
const publishedPageSQL = `SELECT to_jsonb(l)
FROM listings l
WHERE l.status = 'published' AND l.id::text > $1
ORDER BY l.id::text
LIMIT $2`

// Querier is the part of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads listing rows for the bulk sync.
type Store struct {
	db Querier
}

func NewStore(db Querier) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EachPublished pages through published listings in id order and calls fn
// once per page. An error from fn stops the walk.
func (s *Store) EachPublished(ctx context.Context, batchSize int, fn func(batch []events.Row) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cursor := ""
	for {
		batch, err := s.page(ctx, cursor, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		next := batch[len(batch)-1].ID()
		if next == "" || next == cursor {
			return errors.New("listings: page ended on a row without id")
		}
		cursor = next
	}
}

func (s *Store) page(ctx context.Context, after string, limit int) ([]events.Row, error) {
	rows, err := s.db.Query(ctx, publishedPageSQL, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	batch := make([]events.Row, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return batch, nil
}

// decodeRow keeps numbers as json.Number, the same shape webhook rows have.
func decodeRow(raw []byte) (events.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row events.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode listing row: %w", err)
	}
	return row, nil
}
