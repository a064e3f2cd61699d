// Package postgres stores documents as JSONB rows in a single table, one
// row per document, keyed by collection and id.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
)

type Store struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

type docRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r docRow) document() docstore.Document {
	return docstore.Document{
		ID:        r.ID,
		Data:      json.RawMessage(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func New(ctx context.Context, dsn string, pub realtime.Publisher) (*Store, error) {
	const op = "docstore.postgres.New"

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection text        NOT NULL,
			id         uuid        PRIMARY KEY,
			data       jsonb       NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS documents_collection_created_at_idx
			ON documents (collection, created_at);
		CREATE INDEX IF NOT EXISTS documents_data_idx
			ON documents USING gin (data);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ensure schema: %w", op, err)
	}

	return &Store{db: db, pub: pub}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, collection string, data any) (docstore.Document, error) {
	const op = "docstore.postgres.Create"

	raw, err := json.Marshal(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: marshal: %w", op, err)
	}

	var row docRow
	err = s.db.QueryRowxContext(
		ctx,
		`INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
		RETURNING id, data, created_at, updated_at`,
		collection, uuid.NewString(), raw,
	).StructScan(&row)

	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: insert: %w", op, err)
	}

	doc := row.document()
	s.publish(realtime.KindCreate, collection, doc)

	return doc, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	const op = "docstore.postgres.Get"

	var row docRow
	err := s.db.GetContext(
		ctx,
		&row,
		`SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2`,
		collection, id,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: select: %w", op, err)
	}

	return row.document(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data any) (docstore.Document, error) {
	const op = "docstore.postgres.Update"

	raw, err := json.Marshal(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: marshal: %w", op, err)
	}

	var row docRow
	err = s.db.QueryRowxContext(
		ctx,
		`UPDATE documents
		SET data = $3, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING id, data, created_at, updated_at`,
		collection, id, raw,
	).StructScan(&row)

	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: update: %w", op, err)
	}

	doc := row.document()
	s.publish(realtime.KindUpdate, collection, doc)

	return doc, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	const op = "docstore.postgres.Delete"

	var row docRow
	err := s.db.QueryRowxContext(
		ctx,
		`DELETE FROM documents
		WHERE collection = $1 AND id = $2
		RETURNING id, data, created_at, updated_at`,
		collection, id,
	).StructScan(&row)

	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}

	s.publish(realtime.KindDelete, collection, row.document())

	return nil
}

func (s *Store) DeleteMany(ctx context.Context, collection string, ids []string) ([]string, error) {
	const op = "docstore.postgres.DeleteMany"

	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := s.db.QueryxContext(
		ctx,
		`DELETE FROM documents
		WHERE collection = $1 AND id = ANY($2)
		RETURNING id, data, created_at, updated_at`,
		collection, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: delete: %w", op, err)
	}
	defer rows.Close()

	deleted := []string{}
	docs := []docstore.Document{}
	for rows.Next() {
		var row docRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		deleted = append(deleted, row.ID)
		docs = append(docs, row.document())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	for _, doc := range docs {
		s.publish(realtime.KindDelete, collection, doc)
	}

	return deleted, nil
}

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, int, error) {
	const op = "docstore.postgres.List"

	where := []string{"collection = $1"}
	args := []any{collection}

	for _, f := range q.Filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return nil, 0, fmt.Errorf("%s: bad filter field %q", op, f.Field)
		}

		switch f.Op {
		case docstore.OpEqual:
			args = append(args, fmt.Sprint(f.Value))
			where = append(where, fmt.Sprintf("data->>'%s' = $%d", f.Field, len(args)))
		case docstore.OpNotEqual:
			args = append(args, fmt.Sprint(f.Value))
			where = append(where, fmt.Sprintf("(data->>'%s') IS DISTINCT FROM $%d", f.Field, len(args)))
		case docstore.OpContains:
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return nil, 0, fmt.Errorf("%s: marshal filter value: %w", op, err)
			}
			args = append(args, string(raw))
			where = append(where, fmt.Sprintf("data->'%s' @> $%d::jsonb", f.Field, len(args)))
		default:
			return nil, 0, fmt.Errorf("%s: unsupported filter op %q", op, f.Op)
		}
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := s.db.GetContext(
		ctx,
		&total,
		"SELECT COUNT(*) FROM documents WHERE "+whereSQL,
		args...,
	); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	orderParts := []string{}
	for _, ord := range q.OrderBy {
		dir := "ASC"
		if ord.Desc {
			dir = "DESC"
		}
		if ord.Field == docstore.FieldCreatedAt {
			orderParts = append(orderParts, "created_at "+dir)
			continue
		}
		if !fieldNamePattern.MatchString(ord.Field) {
			return nil, 0, fmt.Errorf("%s: bad order field %q", op, ord.Field)
		}
		orderParts = append(orderParts, fmt.Sprintf("data->>'%s' %s", ord.Field, dir))
	}
	orderParts = append(orderParts, "id ASC")

	query := "SELECT id, data, created_at, updated_at FROM documents WHERE " +
		whereSQL + " ORDER BY " + strings.Join(orderParts, ", ")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var row docRow
		if err := rows.StructScan(&row); err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		docs = append(docs, row.document())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", op, err)
	}

	return docs, total, nil
}

func (s *Store) publish(kind realtime.Kind, collection string, doc docstore.Document) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(realtime.Event{Kind: kind, Collection: collection, Document: doc})
}
