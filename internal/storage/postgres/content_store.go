// Package postgres provides a Postgres-backed content store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vanadzor/cityfeed/internal/news"
)

// ContentStoreConfig controls the Postgres connection pool.
type ContentStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ContentStore implements news.ContentStore over an articles table:
//
//	CREATE TABLE articles (
//	    title        TEXT PRIMARY KEY,
//	    link         TEXT NOT NULL,
//	    media_id     TEXT,
//	    published_at TIMESTAMPTZ NOT NULL
//	);
type ContentStore struct {
	pool dbPool
}

// NewContentStore creates a Postgres-backed ContentStore using the provided config.
func NewContentStore(ctx context.Context, cfg ContentStoreConfig) (*ContentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ContentStore{pool: pool}, nil
}

// NewContentStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewContentStoreWithPool(pool dbPool) (*ContentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ContentStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ContentStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Count reports the number of stored articles.
func (s *ContentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// List returns all articles, most recent first.
func (s *ContentStore) List(ctx context.Context) ([]news.Article, error) {
	rows, err := s.pool.Query(ctx, `
SELECT title, link, media_id, published_at
FROM articles
ORDER BY published_at DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []news.Article
	for rows.Next() {
		var (
			a       news.Article
			mediaID *string
		)
		if err := rows.Scan(&a.Title, &a.Link, &mediaID, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if mediaID != nil {
			a.MediaID = *mediaID
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// Upsert replaces the article with the same title, or creates it. The insert
// is atomic match-and-replace by title, so racing writers converge to one row.
func (s *ContentStore) Upsert(ctx context.Context, article news.Article) error {
	if article.Title == "" {
		return fmt.Errorf("article title is required")
	}
	var mediaID *string
	if article.MediaID != "" {
		mediaID = &article.MediaID
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO articles (title, link, media_id, published_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (title) DO UPDATE SET
	link = EXCLUDED.link,
	media_id = EXCLUDED.media_id,
	published_at = EXCLUDED.published_at`,
		article.Title,
		article.Link,
		mediaID,
		article.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}
