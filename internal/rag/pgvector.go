package rag

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PgvectorConfig holds connection parameters for the Postgres backend.
type PgvectorConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	// Table is the fragments table name (default: document_fragments).
	Table string

	// VectorSize is the embedding dimensionality of the vector column.
	VectorSize int
}

// fragmentRow maps one fragment to a Postgres row.
type fragmentRow struct {
	ID            string          `gorm:"primaryKey;type:uuid"`
	OwnerID       string          `gorm:"index;not null"`
	DocumentID    string          `gorm:"index;not null"`
	Filename      string          `gorm:"not null"`
	FragmentIndex int             `gorm:"not null"`
	Text          string          `gorm:"type:text;not null"`
	Embedding     pgvector.Vector `gorm:"not null"`
}

// scoredRow is a fragmentRow with its cosine similarity to the query.
type scoredRow struct {
	fragmentRow
	Similarity float64
}

// PgvectorStore implements VectorStore on Postgres with the pgvector
// extension.
type PgvectorStore struct {
	db    *gorm.DB
	table string
}

// NewPgvectorStore opens the database and creates the extension, table and
// indexes if they do not exist.
func NewPgvectorStore(ctx context.Context, cfg *PgvectorConfig) (*PgvectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN must be set")
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("pgvector: vector size must be set")
	}
	if cfg.Table == "" {
		cfg.Table = "document_fragments"
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to open database: %w", err)
	}

	s := &PgvectorStore{db: db, table: cfg.Table}
	if err := s.migrate(ctx, cfg.VectorSize); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id             UUID PRIMARY KEY,
			owner_id       TEXT NOT NULL,
			document_id    TEXT NOT NULL,
			filename       TEXT NOT NULL,
			fragment_index INTEGER NOT NULL,
			text           TEXT NOT NULL,
			embedding      vector(%d) NOT NULL
		)`, s.table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_owner_doc_idx ON %[1]s (owner_id, document_id)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)`, s.table),
	}
	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("pgvector: migrate: %w", err)
		}
	}
	return nil
}

// Upsert inserts points, replacing rows with the same id.
func (s *PgvectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]fragmentRow, len(points))
	for i, p := range points {
		rows[i] = fragmentRow{
			ID:            p.ID,
			OwnerID:       p.OwnerID,
			DocumentID:    p.DocumentID,
			Filename:      p.Filename,
			FragmentIndex: p.Index,
			Text:          p.Text,
			Embedding:     pgvector.NewVector(p.Vector),
		}
	}
	err := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("pgvector: upsert failed: %w", err)
	}
	return nil
}

// Search orders the owner's rows by cosine distance. The owner predicate is
// part of the SQL query.
func (s *PgvectorStore) Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]Result, error) {
	query := pgvector.NewVector(vector)

	var rows []scoredRow
	err := s.db.WithContext(ctx).
		Table(s.table).
		Select("*, 1 - (embedding <=> ?) AS similarity", query).
		Where("owner_id = ?", ownerID).
		Order(gorm.Expr("embedding <=> ?", query)).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector: search failed: %w", err)
	}

	results := make([]Result, len(rows))
	for i, r := range rows {
		results[i] = Result{
			OwnerID:    r.OwnerID,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Index:      r.FragmentIndex,
			Text:       r.Text,
			Score:      float32(r.Similarity),
		}
	}
	return results, nil
}

// DeleteByDocument removes the document's rows. Zero affected rows is success.
func (s *PgvectorStore) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("owner_id = ? AND document_id = ?", ownerID, documentID).
		Delete(&fragmentRow{}).Error
	if err != nil {
		return fmt.Errorf("pgvector: delete failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PgvectorStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PgvectorStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
