package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Store(ctx context.Context, snapshot *BatchSnapshot) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing telemetry repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	// Initialize schema
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) Store(ctx context.Context, snapshot *BatchSnapshot) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO batches (
            timestamp, grid_key,
            points, groups_seeded,
            potential_clusters, outlier_clusters, clusters_created
        ) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp, grid_key) DO UPDATE SET
            points = excluded.points,
            groups_seeded = excluded.groups_seeded,
            potential_clusters = excluded.potential_clusters,
            outlier_clusters = excluded.outlier_clusters,
            clusters_created = excluded.clusters_created
    `,
		snapshot.Timestamp.Unix(),
		snapshot.GridKey,
		snapshot.Batch.Points,
		snapshot.Batch.Groups,
		snapshot.Clusters.Potential,
		snapshot.Clusters.Outlier,
		snapshot.Clusters.Created,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}
