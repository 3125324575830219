// Package snapshot persists full clusterer states to sqlite, one row per
// logical partition key. A missing key is indistinguishable from a fresh
// clusterer; a present-but-undecodable state is reported as corruption so
// the caller can choose between aborting and resetting.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexandradec/infostop2/internal/cluster"
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a sqlite-backed cluster.SnapshotStore.
type Store struct {
	db  *sql.DB
	cfg Config
	mu  sync.Mutex
}

// Compile-time interface check.
var _ cluster.SnapshotStore = (*Store)(nil)

func NewStore(cfg Config) (*Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// Open database with specific pragmas for better performance and safety
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Validate if schema is current, with backup if needed
	if err := ValidateAndUpdateSchema(db, cfg.DBPath); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Snapshot store initialized")

	return &Store{
		db:  db,
		cfg: cfg,
	}, nil
}

// Load returns the persisted state for key. A missing key yields ok=false
// with no error; a stored state that fails to decode yields a
// state-corruption error.
func (s *Store) Load(key string) (*cluster.State, bool, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(selectSnapshotSQL, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Key   string
			Error string
		}{
			Phase: "select_snapshot",
			Key:   key,
			Error: err.Error(),
		})
	}

	state := &cluster.State{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, false, errFactory.WithData(ErrStateCorrupt, struct {
			Key   string
			Error string
		}{
			Key:   key,
			Error: err.Error(),
		})
	}

	return state, true, nil
}

// Save upserts the full state for key.
func (s *Store) Save(key string, state *cluster.State) error {
	errFactory := errors.New()

	if state == nil {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "nil state")
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(upsertSnapshotSQL, key, string(raw), time.Now().Unix()); err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Key   string
			Error string
		}{
			Phase: "upsert_snapshot",
			Key:   key,
			Error: err.Error(),
		})
	}

	return nil
}

// Delete removes the persisted state for key, used when a caller decides to
// reset a corrupt snapshot. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE grid_key = ?`, key); err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase string
			Key   string
			Error string
		}{
			Phase: "delete_snapshot",
			Key:   key,
			Error: err.Error(),
		})
	}

	return nil
}

func (s *Store) Close() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Checkpoint WAL and cleanup on close
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	logger.Info().Msg("Snapshot store closed gracefully")

	return nil
}
