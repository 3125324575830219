package telemetry

import (
	"database/sql"

	"github.com/alexandradec/infostop2/internal/errors"
)

// InitSchema initializes the database schema for batch telemetry data
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS batches (
            timestamp INTEGER NOT NULL,
            grid_key TEXT NOT NULL,
            points INTEGER NOT NULL,
            groups_seeded INTEGER NOT NULL,
            potential_clusters INTEGER NOT NULL,
            outlier_clusters INTEGER NOT NULL,
            clusters_created INTEGER NOT NULL,
            PRIMARY KEY (timestamp, grid_key)
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
