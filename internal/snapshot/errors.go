package snapshot

import "github.com/alexandradec/infostop2/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("snapshot_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("snapshot_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("snapshot_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("snapshot_schema_migration_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("snapshot_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// State Errors. Corrupt is distinct from absent: a missing grid key is
	// a normal fresh-initialization signal, never an error.
	ErrStateCorrupt = errors.ErrStateCorrupt
)
