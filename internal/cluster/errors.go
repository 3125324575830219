package cluster

import "github.com/alexandradec/infostop2/internal/errors"

const (
	// Configuration errors
	ErrInvalidParams = errors.ErrorCode("cluster_invalid_params")

	// Input errors
	ErrEmptyBatch = errors.ErrEmptyInput

	// Collaborator errors
	ErrSeederFailed   = errors.ErrorCode("cluster_seeder_failed")
	ErrDistanceFailed = errors.ErrorCode("cluster_distance_failed")
	ErrSnapshotFailed = errors.ErrorCode("cluster_snapshot_failed")

	// State errors
	ErrInvalidState = errors.ErrStateCorrupt
)
