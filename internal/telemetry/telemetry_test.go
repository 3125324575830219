package telemetry_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/telemetry"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(ts time.Time) *telemetry.BatchSnapshot {
	return &telemetry.BatchSnapshot{
		Timestamp: ts,
		GridKey:   "grid-1",
		Batch:     telemetry.BatchMetrics{Points: 512, Groups: 3},
		Clusters:  telemetry.ClusterMetrics{Potential: 2, Outlier: 1, Created: 1},
	}
}

func TestServiceDisabledIsNoop(t *testing.T) {
	collector, err := telemetry.NewService(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, collector.Record(context.Background(), sampleSnapshot(time.Now())))
	assert.NoError(t, collector.Close())
}

func TestServiceRecordsBatches(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, collector.Record(context.Background(), sampleSnapshot(now)))
	require.NoError(t, collector.Record(context.Background(), sampleSnapshot(now.Add(time.Second))))
	require.NoError(t, collector.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM batches`).Scan(&count))
	assert.Equal(t, 2, count)

	var points, groups int
	require.NoError(t, db.QueryRow(`
        SELECT points, groups_seeded FROM batches WHERE timestamp = ? AND grid_key = ?
    `, now.Unix(), "grid-1").Scan(&points, &groups))
	assert.Equal(t, 512, points)
	assert.Equal(t, 3, groups)
}

func TestServiceRecordUpsertsSameTimestamp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer collector.Close()

	now := time.Now()
	first := sampleSnapshot(now)
	require.NoError(t, collector.Record(context.Background(), first))

	second := sampleSnapshot(now)
	second.Batch.Points = 9
	require.NoError(t, collector.Record(context.Background(), second))

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count, points int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), points FROM batches`).Scan(&count, &points))
	assert.Equal(t, 1, count)
	assert.Equal(t, 9, points)
}

func TestServiceRecordNilSnapshot(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer collector.Close()

	err = collector.Record(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrInvalidSnapshot))
}

func TestServiceRecordCancelledContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	collector, err := telemetry.NewService(telemetry.Config{Enabled: true, DBPath: dbPath})
	require.NoError(t, err)
	defer collector.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = collector.Record(ctx, sampleSnapshot(time.Now()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrOperationTimeout))
}

func TestServiceEnabledRequiresDBPath(t *testing.T) {
	_, err := telemetry.NewService(telemetry.Config{Enabled: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrInvalidConfig))
}
