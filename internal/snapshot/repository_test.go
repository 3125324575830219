package snapshot_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alexandradec/infostop2/internal/cluster"
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/geo"
	"github.com/alexandradec/infostop2/internal/snapshot"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*snapshot.Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := snapshot.NewStore(snapshot.Config{DBPath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, dbPath
}

func sampleState() *cluster.State {
	return &cluster.State{
		Initialized: true,
		Clock:       42,
		Potential: []cluster.ClusterState{
			{
				ID:          "11111111-1111-1111-1111-111111111111",
				DecayFactor: 0.993,
				SumLat:      166.8,
				SumLon:      37.5,
				Mean:        geo.Coordinate{Lat: 55.6, Lon: 12.5},
				SumSquares:  120.5,
				Variance:    40.2,
				Weight:      3,
				Samples:     3,
				CreatedAt:   0,
				LastAdjust:  40,
				Farthest:    geo.Coordinate{Lat: 55.6003, Lon: 12.5001},
				HasFarthest: true,
			},
		},
		Outlier: []cluster.ClusterState{
			{
				ID:          "22222222-2222-2222-2222-222222222222",
				DecayFactor: 0.993,
				SumLat:      55.8,
				SumLon:      12.6,
				Mean:        geo.Coordinate{Lat: 55.8, Lon: 12.6},
				Weight:      1,
				Samples:     1,
				CreatedAt:   41,
				LastAdjust:  41,
			},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	saved := sampleState()
	require.NoError(t, store.Save("grid-1", saved))

	loaded, ok, err := store.Load("grid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, loaded)
}

func TestStoreUpsertReplacesState(t *testing.T) {
	store, _ := newTestStore(t)

	first := sampleState()
	require.NoError(t, store.Save("grid-1", first))

	second := sampleState()
	second.Clock = 99
	require.NoError(t, store.Save("grid-1", second))

	loaded, ok, err := store.Load("grid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(99), loaded.Clock)
}

func TestStoreLoadMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	state, ok, err := store.Load("never-seen")
	assert.NoError(t, err, "a missing key is not an error")
	assert.False(t, ok)
	assert.Nil(t, state)
}

func TestStoreLoadCorruptState(t *testing.T) {
	store, dbPath := newTestStore(t)
	require.NoError(t, store.Save("grid-1", sampleState()))

	// Well-formed JSON that does not decode into a state. Written out of
	// band, as the store itself never produces such a row.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE snapshots SET state = '{"clock": "later"}' WHERE grid_key = ?`, "grid-1")
	require.NoError(t, err)

	_, _, err = store.Load("grid-1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStateCorrupt))
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save("grid-1", sampleState()))

	require.NoError(t, store.Delete("grid-1"))

	_, ok, err := store.Load("grid-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete("grid-1"), "deleting an absent key is a no-op")
}

func TestStoreSaveNilState(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Save("grid-1", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestStoreKeysAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)

	a := sampleState()
	b := sampleState()
	b.Clock = 7

	require.NoError(t, store.Save("grid-a", a))
	require.NoError(t, store.Save("grid-b", b))

	loadedA, ok, err := store.Load("grid-a")
	require.NoError(t, err)
	require.True(t, ok)
	loadedB, ok, err := store.Load("grid-b")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int64(42), loadedA.Clock)
	assert.Equal(t, int64(7), loadedB.Clock)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")

	store, err := snapshot.NewStore(snapshot.Config{DBPath: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.Save("grid-1", sampleState()))
	require.NoError(t, store.Close())

	reopened, err := snapshot.NewStore(snapshot.Config{DBPath: dbPath})
	require.NoError(t, err)
	defer reopened.Close()

	loaded, ok, err := reopened.Load("grid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleState(), loaded)
}

func TestStoreInitializesSchema(t *testing.T) {
	_, dbPath := newTestStore(t)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := snapshot.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, snapshot.SchemaVersion, version)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, snapshot.DefaultConfig().Validate())

	err := snapshot.Config{}.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, snapshot.ErrInvalidDBPath))
}
