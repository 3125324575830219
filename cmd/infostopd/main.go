package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alexandradec/infostop2/internal/cluster"
	"github.com/alexandradec/infostop2/internal/config"
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/geo"
	"github.com/alexandradec/infostop2/internal/logger"
	"github.com/alexandradec/infostop2/internal/pid"
	"github.com/alexandradec/infostop2/internal/seed"
	"github.com/alexandradec/infostop2/internal/snapshot"
	"github.com/alexandradec/infostop2/internal/telemetry"
)

const csvFields = 3 // id, lat, lon

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		logger.SetLogLevel(logLevelFromConfig(cfg.LogLevel))
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write pidfile")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	cleanup()
}

func run(ctx context.Context) error {
	snapCfg := snapshot.DefaultConfig()
	if cfg.SnapshotDB != "" {
		snapCfg.DBPath = cfg.SnapshotDB
	}
	store, err := snapshot.NewStore(snapCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close snapshot store")
		}
	}()

	telCfg := telemetry.DefaultConfig()
	telCfg.Enabled = cfg.Telemetry
	if cfg.TelemetryDB != "" {
		telCfg.DBPath = cfg.TelemetryDB
	}
	collector, err := telemetry.NewService(telCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry collector")
		}
	}()

	ds, err := newClusterer(store)
	if err != nil {
		return err
	}

	input := os.Stdin
	if cfg.Input != "" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return errors.New().Wrap(errors.ErrInitApp, err)
		}
		defer f.Close()
		input = f
	}

	return ingest(ctx, ds, collector, input)
}

// newClusterer restores the clusterer for the configured grid key, or
// starts fresh when nothing is persisted. A corrupt snapshot aborts unless
// the operator asked for a reset.
func newClusterer(store *snapshot.Store) (*cluster.DenStream, error) {
	params := cluster.Params{
		Eps:           cfg.Eps,
		Lambda:        cfg.Lambda,
		Beta:          cfg.Beta,
		Mu:            cfg.Mu,
		MinResolution: cfg.MinResolution,
	}
	oracle := geo.NewHaversine()
	seeder := seed.NewGridDBSCAN(cfg.Eps)

	ds, err := cluster.New(params, oracle, seeder, cluster.WithSnapshots(store, cfg.GridKey))
	if err == nil {
		return ds, nil
	}
	if !errors.HasCode(err, errors.ErrStateCorrupt) || !cfg.Reset {
		return nil, err
	}

	logger.Warn().
		Str("grid_key", cfg.GridKey).
		Err(err).
		Msg("Discarding corrupt persisted state")
	if err := store.Delete(cfg.GridKey); err != nil {
		return nil, err
	}

	return cluster.New(params, oracle, seeder, cluster.WithSnapshots(store, cfg.GridKey))
}

// ingest reads id,lat,lon records and feeds them to the clusterer in
// batches of the configured size. A batch either completes entirely or the
// whole run fails; there are no partial results and no retries.
func ingest(ctx context.Context, ds *cluster.DenStream, collector telemetry.Collector, input io.Reader) error {
	errFactory := errors.New()

	reader := csv.NewReader(input)
	reader.FieldsPerRecord = csvFields

	batch := make([]cluster.Point, 0, cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Ingestion cancelled")
			return nil
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			if len(batch) > 0 {
				return processBatch(ctx, ds, collector, batch)
			}
			return nil
		}
		if err != nil {
			return errFactory.Wrap(errors.ErrMalformedInput, err)
		}

		lat, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return errFactory.WithData(errors.ErrMalformedInput, record)
		}
		lon, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return errFactory.WithData(errors.ErrMalformedInput, record)
		}

		batch = append(batch, cluster.Point{
			ID:         record[0],
			Coordinate: geo.Coordinate{Lat: lat, Lon: lon},
		})

		if len(batch) >= cfg.BatchSize {
			if err := processBatch(ctx, ds, collector, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
}

func processBatch(ctx context.Context, ds *cluster.DenStream, collector telemetry.Collector, batch []cluster.Point) error {
	before := len(ds.Store().Potential()) + len(ds.Store().Outlier())

	assignments, err := ds.PartialFit(batch)
	if err != nil {
		return err
	}

	groups := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		groups[a.ClusterID] = struct{}{}
		logger.Debug().
			Str("point", a.PointID).
			Float64("lat", a.Representative.Lat).
			Float64("lon", a.Representative.Lon).
			Str("destination", a.ClusterID).
			Msg("")
	}

	potential := len(ds.Store().Potential())
	outlier := len(ds.Store().Outlier())

	logger.Info().
		Int("points", len(batch)).
		Int("destinations", len(groups)).
		Int("potential", potential).
		Int("outlier", outlier).
		Int64("clock", ds.Clock()).
		Msg("Batch processed")

	return collector.Record(ctx, &telemetry.BatchSnapshot{
		Timestamp: time.Now(),
		GridKey:   cfg.GridKey,
		Batch: telemetry.BatchMetrics{
			Points: len(batch),
			Groups: len(groups),
		},
		Clusters: telemetry.ClusterMetrics{
			Potential: potential,
			Outlier:   outlier,
			Created:   potential + outlier - before,
		},
	})
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove pidfile")
	}
	logger.Info().Msg("Exiting...")
}

func logLevelFromConfig(level string) logger.LogLevel {
	switch config.LogLevel(level) {
	case config.LogLevelDebug:
		return logger.DebugLevel
	case config.LogLevelWarning:
		return logger.WarnLevel
	case config.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
