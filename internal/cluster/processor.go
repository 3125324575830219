package cluster

import (
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/alexandradec/infostop2/internal/geo"
	"github.com/alexandradec/infostop2/internal/logger"
)

// DenStream is the streaming processor: it ingests batches, routes each
// coarse-group summary point through the merge/insert decision, advances
// the logical clock and runs periodic maintenance. One instance supports a
// single synchronous caller; run one instance per partition key for
// concurrent ingestion.
type DenStream struct {
	params Params
	tp     int64 // maintenance period in ticks, 0 = never

	oracle DistanceOracle
	seeder Seeder

	snapshots SnapshotStore
	key       string

	store          *Store
	clock          int64
	initialized    bool
	removeOutliers bool
}

// Option configures optional DenStream collaborators.
type Option func(*DenStream) error

// WithSnapshots persists the full clusterer state under key after every
// batch, and restores any existing state for that key at construction.
func WithSnapshots(store SnapshotStore, key string) Option {
	return func(ds *DenStream) error {
		if store == nil || key == "" {
			return errors.New().WithMessage(errors.ErrInvalidArgument,
				"snapshot store and key are both required")
		}
		ds.snapshots = store
		ds.key = key
		return nil
	}
}

// WithoutOutlierRemoval disables pruning of weak outlier clusters during
// maintenance. Demotion of weak potential clusters still happens.
func WithoutOutlierRemoval() Option {
	return func(ds *DenStream) error {
		ds.removeOutliers = false
		return nil
	}
}

// New constructs a processor. When a snapshot store is configured and holds
// state for the key, that state is restored; a missing key behaves exactly
// like fresh initialization. Load and decode failures propagate so the
// caller can decide between aborting and resetting.
func New(params Params, oracle DistanceOracle, seeder Seeder, opts ...Option) (*DenStream, error) {
	errFactory := errors.New()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "distance oracle is required")
	}
	if seeder == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "seeder is required")
	}

	ds := &DenStream{
		params:         params,
		tp:             params.maintenancePeriod(),
		oracle:         oracle,
		seeder:         seeder,
		store:          newStore(),
		removeOutliers: true,
	}

	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}

	if ds.snapshots != nil {
		state, ok, err := ds.snapshots.Load(ds.key)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := ds.Restore(state); err != nil {
				return nil, err
			}
			logger.Debug().
				Str("key", ds.key).
				Int64("clock", ds.clock).
				Int("potential", len(ds.store.potential)).
				Int("outlier", len(ds.store.outlier)).
				Msg("Restored clusterer state")
		}
	}

	return ds, nil
}

// Store exposes the micro-cluster collections for inspection.
func (ds *DenStream) Store() *Store {
	return ds.store
}

// Clock returns the current logical tick.
func (ds *DenStream) Clock() int64 {
	return ds.clock
}

// Initialized reports whether the first-ever batch has been absorbed.
func (ds *DenStream) Initialized() bool {
	return ds.initialized
}

// PartialFit ingests one batch and returns one assignment per input point,
// in input order. The batch is all-or-nothing: any failure aborts it with
// no partial results and no retries.
//
// The first-ever batch seeds the initial generation: one fresh potential
// cluster per coarse group, every raw point inserted sequentially, clock
// untouched. Every later batch is re-partitioned by the seeder and fed
// through the streaming core at per-group granularity - one (median, count)
// summary point per coarse group, never per raw point.
func (ds *DenStream) PartialFit(batch []Point) ([]Assignment, error) {
	errFactory := errors.New()

	if len(batch) == 0 {
		return nil, errFactory.New(ErrEmptyBatch)
	}

	coords := make([]geo.Coordinate, len(batch))
	for i, p := range batch {
		coords[i] = p.Coordinate
	}

	labels, err := ds.seeder.FitPredict(coords)
	if err != nil {
		return nil, errFactory.Wrap(ErrSeederFailed, err)
	}
	if len(labels) != len(batch) {
		return nil, errFactory.WithData(ErrSeederFailed, struct {
			Points int
			Labels int
		}{Points: len(batch), Labels: len(labels)})
	}

	// Group point indices per coarse label, in first-encounter order.
	order := make([]int, 0)
	members := make(map[int][]int)
	for i, l := range labels {
		if _, seen := members[l]; !seen {
			order = append(order, l)
		}
		members[l] = append(members[l], i)
	}

	assignments := make([]Assignment, len(batch))

	if !ds.initialized {
		for _, l := range order {
			mc := newMicroCluster(ds.params.Lambda, ds.clock)
			for _, i := range members[l] {
				if _, err := mc.Insert(ds.oracle, batch[i].Coordinate, 1, ds.clock); err != nil {
					return nil, errFactory.Wrap(ErrDistanceFailed, err)
				}
				assignments[i] = Assignment{
					PointID:        batch[i].ID,
					Representative: batch[i].Coordinate,
					ClusterID:      mc.ID(),
				}
			}
			ds.store.potential = append(ds.store.potential, mc)
		}
		ds.initialized = true
	} else {
		for _, l := range order {
			group := make([]geo.Coordinate, len(members[l]))
			for j, i := range members[l] {
				group[j] = batch[i].Coordinate
			}

			median, err := geo.Median(group)
			if err != nil {
				return nil, errFactory.Wrap(errors.ErrInternal, err)
			}

			label, err := ds.partialFitOne(median, float64(len(group)), ds.removeOutliers)
			if err != nil {
				return nil, err
			}

			for _, i := range members[l] {
				assignments[i] = Assignment{
					PointID:        batch[i].ID,
					Representative: median,
					ClusterID:      label,
				}
			}
		}
	}

	if ds.snapshots != nil {
		if err := ds.snapshots.Save(ds.key, ds.Snapshot()); err != nil {
			return nil, errFactory.Wrap(ErrSnapshotFailed, err)
		}
	}

	return assignments, nil
}

// partialFitOne is the streaming unit of work: merge one weighted summary
// point, run maintenance on period boundaries, advance the clock.
func (ds *DenStream) partialFitOne(p geo.Coordinate, count float64, removeOutliers bool) (string, error) {
	label, err := ds.merge(p, count)
	if err != nil {
		return "", err
	}

	if ds.tp > 0 && ds.clock%ds.tp == 0 {
		ds.store.adjustAll(ds.clock)
		ds.maintain(removeOutliers)
	}
	ds.clock++

	return label, nil
}

// merge implements the two-stage acceptance test against the nearest
// potential cluster, then the nearest outlier cluster, falling back to a
// brand-new outlier cluster. An outlier whose weight exceeds beta*mu as a
// result of the insertion is promoted immediately.
func (ds *DenStream) merge(p geo.Coordinate, count float64) (string, error) {
	if label, ok, err := ds.tryMerge(p, count, ds.store.potential); err != nil {
		return "", err
	} else if ok {
		return label, nil
	}

	if idx, ok, err := ds.tryMergeAt(p, count, ds.store.outlier); err != nil {
		return "", err
	} else if ok {
		mc := ds.store.outlier[idx]
		if mc.Weight() > ds.params.weightThreshold() {
			ds.store.promote(mc)
			logger.Debug().
				Str("cluster", mc.ID()).
				Float64("weight", mc.Weight()).
				Msg("Promoted outlier cluster")
		}
		return mc.ID(), nil
	}

	mc := newMicroCluster(ds.params.Lambda, ds.clock)
	label, err := mc.Insert(ds.oracle, p, count, ds.clock)
	if err != nil {
		return "", errors.New().Wrap(ErrDistanceFailed, err)
	}
	ds.store.outlier = append(ds.store.outlier, mc)

	return label, nil
}

func (ds *DenStream) tryMerge(p geo.Coordinate, count float64, clusters []*MicroCluster) (string, bool, error) {
	idx, ok, err := ds.tryMergeAt(p, count, clusters)
	if err != nil || !ok {
		return "", false, err
	}

	return clusters[idx].ID(), true, nil
}

// tryMergeAt finds the nearest cluster by center distance and attempts the
// two-stage acceptance test: unconditional when the point lies within the
// current radius, otherwise when the projected post-insertion radius stays
// within eps. On acceptance the real insertion is performed and the
// cluster's index is returned.
func (ds *DenStream) tryMergeAt(p geo.Coordinate, count float64, clusters []*MicroCluster) (int, bool, error) {
	errFactory := errors.New()

	idx, dist, err := ds.nearest(p, clusters)
	if err != nil {
		return 0, false, errFactory.Wrap(ErrDistanceFailed, err)
	}
	if idx < 0 {
		return 0, false, nil
	}

	mc := clusters[idx]

	radius, err := mc.Radius(ds.oracle)
	if err != nil {
		return 0, false, errFactory.Wrap(ErrDistanceFailed, err)
	}

	accept := dist <= radius
	if !accept {
		projected, err := mc.wouldInsert(ds.oracle, p)
		if err != nil {
			return 0, false, errFactory.Wrap(ErrDistanceFailed, err)
		}
		accept = projected <= ds.params.Eps
	}
	if !accept {
		return 0, false, nil
	}

	if _, err := mc.Insert(ds.oracle, p, count, ds.clock); err != nil {
		return 0, false, errFactory.Wrap(ErrDistanceFailed, err)
	}

	return idx, true, nil
}

// nearest returns the index of the cluster whose center is closest to p,
// under strict arg-min: the first cluster in slice order wins ties.
// Returns index -1 when clusters is empty.
func (ds *DenStream) nearest(p geo.Coordinate, clusters []*MicroCluster) (int, float64, error) {
	if len(clusters) == 0 {
		return -1, 0, nil
	}

	from := make([]geo.Coordinate, len(clusters))
	to := make([]geo.Coordinate, len(clusters))
	for i, mc := range clusters {
		from[i] = p
		to[i] = mc.Center()
	}

	dists, err := ds.oracle.Distance(from, to)
	if err != nil {
		return 0, 0, err
	}

	best := 0
	for i := 1; i < len(dists); i++ {
		if dists[i] < dists[best] {
			best = i
		}
	}

	return best, dists[best], nil
}

// maintain demotes weak potential clusters and, when requested, prunes
// outlier clusters whose decayed weight fell below their time-dependent
// decay limit. Promotion never happens here; it is merge-time only.
// Callers must have decayed all clusters to the current tick first.
func (ds *DenStream) maintain(removeOutliers bool) {
	threshold := ds.params.weightThreshold()

	kept := ds.store.potential[:0]
	for _, mc := range ds.store.potential {
		if mc.Weight() < threshold {
			ds.store.outlier = append(ds.store.outlier, mc)
			logger.Debug().
				Str("cluster", mc.ID()).
				Float64("weight", mc.Weight()).
				Msg("Demoted potential cluster")
		} else {
			kept = append(kept, mc)
		}
	}
	ds.store.potential = kept

	if !removeOutliers {
		return
	}

	denom := ds.params.decay(float64(ds.tp)) - 1
	keptOut := ds.store.outlier[:0]
	for _, mc := range ds.store.outlier {
		limit := (ds.params.decay(float64(ds.clock-mc.createdAt+ds.tp)) - 1) / denom
		if mc.Weight() >= limit {
			keptOut = append(keptOut, mc)
		} else {
			logger.Debug().
				Str("cluster", mc.ID()).
				Float64("weight", mc.Weight()).
				Float64("limit", limit).
				Msg("Pruned outlier cluster")
		}
	}
	ds.store.outlier = keptOut
}
