package cluster

// Store holds the two ordered micro-cluster collections. Slice order
// carries no meaning beyond iteration determinism; the potential/outlier
// membership invariant (weight >= beta*mu) is enforced at maintenance
// boundaries, not after every insertion.
type Store struct {
	potential []*MicroCluster
	outlier   []*MicroCluster
}

func newStore() *Store {
	return &Store{}
}

// Potential returns the potential collection. Callers must not mutate it.
func (st *Store) Potential() []*MicroCluster {
	return st.potential
}

// Outlier returns the outlier collection. Callers must not mutate it.
func (st *Store) Outlier() []*MicroCluster {
	return st.outlier
}

// adjustAll decays every cluster in both collections to the given tick.
func (st *Store) adjustAll(time int64) {
	for _, mc := range st.potential {
		mc.Adjust(time)
	}
	for _, mc := range st.outlier {
		mc.Adjust(time)
	}
}

// promote moves the cluster from the outlier to the potential collection.
// Reports whether the cluster was found.
func (st *Store) promote(mc *MicroCluster) bool {
	for i, o := range st.outlier {
		if o == mc {
			st.outlier = append(st.outlier[:i], st.outlier[i+1:]...)
			st.potential = append(st.potential, mc)
			return true
		}
	}

	return false
}
