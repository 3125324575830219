package geo

import (
	"math"
	"sort"

	"github.com/alexandradec/infostop2/internal/errors"
	"gonum.org/v1/gonum/stat"
)

// EarthRadiusMeters is the WGS84 mean earth radius.
const EarthRadiusMeters = 6371008.8

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceOracle returns pairwise geodesic distances in meters between two
// parallel coordinate slices of equal length.
type DistanceOracle interface {
	Distance(a, b []Coordinate) ([]float64, error)
}

// Haversine is a DistanceOracle computing great-circle distances on the
// mean earth radius.
type Haversine struct{}

func NewHaversine() Haversine {
	return Haversine{}
}

func (Haversine) Distance(a, b []Coordinate) ([]float64, error) {
	if len(a) != len(b) {
		return nil, errors.New().WithData(ErrLengthMismatch, struct {
			LenA int
			LenB int
		}{
			LenA: len(a),
			LenB: len(b),
		})
	}

	out := make([]float64, len(a))
	for i := range a {
		out[i] = haversine(a[i], b[i])
	}

	return out, nil
}

func haversine(p, q Coordinate) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := q.Lat * math.Pi / 180
	dLat := (q.Lat - p.Lat) * math.Pi / 180
	dLon := (q.Lon - p.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Median returns the coordinate-wise median of points. The latitude and
// longitude medians are taken independently, so the result need not be one
// of the input points.
func Median(points []Coordinate) (Coordinate, error) {
	if len(points) == 0 {
		return Coordinate{}, errors.New().New(errors.ErrEmptyInput)
	}

	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	sort.Float64s(lats)
	sort.Float64s(lons)

	return Coordinate{
		Lat: stat.Quantile(0.5, stat.Empirical, lats, nil),
		Lon: stat.Quantile(0.5, stat.Empirical, lons, nil),
	}, nil
}
