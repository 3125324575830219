package cluster

import (
	"math"

	"github.com/alexandradec/infostop2/internal/errors"
)

// Params is the construction-time configuration of a clusterer. Immutable
// after construction.
type Params struct {
	// Eps is the merge radius threshold in meters.
	Eps float64
	// Lambda is the exponential forgetting rate per tick. Zero disables
	// decay and periodic maintenance.
	Lambda float64
	// Beta is the outlier-weight multiplier.
	Beta float64
	// Mu is the base weight threshold. A micro-cluster is potential when
	// its decayed weight is at least Beta*Mu.
	Mu float64
	// MinResolution is the minimum spatial resolution in meters. Reserved:
	// carried for forward compatibility, not consulted by decision logic.
	MinResolution float64
}

func (p Params) Validate() error {
	errFactory := errors.New()

	if p.Eps <= 0 {
		return errFactory.WithData(ErrInvalidParams, struct {
			Field string
			Value float64
		}{Field: "eps", Value: p.Eps})
	}
	if p.Lambda < 0 {
		return errFactory.WithData(ErrInvalidParams, struct {
			Field string
			Value float64
		}{Field: "lambda", Value: p.Lambda})
	}
	if p.Beta <= 0 {
		return errFactory.WithData(ErrInvalidParams, struct {
			Field string
			Value float64
		}{Field: "beta", Value: p.Beta})
	}
	if p.Mu <= 0 {
		return errFactory.WithData(ErrInvalidParams, struct {
			Field string
			Value float64
		}{Field: "mu", Value: p.Mu})
	}
	if p.Lambda > 0 && p.Beta*p.Mu <= 1 {
		// tp = ceil((1/lambda)*ln(beta*mu/(beta*mu-1))) is undefined
		return errFactory.WithMessage(ErrInvalidParams,
			"beta*mu must exceed 1 when lambda is positive")
	}

	return nil
}

// weightThreshold is the potential/outlier boundary.
func (p Params) weightThreshold() float64 {
	return p.Beta * p.Mu
}

// maintenancePeriod returns tp, the number of ticks between maintenance
// passes: the smallest integer >= (1/lambda)*ln(beta*mu/(beta*mu-1)).
// Returns 0 when lambda <= 0, meaning maintenance never triggers.
func (p Params) maintenancePeriod() int64 {
	if p.Lambda <= 0 {
		return 0
	}

	bm := p.Beta * p.Mu
	tp := int64(math.Ceil(math.Log(bm/(bm-1)) / p.Lambda))
	if tp < 1 {
		tp = 1
	}

	return tp
}

// decay is the forgetting function 2^(-lambda*x) over a tick interval x.
func (p Params) decay(x float64) float64 {
	return math.Pow(2, -p.Lambda*x)
}
