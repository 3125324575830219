package geo

import "github.com/alexandradec/infostop2/internal/errors"

const (
	ErrLengthMismatch = errors.ErrorCode("geo_length_mismatch")
)
