package store

import "time"

// Origin records who supplied a mapping row.
type Origin string

const (
	OriginSeed     Origin = "seed"
	OriginOperator Origin = "operator"
)

// Mapping is one row of the package-mapping table.
type Mapping struct {
	ID            int64
	SourceFamily  string
	SourcePackage string
	TargetFamily  string
	TargetPackage string
	Confidence    float64
	Origin        Origin
	UpdatedAt     time.Time
}
