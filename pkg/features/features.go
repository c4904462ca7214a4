// Package features defines the closed taxonomy of feature kinds a patch can
// hold, the static predicates attached to each kind, and feature references
// and selections used to address patch content.
package features

import "errors"

// TimestampColumn is the name of the column that temporal geometry tables
// must carry.
const TimestampColumn = "TIMESTAMP"

// Kind identifies one of the thirteen categories of data a patch can hold.
type Kind string

// The thirteen feature kinds.
//
//   - KindData, KindMask: time- and position-dependent arrays, t x n x m x d.
//     Data is float valued, Mask is integer or boolean valued.
//   - KindScalar, KindLabel: time-dependent, position-independent arrays,
//     t x s. Scalar is float valued, Label is integer or boolean valued.
//   - KindVector: time-dependent geometry tables with a TIMESTAMP column.
//   - KindDataTimeless, KindMaskTimeless: position-dependent arrays, n x m x d.
//   - KindScalarTimeless, KindLabelTimeless: one-dimensional arrays, s.
//   - KindVectorTimeless: time-independent geometry tables.
//   - KindMetaInfo: named opaque metadata values.
//   - KindBBox: the bounding extent and CRS of the patch.
//   - KindTimestamps: the ordered timestamp sequence of the patch.
const (
	KindData           Kind = "data"
	KindMask           Kind = "mask"
	KindScalar         Kind = "scalar"
	KindLabel          Kind = "label"
	KindVector         Kind = "vector"
	KindDataTimeless   Kind = "data_timeless"
	KindMaskTimeless   Kind = "mask_timeless"
	KindScalarTimeless Kind = "scalar_timeless"
	KindLabelTimeless  Kind = "label_timeless"
	KindVectorTimeless Kind = "vector_timeless"
	KindMetaInfo       Kind = "meta_info"
	KindBBox           Kind = "bbox"
	KindTimestamps     Kind = "timestamps"
)

// ErrKindUnknown is returned when a string does not name a feature kind.
var ErrKindUnknown = errors.New("unknown feature kind")

// All lists every kind in canonical order.
var All = []Kind{
	KindData, KindMask, KindScalar, KindLabel, KindVector,
	KindDataTimeless, KindMaskTimeless, KindScalarTimeless, KindLabelTimeless,
	KindVectorTimeless, KindMetaInfo, KindBBox, KindTimestamps,
}

// validKinds is the set of recognized kind values.
var validKinds = map[Kind]bool{
	KindData: true, KindMask: true, KindScalar: true, KindLabel: true,
	KindVector: true, KindDataTimeless: true, KindMaskTimeless: true,
	KindScalarTimeless: true, KindLabelTimeless: true,
	KindVectorTimeless: true, KindMetaInfo: true, KindBBox: true,
	KindTimestamps: true,
}

var spatialKinds = map[Kind]bool{
	KindData: true, KindMask: true, KindVector: true,
	KindDataTimeless: true, KindMaskTimeless: true, KindVectorTimeless: true,
}

var temporalKinds = map[Kind]bool{
	KindData: true, KindMask: true, KindScalar: true, KindLabel: true,
	KindVector: true, KindTimestamps: true,
}

var discreteKinds = map[Kind]bool{
	KindMask: true, KindMaskTimeless: true,
	KindLabel: true, KindLabelTimeless: true,
}

var metaKinds = map[Kind]bool{
	KindMetaInfo: true, KindBBox: true, KindTimestamps: true,
}

var vectorKinds = map[Kind]bool{
	KindVector: true, KindVectorTimeless: true,
}

// kindRanks maps array kinds to the rank their arrays must have.
var kindRanks = map[Kind]int{
	KindData:           4,
	KindMask:           4,
	KindScalar:         2,
	KindLabel:          2,
	KindDataTimeless:   3,
	KindMaskTimeless:   3,
	KindScalarTimeless: 1,
	KindLabelTimeless:  1,
}

// Parse converts a string into a Kind.
// Returns ErrKindUnknown if the string names no kind.
func Parse(s string) (Kind, error) {
	k := Kind(s)
	if !validKinds[k] {
		return "", ErrKindUnknown
	}
	return k, nil
}

// Valid reports whether k is one of the thirteen kinds.
func (k Kind) Valid() bool { return validKinds[k] }

// IsSpatial reports whether the kind has a spatial component.
func (k Kind) IsSpatial() bool { return spatialKinds[k] }

// IsTemporal reports whether the kind has a time component.
func (k Kind) IsTemporal() bool { return temporalKinds[k] }

// IsTimeless reports whether the kind has neither a time component nor a
// meta role.
func (k Kind) IsTimeless() bool { return !k.IsTemporal() && !k.IsMeta() }

// IsDiscrete reports whether the kind holds discrete (integer or boolean)
// values.
func (k Kind) IsDiscrete() bool { return discreteKinds[k] }

// IsMeta reports whether the kind stores patch metadata rather than named
// entries of measurement data.
func (k Kind) IsMeta() bool { return metaKinds[k] }

// IsVector reports whether the kind holds geometry tables.
func (k Kind) IsVector() bool { return vectorKinds[k] }

// IsArray reports whether the kind holds named numeric arrays.
func (k Kind) IsArray() bool {
	_, ok := kindRanks[k]
	return ok
}

// IsScalarValued reports whether the kind degenerates to a single value on
// the patch (the bounding box and the timestamp sequence) instead of a
// named collection.
func (k Kind) IsScalarValued() bool { return k == KindBBox || k == KindTimestamps }

// Rank returns the required array rank for array kinds.
// The second return is false for non-array kinds.
func (k Kind) Rank() (int, bool) {
	r, ok := kindRanks[k]
	return r, ok
}

func (k Kind) String() string { return string(k) }
