package patch

import "errors"

// Validation errors, raised at insertion time only.
var (
	ErrEmptyName         = errors.New("entry name cannot be empty")
	ErrIllegalName       = errors.New("entry name contains an illegal character")
	ErrRankMismatch      = errors.New("array rank does not match feature kind")
	ErrDiscreteType      = errors.New("discrete feature kind requires integer or boolean arrays")
	ErrMissingTimestamps = errors.New("temporal geometry table requires a timestamp column")
	ErrBadValue          = errors.New("value does not fit feature kind")
)

// Lookup errors, raised on read and delete.
var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrScalarKind    = errors.New("feature kind holds a single value, not named entries")
)

// Mutation and merge errors.
var (
	ErrBBoxRequired      = errors.New("the bounding box of a patch should never be undefined")
	ErrBBoxMismatch      = errors.New("patches have different bounding boxes")
	ErrMergeConflict     = errors.New("entries with matching timestamps have different values")
	ErrShapeMismatch     = errors.New("entries have incompatible shapes")
	ErrTimeMismatch      = errors.New("time axis length does not match the patch timestamps")
	ErrUnsupportedPolicy = errors.New("reduction policy not supported for this feature kind")
)
