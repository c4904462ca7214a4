// Package raster provides the dense n-dimensional array value type stored in
// patch array collections. Arrays are rank- and dtype-tagged; the time axis,
// where present, is always axis 0.
package raster

import (
	"errors"
	"fmt"
	"math"
)

// DType identifies the element type of an array.
type DType string

// Supported element types. Discrete feature kinds require Int64 or Bool.
const (
	Float64 DType = "float64"
	Int64   DType = "int64"
	Bool    DType = "bool"
)

// Array errors.
var (
	ErrBadShape      = errors.New("invalid array shape")
	ErrBadData       = errors.New("data length does not match shape")
	ErrShapeMismatch = errors.New("array shape mismatch")
	ErrDTypeMismatch = errors.New("array dtype mismatch")
	ErrEmptyInput    = errors.New("no arrays given")
	ErrIndexRange    = errors.New("index out of range")
)

// Array is a dense n-dimensional array. Exactly one of the three backing
// slices is populated, according to the dtype.
type Array struct {
	shape []int
	dtype DType
	f     []float64
	i     []int64
	b     []bool
}

// size returns the element count implied by shape, or -1 if any dimension
// is negative.
func size(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

func checkShape(shape []int, dataLen int) error {
	n := size(shape)
	if n < 0 {
		return fmt.Errorf("%w: %v", ErrBadShape, shape)
	}
	if n != dataLen {
		return fmt.Errorf("%w: shape %v wants %d elements, got %d", ErrBadData, shape, n, dataLen)
	}
	return nil
}

// NewFloat64 creates a float array with the given shape. The data slice is
// taken over by the array, in row-major order.
func NewFloat64(shape []int, data []float64) (*Array, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Float64, f: data}, nil
}

// NewInt64 creates an integer array with the given shape.
func NewInt64(shape []int, data []int64) (*Array, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Int64, i: data}, nil
}

// NewBool creates a boolean array with the given shape.
func NewBool(shape []int, data []bool) (*Array, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &Array{shape: append([]int(nil), shape...), dtype: Bool, b: data}, nil
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int { return len(a.shape) }

// Shape returns a copy of the dimension sizes.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Size returns the total element count.
func (a *Array) Size() int { return size(a.shape) }

// Float64s returns the backing float slice in row-major order.
// It is nil unless the dtype is Float64. Callers must not modify it.
func (a *Array) Float64s() []float64 { return a.f }

// Int64s returns the backing integer slice. Callers must not modify it.
func (a *Array) Int64s() []int64 { return a.i }

// Bools returns the backing boolean slice. Callers must not modify it.
func (a *Array) Bools() []bool { return a.b }

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	c := &Array{shape: append([]int(nil), a.shape...), dtype: a.dtype}
	switch a.dtype {
	case Float64:
		c.f = append([]float64(nil), a.f...)
	case Int64:
		c.i = append([]int64(nil), a.i...)
	case Bool:
		c.b = append([]bool(nil), a.b...)
	}
	return c
}

// SameShape reports whether both arrays have identical shapes.
func (a *Array) SameShape(other *Array) bool {
	if len(a.shape) != len(other.shape) {
		return false
	}
	for i, d := range a.shape {
		if other.shape[i] != d {
			return false
		}
	}
	return true
}

// Equal reports whether both arrays have the same dtype, shape, and
// elements. NaN compares equal to NaN so that arrays containing missing
// values can still be recognized as identical.
func (a *Array) Equal(other *Array) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.dtype != other.dtype || !a.SameShape(other) {
		return false
	}
	switch a.dtype {
	case Float64:
		for i, v := range a.f {
			w := other.f[i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				return false
			}
		}
	case Int64:
		for i, v := range a.i {
			if other.i[i] != v {
				return false
			}
		}
	case Bool:
		for i, v := range a.b {
			if other.b[i] != v {
				return false
			}
		}
	}
	return true
}

// rowSize returns the element count of one slice along axis 0.
func (a *Array) rowSize() int {
	if len(a.shape) == 0 || a.shape[0] == 0 {
		return 0
	}
	return a.Size() / a.shape[0]
}

// TimeSlice returns a copy of the t-th slice along axis 0, with rank one
// lower than the source.
func (a *Array) TimeSlice(t int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("%w: rank 0 array has no time axis", ErrBadShape)
	}
	if t < 0 || t >= a.shape[0] {
		return nil, fmt.Errorf("%w: slice %d of %d", ErrIndexRange, t, a.shape[0])
	}
	rs := a.rowSize()
	c := &Array{shape: append([]int(nil), a.shape[1:]...), dtype: a.dtype}
	switch a.dtype {
	case Float64:
		c.f = append([]float64(nil), a.f[t*rs:(t+1)*rs]...)
	case Int64:
		c.i = append([]int64(nil), a.i[t*rs:(t+1)*rs]...)
	case Bool:
		c.b = append([]bool(nil), a.b[t*rs:(t+1)*rs]...)
	}
	return c, nil
}

// TakeTime returns a new array keeping only the given axis-0 indices, in
// the given order.
func (a *Array) TakeTime(idxs []int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("%w: rank 0 array has no time axis", ErrBadShape)
	}
	rs := a.rowSize()
	c := &Array{shape: append([]int{len(idxs)}, a.shape[1:]...), dtype: a.dtype}
	switch a.dtype {
	case Float64:
		c.f = make([]float64, 0, len(idxs)*rs)
	case Int64:
		c.i = make([]int64, 0, len(idxs)*rs)
	case Bool:
		c.b = make([]bool, 0, len(idxs)*rs)
	}
	for _, t := range idxs {
		if t < 0 || t >= a.shape[0] {
			return nil, fmt.Errorf("%w: slice %d of %d", ErrIndexRange, t, a.shape[0])
		}
		switch a.dtype {
		case Float64:
			c.f = append(c.f, a.f[t*rs:(t+1)*rs]...)
		case Int64:
			c.i = append(c.i, a.i[t*rs:(t+1)*rs]...)
		case Bool:
			c.b = append(c.b, a.b[t*rs:(t+1)*rs]...)
		}
	}
	return c, nil
}

// StackTime stacks equally shaped arrays along a new leading axis, so the
// result has rank one higher than the inputs.
func StackTime(slices []*Array) (*Array, error) {
	if len(slices) == 0 {
		return nil, ErrEmptyInput
	}
	first := slices[0]
	for _, s := range slices[1:] {
		if s.dtype != first.dtype {
			return nil, fmt.Errorf("%w: %s vs %s", ErrDTypeMismatch, first.dtype, s.dtype)
		}
		if !s.SameShape(first) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, first.shape, s.shape)
		}
	}
	c := &Array{shape: append([]int{len(slices)}, first.shape...), dtype: first.dtype}
	for _, s := range slices {
		switch first.dtype {
		case Float64:
			c.f = append(c.f, s.f...)
		case Int64:
			c.i = append(c.i, s.i...)
		case Bool:
			c.b = append(c.b, s.b...)
		}
	}
	return c, nil
}

// ConcatLast concatenates arrays along the last (feature) axis. All inputs
// must share dtype, rank, and every dimension except the last.
func ConcatLast(arrays []*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, ErrEmptyInput
	}
	first := arrays[0]
	rank := first.Rank()
	if rank == 0 {
		return nil, fmt.Errorf("%w: rank 0 array has no feature axis", ErrBadShape)
	}
	lastTotal := 0
	for _, a := range arrays {
		if a.dtype != first.dtype {
			return nil, fmt.Errorf("%w: %s vs %s", ErrDTypeMismatch, first.dtype, a.dtype)
		}
		if a.Rank() != rank {
			return nil, fmt.Errorf("%w: rank %d vs %d", ErrShapeMismatch, rank, a.Rank())
		}
		for d := 0; d < rank-1; d++ {
			if a.shape[d] != first.shape[d] {
				return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, first.shape, a.shape)
			}
		}
		lastTotal += a.shape[rank-1]
	}

	outer := 1
	for _, d := range first.shape[:rank-1] {
		outer *= d
	}
	shape := append(append([]int(nil), first.shape[:rank-1]...), lastTotal)
	c := &Array{shape: shape, dtype: first.dtype}
	for o := 0; o < outer; o++ {
		for _, a := range arrays {
			last := a.shape[rank-1]
			switch first.dtype {
			case Float64:
				c.f = append(c.f, a.f[o*last:(o+1)*last]...)
			case Int64:
				c.i = append(c.i, a.i[o*last:(o+1)*last]...)
			case Bool:
				c.b = append(c.b, a.b[o*last:(o+1)*last]...)
			}
		}
	}
	return c, nil
}
