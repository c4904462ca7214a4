package raster

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Op is an elementwise reduction applied across a group of equally shaped
// arrays.
type Op string

// Supported reductions. Mean and Median always produce Float64 arrays;
// Min and Max preserve the input dtype.
const (
	OpMin    Op = "min"
	OpMax    Op = "max"
	OpMean   Op = "mean"
	OpMedian Op = "median"
)

// ErrBoolReduce is returned when a reduction is applied to boolean arrays.
var ErrBoolReduce = errors.New("cannot reduce boolean arrays")

// ErrUnknownOp is returned for an unrecognized reduction name.
var ErrUnknownOp = errors.New("unknown reduction")

// Reduce applies op elementwise across arrays of identical shape and dtype.
// For float arrays NaN values are treated as missing and excluded from the
// statistic; a position that is NaN in every input stays NaN.
func Reduce(op Op, arrays []*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, ErrEmptyInput
	}
	first := arrays[0]
	for _, a := range arrays[1:] {
		if a.dtype != first.dtype {
			return nil, fmt.Errorf("%w: %s vs %s", ErrDTypeMismatch, first.dtype, a.dtype)
		}
		if !a.SameShape(first) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, first.shape, a.shape)
		}
	}
	if first.dtype == Bool {
		return nil, ErrBoolReduce
	}
	switch op {
	case OpMin, OpMax, OpMean, OpMedian:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}

	n := first.Size()
	values := make([]float64, 0, len(arrays))
	out := make([]float64, n)
	for pos := 0; pos < n; pos++ {
		values = values[:0]
		for _, a := range arrays {
			var v float64
			if a.dtype == Float64 {
				v = a.f[pos]
			} else {
				v = float64(a.i[pos])
			}
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		out[pos] = reduceValues(op, values)
	}

	// Min and Max keep the dtype of their inputs; Mean and Median are
	// float-valued statistics even over integers.
	if first.dtype == Int64 && (op == OpMin || op == OpMax) {
		data := make([]int64, n)
		for pos, v := range out {
			data[pos] = int64(v)
		}
		return NewInt64(first.Shape(), data)
	}
	return NewFloat64(first.Shape(), out)
}

func reduceValues(op Op, values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	switch op {
	case OpMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case OpMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case OpMean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case OpMedian:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return math.NaN()
}
