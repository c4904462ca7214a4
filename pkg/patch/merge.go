package patch

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

// Policy selects how colliding values combine during a merge.
type Policy string

// Supported reduction policies. The zero value requires colliding values
// to match exactly. Statistics ignore missing (NaN) values elementwise.
const (
	PolicyNone        Policy = ""
	PolicyConcatenate Policy = "concatenate"
	PolicyMin         Policy = "min"
	PolicyMax         Policy = "max"
	PolicyMean        Policy = "mean"
	PolicyMedian      Policy = "median"
)

// op maps a statistic policy onto its elementwise reduction.
func (p Policy) op() (raster.Op, bool) {
	switch p {
	case PolicyMin:
		return raster.OpMin, true
	case PolicyMax:
		return raster.OpMax, true
	case PolicyMean:
		return raster.OpMean, true
	case PolicyMedian:
		return raster.OpMedian, true
	}
	return "", false
}

func (p Policy) validate() error {
	switch p {
	case PolicyNone, PolicyConcatenate, PolicyMin, PolicyMax, PolicyMean, PolicyMedian:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedPolicy, p)
}

// MergeOptions selects which features to merge and the reduction policies
// for temporal and timeless array entries.
type MergeOptions struct {
	Features       features.Selection
	TimePolicy     Policy
	TimelessPolicy Policy
}

// Merge combines any number of patches into a new one, feature by feature.
// Bounding boxes must agree where present; the merged timestamp sequence is
// the sorted union of the inputs, with duplicates collapsed unless the time
// policy is Concatenate. Temporal array entries combine per timestamp under
// the time policy, timeless array entries under the timeless policy,
// geometry entries by row union, and metadata entries by last writer in
// input order. A feature absent from every input is skipped.
func Merge(opts MergeOptions, patches ...*Patch) (*Patch, error) {
	if len(patches) == 0 {
		return nil, fmt.Errorf("%w: no patches to merge", ErrBadValue)
	}
	if err := opts.TimePolicy.validate(); err != nil {
		return nil, err
	}
	if err := opts.TimelessPolicy.validate(); err != nil {
		return nil, err
	}

	bbox, err := mergeBBoxes(patches)
	if err != nil {
		return nil, err
	}
	out := New(bbox)
	out.timestamps = mergeTimestamps(patches, opts.TimePolicy)

	for _, ref := range selectedEntries(patches, opts.Features) {
		merged, err := mergeEntry(ref, patches, opts)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			continue
		}
		if err := out.collections[ref.Kind].Insert(ref.Name, merged); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergeBBoxes requires every present box to be value-equal and returns the
// common box, or nil when absent everywhere.
func mergeBBoxes(patches []*Patch) (*geo.BBox, error) {
	var bbox *geo.BBox
	for _, p := range patches {
		if p.bbox == nil {
			continue
		}
		if bbox == nil {
			bbox = p.bbox
			continue
		}
		if !bbox.Equal(p.bbox) {
			return nil, fmt.Errorf("%w: %s vs %s", ErrBBoxMismatch, bbox, p.bbox)
		}
	}
	return bbox, nil
}

// mergeTimestamps returns the sorted union of all input sequences. Under a
// non-concatenating policy duplicate timestamps collapse into one, matching
// the one slice kept per timestamp group.
func mergeTimestamps(patches []*Patch, timePolicy Policy) []time.Time {
	var all []time.Time
	for _, p := range patches {
		all = append(all, p.timestamps...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Before(all[j]) })
	if timePolicy == PolicyConcatenate || len(all) == 0 {
		return all
	}
	unique := all[:1]
	for _, ts := range all[1:] {
		if !ts.Equal(unique[len(unique)-1]) {
			unique = append(unique, ts)
		}
	}
	return append([]time.Time(nil), unique...)
}

// selectedEntries lists the (kind, name) pairs covered by the selection
// across all inputs: canonical kind order, first-seen name order.
func selectedEntries(patches []*Patch, sel features.Selection) []features.Ref {
	var refs []features.Ref
	for _, kind := range entryKinds {
		seen := map[string]bool{}
		for _, p := range patches {
			for _, name := range p.collections[kind].Names() {
				if seen[name] || !sel.Contains(kind, name) {
					continue
				}
				seen[name] = true
				refs = append(refs, features.Ref{Kind: kind, Name: name})
			}
		}
	}
	return refs
}

func mergeEntry(ref features.Ref, patches []*Patch, opts MergeOptions) (any, error) {
	switch {
	case ref.Kind.IsArray() && ref.Kind.IsTemporal():
		return mergeTemporalArrays(ref, patches, opts.TimePolicy)
	case ref.Kind.IsArray():
		return mergeTimelessArrays(ref, patches, opts.TimelessPolicy)
	case ref.Kind.IsVector():
		return mergeVectors(ref, patches)
	default:
		return mergeMeta(ref, patches)
	}
}

// timeSlice is one time-axis slice of a temporal entry, tagged with its own
// patch's timestamp.
type timeSlice struct {
	ts    time.Time
	order int
	slice *raster.Array
}

// mergeTemporalArrays stacks every contributing slice against its own
// patch's timestamps, sorts by timestamp keeping input order within ties,
// and joins each timestamp group under the policy.
func mergeTemporalArrays(ref features.Ref, patches []*Patch, policy Policy) (any, error) {
	var slices []timeSlice
	for _, p := range patches {
		c := p.collections[ref.Kind]
		if !c.Has(ref.Name) {
			continue
		}
		value, err := c.Get(ref.Name)
		if err != nil {
			return nil, err
		}
		arr, ok := value.(*raster.Array)
		if !ok {
			return nil, fmt.Errorf("%w: (%s, %s) is %T", ErrBadValue, ref.Kind, ref.Name, value)
		}
		if arr.Shape()[0] != len(p.timestamps) {
			return nil, fmt.Errorf("%w: (%s, %s) has %d slices over %d timestamps",
				ErrTimeMismatch, ref.Kind, ref.Name, arr.Shape()[0], len(p.timestamps))
		}
		for t, ts := range p.timestamps {
			s, err := arr.TimeSlice(t)
			if err != nil {
				return nil, err
			}
			slices = append(slices, timeSlice{ts: ts, order: len(slices), slice: s})
		}
	}
	if len(slices) == 0 {
		return nil, nil
	}
	sort.SliceStable(slices, func(i, j int) bool { return slices[i].ts.Before(slices[j].ts) })

	var joined []*raster.Array
	if policy == PolicyConcatenate {
		for _, s := range slices {
			joined = append(joined, s.slice)
		}
	} else {
		for start := 0; start < len(slices); {
			end := start + 1
			for end < len(slices) && slices[end].ts.Equal(slices[start].ts) {
				end++
			}
			group := make([]*raster.Array, 0, end-start)
			for _, s := range slices[start:end] {
				group = append(group, s.slice)
			}
			reduced, err := joinGroup(ref, group, policy, slices[start].ts)
			if err != nil {
				return nil, err
			}
			joined = append(joined, reduced)
			start = end
		}
	}

	stacked, err := raster.StackTime(joined)
	if err != nil {
		return nil, fmt.Errorf("(%s, %s): %w", ref.Kind, ref.Name, err)
	}
	return stacked, nil
}

// joinGroup reduces the slices sharing one timestamp to a single slice.
func joinGroup(ref features.Ref, group []*raster.Array, policy Policy, ts time.Time) (*raster.Array, error) {
	if policy == PolicyNone {
		for _, s := range group[1:] {
			if !group[0].Equal(s) {
				return nil, fmt.Errorf("%w: (%s, %s) at %s", ErrMergeConflict,
					ref.Kind, ref.Name, ts.Format(time.RFC3339))
			}
		}
		return group[0], nil
	}
	op, _ := policy.op()
	reduced, err := raster.Reduce(op, group)
	if err != nil {
		return nil, wrapReduceErr(ref, err)
	}
	return reduced, nil
}

func wrapReduceErr(ref features.Ref, err error) error {
	if errors.Is(err, raster.ErrBoolReduce) {
		return fmt.Errorf("%w: (%s, %s): %v", ErrUnsupportedPolicy, ref.Kind, ref.Name, err)
	}
	return fmt.Errorf("(%s, %s): %w", ref.Kind, ref.Name, err)
}

// mergeTimelessArrays copies a single source as-is and joins multiple
// sources of identical shape under the policy; Concatenate stacks along the
// feature axis.
func mergeTimelessArrays(ref features.Ref, patches []*Patch, policy Policy) (any, error) {
	var arrays []*raster.Array
	for _, p := range patches {
		c := p.collections[ref.Kind]
		if !c.Has(ref.Name) {
			continue
		}
		value, err := c.Get(ref.Name)
		if err != nil {
			return nil, err
		}
		arr, ok := value.(*raster.Array)
		if !ok {
			return nil, fmt.Errorf("%w: (%s, %s) is %T", ErrBadValue, ref.Kind, ref.Name, value)
		}
		arrays = append(arrays, arr)
	}
	switch {
	case len(arrays) == 0:
		return nil, nil
	case len(arrays) == 1:
		return arrays[0].Clone(), nil
	}

	if policy == PolicyConcatenate {
		joined, err := raster.ConcatLast(arrays)
		if err != nil {
			return nil, fmt.Errorf("(%s, %s): %w", ref.Kind, ref.Name, err)
		}
		return joined, nil
	}
	for _, a := range arrays[1:] {
		if !arrays[0].SameShape(a) {
			return nil, fmt.Errorf("%w: (%s, %s): %v vs %v", ErrShapeMismatch,
				ref.Kind, ref.Name, arrays[0].Shape(), a.Shape())
		}
	}
	if policy == PolicyNone {
		for _, a := range arrays[1:] {
			if !arrays[0].Equal(a) {
				return nil, fmt.Errorf("%w: (%s, %s)", ErrMergeConflict, ref.Kind, ref.Name)
			}
		}
		return arrays[0].Clone(), nil
	}
	op, _ := policy.op()
	reduced, err := raster.Reduce(op, arrays)
	if err != nil {
		return nil, wrapReduceErr(ref, err)
	}
	return reduced, nil
}

// mergeVectors unions rows across inputs; reduction policies do not apply
// to geometry entries.
func mergeVectors(ref features.Ref, patches []*Patch) (any, error) {
	var tables []*vector.Table
	for _, p := range patches {
		c := p.collections[ref.Kind]
		if !c.Has(ref.Name) {
			continue
		}
		value, err := c.Get(ref.Name)
		if err != nil {
			return nil, err
		}
		table, ok := value.(*vector.Table)
		if !ok {
			return nil, fmt.Errorf("%w: (%s, %s) is %T", ErrBadValue, ref.Kind, ref.Name, value)
		}
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		return nil, nil
	}
	joined, err := vector.Concat(tables)
	if err != nil {
		return nil, fmt.Errorf("(%s, %s): %w", ref.Kind, ref.Name, err)
	}
	return joined, nil
}

// mergeMeta keeps the value of the last input holding the entry.
func mergeMeta(ref features.Ref, patches []*Patch) (any, error) {
	var value any
	found := false
	for _, p := range patches {
		c := p.collections[ref.Kind]
		if !c.Has(ref.Name) {
			continue
		}
		v, err := c.Get(ref.Name)
		if err != nil {
			return nil, err
		}
		value = v
		found = true
	}
	if !found {
		return nil, nil
	}
	return value, nil
}
