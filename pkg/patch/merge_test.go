package patch

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

var (
	day1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
)

// temporalPatch builds a patch with one data entry whose axis-0 slices hold
// the given per-timestamp values over a 1x1x1 frame.
func temporalPatch(t *testing.T, timestamps []time.Time, values []float64) *Patch {
	t.Helper()
	p := New(mustBBox(t))
	p.SetTimestamps(timestamps)
	arr := mustFloat(t, []int{len(values), 1, 1, 1}, values)
	if err := p.SetEntry(features.KindData, "bands", arr); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMergeSingleInput(t *testing.T) {
	p := temporalPatch(t, []time.Time{day1, day2}, []float64{1, 2})
	if err := p.SetEntry(features.KindMetaInfo, "source", "s2"); err != nil {
		t.Fatal(err)
	}

	got, err := Merge(MergeOptions{}, p)
	if err != nil {
		t.Fatal(err)
	}
	equal, err := got.Equal(p)
	if err != nil || !equal {
		t.Errorf("merge of one patch should equal it, got (%v, %v)", equal, err)
	}
}

func TestMergeNoInputs(t *testing.T) {
	if _, err := Merge(MergeOptions{}); !errors.Is(err, ErrBadValue) {
		t.Errorf("Merge() error = %v, want ErrBadValue", err)
	}
}

func TestMergeInvalidPolicy(t *testing.T) {
	p := New(mustBBox(t))
	if _, err := Merge(MergeOptions{TimePolicy: Policy("mode")}, p); !errors.Is(err, ErrUnsupportedPolicy) {
		t.Errorf("invalid policy error = %v, want ErrUnsupportedPolicy", err)
	}
}

func TestMergeBBoxMismatch(t *testing.T) {
	a := New(mustBBox(t))
	other, _ := geo.New(5, 5, 6, 6, "EPSG:32633")
	b := New(other)
	if _, err := Merge(MergeOptions{}, a, b); !errors.Is(err, ErrBBoxMismatch) {
		t.Errorf("Merge error = %v, want ErrBBoxMismatch", err)
	}
}

func TestMergeDisjointTimestamps(t *testing.T) {
	a := temporalPatch(t, []time.Time{day1, day3}, []float64{1, 3})
	b := temporalPatch(t, []time.Time{day2}, []float64{2})

	got, err := Merge(MergeOptions{}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	ts := got.Timestamps()
	if len(ts) != 3 || !ts[0].Equal(day1) || !ts[1].Equal(day2) || !ts[2].Equal(day3) {
		t.Fatalf("merged timestamps = %v, want sorted union", ts)
	}
	value, err := got.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3}
	for i, v := range value.(*raster.Array).Float64s() {
		if v != want[i] {
			t.Errorf("merged data[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestMergeExactMatch(t *testing.T) {
	a := temporalPatch(t, []time.Time{day1}, []float64{1})
	b := temporalPatch(t, []time.Time{day1}, []float64{1})

	got, err := Merge(MergeOptions{}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Timestamps()) != 1 {
		t.Errorf("duplicate timestamp should collapse, got %v", got.Timestamps())
	}
}

func TestMergeConflict(t *testing.T) {
	a := temporalPatch(t, []time.Time{day1}, []float64{1})
	b := temporalPatch(t, []time.Time{day1}, []float64{2})

	if _, err := Merge(MergeOptions{}, a, b); !errors.Is(err, ErrMergeConflict) {
		t.Errorf("conflicting slices error = %v, want ErrMergeConflict", err)
	}
}

func TestMergeConcatenateKeepsDuplicates(t *testing.T) {
	a := temporalPatch(t, []time.Time{day1}, []float64{1})
	b := temporalPatch(t, []time.Time{day1}, []float64{2})

	got, err := Merge(MergeOptions{TimePolicy: PolicyConcatenate}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Timestamps()) != 2 {
		t.Errorf("concatenate should keep both timestamps, got %v", got.Timestamps())
	}
	value, err := got.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	if value.(*raster.Array).Shape()[0] != 2 {
		t.Errorf("concatenated time axis = %d, want 2", value.(*raster.Array).Shape()[0])
	}
}

func TestMergeMeanIgnoresNaN(t *testing.T) {
	a := temporalPatch(t, []time.Time{day1}, []float64{math.NaN()})
	b := temporalPatch(t, []time.Time{day1}, []float64{4})

	got, err := Merge(MergeOptions{TimePolicy: PolicyMean}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	value, err := got.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	if v := value.(*raster.Array).Float64s()[0]; v != 4 {
		t.Errorf("mean over [NaN 4] = %v, want 4", v)
	}
}

func TestMergeTimeAxisMismatch(t *testing.T) {
	p := New(mustBBox(t))
	p.SetTimestamps([]time.Time{day1, day2})
	arr := mustFloat(t, []int{1, 1, 1, 1}, []float64{1})
	if err := p.SetEntry(features.KindData, "bands", arr); err != nil {
		t.Fatal(err)
	}
	if _, err := Merge(MergeOptions{}, p); !errors.Is(err, ErrTimeMismatch) {
		t.Errorf("short time axis error = %v, want ErrTimeMismatch", err)
	}
}

func timelessPatch(t *testing.T, values []float64) *Patch {
	t.Helper()
	p := New(mustBBox(t))
	arr := mustFloat(t, []int{1, 1, len(values)}, values)
	if err := p.SetEntry(features.KindDataTimeless, "dem", arr); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMergeTimelessSingleSource(t *testing.T) {
	p := timelessPatch(t, []float64{7})
	got, err := Merge(MergeOptions{}, p, New(mustBBox(t)))
	if err != nil {
		t.Fatal(err)
	}
	value, err := got.GetEntry(features.KindDataTimeless, "dem")
	if err != nil {
		t.Fatal(err)
	}
	if v := value.(*raster.Array).Float64s()[0]; v != 7 {
		t.Errorf("single-source timeless entry = %v, want 7", v)
	}
}

func TestMergeTimelessConcatenate(t *testing.T) {
	a := timelessPatch(t, []float64{1, 2})
	b := timelessPatch(t, []float64{3})

	got, err := Merge(MergeOptions{TimelessPolicy: PolicyConcatenate}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	value, err := got.GetEntry(features.KindDataTimeless, "dem")
	if err != nil {
		t.Fatal(err)
	}
	arr := value.(*raster.Array)
	if arr.Shape()[2] != 3 {
		t.Errorf("concatenated feature axis = %d, want 3", arr.Shape()[2])
	}
}

func TestMergeTimelessShapeMismatch(t *testing.T) {
	a := timelessPatch(t, []float64{1, 2})
	b := timelessPatch(t, []float64{3})
	if _, err := Merge(MergeOptions{TimelessPolicy: PolicyMean}, a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("shape mismatch error = %v, want ErrShapeMismatch", err)
	}
}

func TestMergeTimelessConflict(t *testing.T) {
	a := timelessPatch(t, []float64{1})
	b := timelessPatch(t, []float64{2})
	if _, err := Merge(MergeOptions{}, a, b); !errors.Is(err, ErrMergeConflict) {
		t.Errorf("timeless conflict error = %v, want ErrMergeConflict", err)
	}
}

func TestMergeBoolUnderStatistic(t *testing.T) {
	build := func(v bool) *Patch {
		p := New(mustBBox(t))
		arr, err := raster.NewBool([]int{1, 1, 1}, []bool{v})
		if err != nil {
			t.Fatal(err)
		}
		if err := p.SetEntry(features.KindMaskTimeless, "valid", arr); err != nil {
			t.Fatal(err)
		}
		return p
	}
	_, err := Merge(MergeOptions{TimelessPolicy: PolicyMean}, build(true), build(false))
	if !errors.Is(err, ErrUnsupportedPolicy) {
		t.Errorf("bool statistic error = %v, want ErrUnsupportedPolicy", err)
	}
}

func TestMergeVectorsUnion(t *testing.T) {
	build := func(names ...string) *Patch {
		p := New(mustBBox(t))
		tbl := vector.New("EPSG:4326", "name")
		for _, n := range names {
			if err := tbl.AppendRow(vector.Row{"name": n}); err != nil {
				t.Fatal(err)
			}
		}
		if err := p.SetEntry(features.KindVectorTimeless, "fields", tbl); err != nil {
			t.Fatal(err)
		}
		return p
	}
	got, err := Merge(MergeOptions{}, build("a", "b"), build("b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	value, err := got.GetEntry(features.KindVectorTimeless, "fields")
	if err != nil {
		t.Fatal(err)
	}
	if value.(*vector.Table).Len() != 3 {
		t.Errorf("vector union rows = %d, want 3", value.(*vector.Table).Len())
	}
}

func TestMergeMetaLastWins(t *testing.T) {
	build := func(v string) *Patch {
		p := New(mustBBox(t))
		if err := p.SetEntry(features.KindMetaInfo, "source", v); err != nil {
			t.Fatal(err)
		}
		return p
	}
	got, err := Merge(MergeOptions{}, build("first"), build("last"))
	if err != nil {
		t.Fatal(err)
	}
	value, err := got.GetEntry(features.KindMetaInfo, "source")
	if err != nil {
		t.Fatal(err)
	}
	if value != "last" {
		t.Errorf("meta merge = %v, want last writer", value)
	}
}

func TestMergeSelection(t *testing.T) {
	p := temporalPatch(t, []time.Time{day1}, []float64{1})
	if err := p.SetEntry(features.KindMetaInfo, "source", "s2"); err != nil {
		t.Fatal(err)
	}

	got, err := Merge(MergeOptions{Features: features.Kinds(features.KindData)}, p)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasEntry(features.KindData, "bands") {
		t.Error("selected entry missing from merge result")
	}
	if got.Has(features.KindMetaInfo) {
		t.Error("unselected kind should be skipped")
	}
}
