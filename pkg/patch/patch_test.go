package patch

import (
	"errors"
	"testing"
	"time"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
	"github.com/geostack/patchwork/pkg/raster"
)

func mustBBox(t *testing.T) *geo.BBox {
	t.Helper()
	b, err := geo.New(0, 0, 10, 10, "EPSG:32633")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSetGetScalarKinds(t *testing.T) {
	p := New(nil)
	box := mustBBox(t)

	if err := p.Set(features.KindBBox, box); err != nil {
		t.Fatal(err)
	}
	got, err := p.Get(features.KindBBox)
	if err != nil {
		t.Fatal(err)
	}
	if !got.(*geo.BBox).Equal(box) {
		t.Error("Get(bbox) should return the set box")
	}

	if err := p.Set(features.KindTimestamps, []string{"2026-01-01", "2026-02-01T12:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	ts := p.Timestamps()
	if len(ts) != 2 {
		t.Fatalf("len(timestamps) = %d, want 2", len(ts))
	}
	if !ts[0].Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamps[0] = %v", ts[0])
	}

	if err := p.Set(features.KindBBox, "not a box"); !errors.Is(err, ErrBadValue) {
		t.Errorf("bad bbox value error = %v, want ErrBadValue", err)
	}
	if err := p.Set(features.KindTimestamps, 42); !errors.Is(err, ErrBadValue) {
		t.Errorf("bad timestamps value error = %v, want ErrBadValue", err)
	}
}

func TestSetEntryMap(t *testing.T) {
	p := New(mustBBox(t))
	arr := mustFloat(t, []int{1, 1, 1, 1}, []float64{5})

	if err := p.Set(features.KindData, map[string]any{"bands": arr}); err != nil {
		t.Fatal(err)
	}
	got, err := p.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	if !got.(*raster.Array).Equal(arr) {
		t.Error("entry should round-trip through Set")
	}

	// Validation applies per entry.
	bad := mustFloat(t, []int{1}, []float64{5})
	err = p.Set(features.KindData, map[string]any{"bands": bad})
	if !errors.Is(err, ErrRankMismatch) {
		t.Errorf("Set with bad entry error = %v, want ErrRankMismatch", err)
	}
}

func TestCollectionLookupErrors(t *testing.T) {
	p := New(nil)
	if _, err := p.Collection(features.KindBBox); !errors.Is(err, ErrScalarKind) {
		t.Errorf("Collection(bbox) error = %v, want ErrScalarKind", err)
	}
	if _, err := p.Collection(features.Kind("nope")); !errors.Is(err, features.ErrKindUnknown) {
		t.Errorf("Collection(nope) error = %v, want ErrKindUnknown", err)
	}
}

func TestDeleteSemantics(t *testing.T) {
	p := New(mustBBox(t))
	p.SetTimestamps([]time.Time{time.Now()})
	if err := p.SetEntry(features.KindMetaInfo, "k", "v"); err != nil {
		t.Fatal(err)
	}

	if err := p.Delete(features.KindBBox); !errors.Is(err, ErrBBoxRequired) {
		t.Errorf("Delete(bbox) error = %v, want ErrBBoxRequired", err)
	}
	if p.BBox() == nil {
		t.Error("failed delete must leave the box in place")
	}

	if err := p.Delete(features.KindTimestamps); err != nil {
		t.Fatal(err)
	}
	if p.Has(features.KindTimestamps) {
		t.Error("timestamps should be cleared")
	}

	if err := p.Delete(features.KindMetaInfo); err != nil {
		t.Fatal(err)
	}
	if p.Has(features.KindMetaInfo) {
		t.Error("meta_info collection should be empty")
	}
}

func TestFeatures(t *testing.T) {
	p := New(mustBBox(t))
	p.SetTimestamps([]time.Time{time.Now()})
	if err := p.SetEntry(features.KindData, "bands", mustFloat(t, []int{1, 1, 1, 1}, []float64{1})); err != nil {
		t.Fatal(err)
	}
	if err := p.SetEntry(features.KindMetaInfo, "source", "s2"); err != nil {
		t.Fatal(err)
	}

	refs := p.Features()
	want := []features.Ref{
		{Kind: features.KindData, Name: "bands"},
		{Kind: features.KindMetaInfo, Name: "source"},
		{Kind: features.KindBBox},
		{Kind: features.KindTimestamps},
	}
	if len(refs) != len(want) {
		t.Fatalf("Features() = %v, want %v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("Features()[%d] = %v, want %v", i, refs[i], want[i])
		}
	}
}

func TestCopyShallowSharesValues(t *testing.T) {
	p := New(mustBBox(t))
	arr := mustFloat(t, []int{1, 1, 1, 1}, []float64{1})
	if err := p.SetEntry(features.KindData, "bands", arr); err != nil {
		t.Fatal(err)
	}

	c, err := p.Copy(nil, false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	if got.(*raster.Array) != arr {
		t.Error("shallow copy should share value identity")
	}
	if !c.BBox().Equal(p.BBox()) {
		t.Error("copy must carry the bounding box")
	}
}

func TestCopyDeepDuplicatesValues(t *testing.T) {
	p := New(mustBBox(t))
	arr := mustFloat(t, []int{1, 1, 1, 1}, []float64{1})
	if err := p.SetEntry(features.KindData, "bands", arr); err != nil {
		t.Fatal(err)
	}

	c, err := p.Copy(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.GetEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	copied := got.(*raster.Array)
	if copied == arr {
		t.Fatal("deep copy must not share value identity")
	}
	copied.Float64s()[0] = 99
	if arr.Float64s()[0] != 1 {
		t.Error("mutating the deep copy must not touch the source")
	}
}

func TestCopySelection(t *testing.T) {
	p := New(mustBBox(t))
	if err := p.SetEntry(features.KindData, "bands", mustFloat(t, []int{1, 1, 1, 1}, []float64{1})); err != nil {
		t.Fatal(err)
	}
	if err := p.SetEntry(features.KindMetaInfo, "source", "s2"); err != nil {
		t.Fatal(err)
	}

	c, err := p.Copy(features.Kinds(features.KindData), false)
	if err != nil {
		t.Fatal(err)
	}
	if !c.HasEntry(features.KindData, "bands") {
		t.Error("selected entry missing from copy")
	}
	if c.Has(features.KindMetaInfo) {
		t.Error("unselected kind should not be copied")
	}

	_, err = p.Copy(features.Selection{{Kind: features.KindData, Name: "missing"}}, false)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("copy of missing entry error = %v, want ErrEntryNotFound", err)
	}
}

func TestCopyDeepKeepsDeferredUnresolved(t *testing.T) {
	store := newFakeStore()
	store.values["d1"] = mustFloat(t, []int{1, 1, 1, 1}, []float64{7})

	p := New(mustBBox(t))
	if err := p.SetEntry(features.KindData, "bands", NewDeferred(store, "d1")); err != nil {
		t.Fatal(err)
	}

	c, err := p.Copy(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if store.calls["d1"] != 0 {
		t.Errorf("deep copy resolved the store %d times, want 0", store.calls["d1"])
	}

	// Both sides resolve independently afterwards.
	if _, err := p.GetEntry(features.KindData, "bands"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetEntry(features.KindData, "bands"); err != nil {
		t.Fatal(err)
	}
	if store.calls["d1"] != 2 {
		t.Errorf("store resolved %d times, want 2", store.calls["d1"])
	}
}

func TestPatchEqual(t *testing.T) {
	build := func() *Patch {
		p := New(mustBBox(t))
		p.SetTimestamps([]time.Time{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
		if err := p.SetEntry(features.KindData, "bands", mustFloat(t, []int{1, 1, 1, 1}, []float64{1})); err != nil {
			t.Fatal(err)
		}
		return p
	}
	a, b := build(), build()

	equal, err := a.Equal(b)
	if err != nil || !equal {
		t.Fatalf("Equal() = (%v, %v), want (true, nil)", equal, err)
	}

	if err := b.SetEntry(features.KindData, "bands", mustFloat(t, []int{1, 1, 1, 1}, []float64{2})); err != nil {
		t.Fatal(err)
	}
	equal, err = a.Equal(b)
	if err != nil || equal {
		t.Errorf("Equal() after change = (%v, %v), want (false, nil)", equal, err)
	}

	if equal, _ := a.Equal(nil); equal {
		t.Error("Equal(nil) = true, want false")
	}
}

func TestMaterialize(t *testing.T) {
	store := newFakeStore()
	store.values["a"] = mustFloat(t, []int{1, 1, 1, 1}, []float64{1})
	store.values["b"] = mustInt(t, []int{1, 1, 1, 1}, []int64{2})

	p := New(mustBBox(t))
	if err := p.SetEntry(features.KindData, "bands", NewDeferred(store, "a")); err != nil {
		t.Fatal(err)
	}
	if err := p.SetEntry(features.KindMask, "clouds", NewDeferred(store, "b")); err != nil {
		t.Fatal(err)
	}

	if err := p.Materialize(); err != nil {
		t.Fatal(err)
	}
	if store.calls["a"] != 1 || store.calls["b"] != 1 {
		t.Errorf("resolve counts = %v, want one each", store.calls)
	}
	for _, ref := range []features.Ref{
		{Kind: features.KindData, Name: "bands"},
		{Kind: features.KindMask, Name: "clouds"},
	} {
		value, err := p.PeekEntry(ref.Kind, ref.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := value.(*Deferred); ok {
			t.Errorf("(%s, %s) still deferred after Materialize", ref.Kind, ref.Name)
		}
	}
}

func TestMaterializeFailure(t *testing.T) {
	store := newFakeStore()
	sentinel := errors.New("backend gone")
	store.errs["a"] = sentinel

	p := New(mustBBox(t))
	if err := p.SetEntry(features.KindData, "bands", NewDeferred(store, "a")); err != nil {
		t.Fatal(err)
	}
	if err := p.Materialize(); !errors.Is(err, sentinel) {
		t.Errorf("Materialize error = %v, want wrapped %v", err, sentinel)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-03-01T12:30:00Z", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), false},
		{"2026-03-01T12:30:00", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), false},
		{"2026-03-01 12:30:00", time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), false},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrBadValue) {
				t.Errorf("ParseTimestamp(%q) error = %v, want ErrBadValue", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
