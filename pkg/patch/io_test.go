package patch

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/geostack/patchwork/pkg/features"
)

// fakeLoader serves one canned LoadResult backed by a fakeStore.
type fakeLoader struct {
	store   *fakeStore
	results map[string]*LoadResult
}

func (l *fakeLoader) LoadPatch(location string, sel features.Selection) (*LoadResult, error) {
	r, ok := l.results[location]
	if !ok {
		return nil, fmt.Errorf("no patch at %q", location)
	}
	return r, nil
}

func newFakeLoader(t *testing.T) *fakeLoader {
	t.Helper()
	store := newFakeStore()
	store.values["bands"] = mustFloat(t, []int{1, 1, 1, 1}, []float64{7})

	return &fakeLoader{
		store: store,
		results: map[string]*LoadResult{
			"field-42": {
				BBox:       mustBBox(t),
				Timestamps: []time.Time{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
				MetaInfo:   map[string]any{"source": "s2"},
				Entries: map[features.Ref]*Deferred{
					{Kind: features.KindData, Name: "bands"}: NewDeferred(store, "bands"),
				},
			},
		},
	}
}

func TestLoadLazy(t *testing.T) {
	loader := newFakeLoader(t)
	p, err := Load(loader, "field-42", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if loader.store.calls["bands"] != 0 {
		t.Errorf("lazy load resolved %d times, want 0", loader.store.calls["bands"])
	}

	value, err := p.PeekEntry(features.KindData, "bands")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := value.(*Deferred); !ok {
		t.Fatalf("lazy entry is %T, want *Deferred", value)
	}

	// First forced read resolves; later reads hit the memo.
	if _, err := p.GetEntry(features.KindData, "bands"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetEntry(features.KindData, "bands"); err != nil {
		t.Fatal(err)
	}
	if loader.store.calls["bands"] != 1 {
		t.Errorf("store resolved %d times, want 1", loader.store.calls["bands"])
	}
}

func TestLoadEager(t *testing.T) {
	loader := newFakeLoader(t)
	p, err := Load(loader, "field-42", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if loader.store.calls["bands"] != 1 {
		t.Errorf("eager load resolved %d times, want 1", loader.store.calls["bands"])
	}

	if p.BBox() == nil {
		t.Error("loaded patch should carry its bounding box")
	}
	if len(p.Timestamps()) != 1 {
		t.Errorf("timestamps = %v, want one", p.Timestamps())
	}
	meta, err := p.GetEntry(features.KindMetaInfo, "source")
	if err != nil {
		t.Fatal(err)
	}
	if meta != "s2" {
		t.Errorf("meta source = %v, want s2", meta)
	}
}

func TestLoadResolutionFailure(t *testing.T) {
	loader := newFakeLoader(t)
	sentinel := errors.New("backend gone")
	loader.store.errs["bands"] = sentinel

	if _, err := Load(loader, "field-42", nil, false); !errors.Is(err, sentinel) {
		t.Errorf("eager load error = %v, want wrapped %v", err, sentinel)
	}
}

func TestSaveModeString(t *testing.T) {
	tests := []struct {
		mode SaveMode
		want string
	}{
		{AddOnly, "add-only"},
		{OverwriteFeatures, "overwrite-features"},
		{OverwritePatch, "overwrite-patch"},
		{SaveMode(9), "SaveMode(9)"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
