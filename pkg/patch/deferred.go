package patch

import (
	"fmt"
	"time"

	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

// BackingStore resolves an opaque per-entry descriptor to a concrete value.
// The core invokes Resolve at most once per deferred entry; the result is
// memoized in place.
type BackingStore interface {
	Resolve(ref string) (any, error)
}

// Deferred is an unresolved reference to externally stored data. It holds a
// non-owning reference to the backing store plus a write-once memo slot
// filled on first load.
type Deferred struct {
	store  BackingStore
	ref    string
	loaded bool
	value  any
}

// NewDeferred creates a placeholder that resolves ref through store.
func NewDeferred(store BackingStore, ref string) *Deferred {
	return &Deferred{store: store, ref: ref}
}

// Ref returns the opaque descriptor.
func (d *Deferred) Ref() string { return d.ref }

// Loaded reports whether the memo slot has been filled.
func (d *Deferred) Loaded() bool { return d.loaded }

// Load resolves the value, memoizing it so the store is consulted at most
// once. A store failure propagates and leaves the memo empty.
func (d *Deferred) Load() (any, error) {
	if d.loaded {
		return d.value, nil
	}
	value, err := d.store.Resolve(d.ref)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", d.ref, err)
	}
	d.value = value
	d.loaded = true
	return d.value, nil
}

// deepCopy duplicates the placeholder wrapper. The store reference is
// shared, never duplicated; only an already resolved memo payload is deep
// copied.
func (d *Deferred) deepCopy() *Deferred {
	c := &Deferred{store: d.store, ref: d.ref, loaded: d.loaded}
	if d.loaded {
		c.value = deepCopyValue(d.value)
	}
	return c
}

// deepCopyValue duplicates a realized entry value.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case *raster.Array:
		return val.Clone()
	case *vector.Table:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	case []time.Time:
		return append([]time.Time(nil), val...)
	case []float64:
		return append([]float64(nil), val...)
	case []string:
		return append([]string(nil), val...)
	default:
		// Scalars and opaque immutable values are shared.
		return val
	}
}
