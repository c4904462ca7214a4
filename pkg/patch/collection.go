package patch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

// forbiddenNameChars may not appear in entry names.
const forbiddenNameChars = "./\\|;:\n\t"

// Collection is one feature kind's validated name-to-value mapping.
// Values are validated on insertion against the kind's invariants and may
// be deferred placeholders that resolve on first forced read. Iteration
// follows insertion order; overwriting keeps the original position.
type Collection struct {
	kind    features.Kind
	order   []string
	entries map[string]any
}

// NewCollection creates an empty collection for an entry kind.
// The bounding box and timestamp kinds hold single values on the patch and
// have no collections; asking for one is a programming error.
func NewCollection(kind features.Kind) *Collection {
	if kind.IsScalarValued() {
		panic(fmt.Sprintf("features.%s does not hold named entries", kind))
	}
	return &Collection{kind: kind, entries: map[string]any{}}
}

// Kind returns the feature kind this collection is tagged with.
func (c *Collection) Kind() features.Kind { return c.kind }

// Len returns the entry count.
func (c *Collection) Len() int { return len(c.entries) }

// Names returns entry names in insertion order.
func (c *Collection) Names() []string { return append([]string(nil), c.order...) }

// Has reports whether an entry exists under name.
func (c *Collection) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

func checkName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if i := strings.IndexAny(name, forbiddenNameChars); i >= 0 {
		return fmt.Errorf("%w: %q in %q", ErrIllegalName, name[i], name)
	}
	return nil
}

// Insert validates value against the kind's invariants and stores it under
// name, overwriting any prior entry. Deferred placeholders are stored
// unchecked; their payloads are validated by the collaborator that wrote
// them.
func (c *Collection) Insert(name string, value any) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, ok := value.(*Deferred); !ok {
		parsed, err := c.parseValue(name, value)
		if err != nil {
			return err
		}
		value = parsed
	}
	if !c.Has(name) {
		c.order = append(c.order, name)
	}
	c.entries[name] = value
	return nil
}

// parseValue checks value against the kind, applying the documented
// permissive conversions.
func (c *Collection) parseValue(name string, value any) (any, error) {
	switch {
	case c.kind.IsArray():
		arr, ok := value.(*raster.Array)
		if !ok {
			return nil, fmt.Errorf("%w: %s entry %q must be a raster array, got %T", ErrBadValue, c.kind, name, value)
		}
		want, _ := c.kind.Rank()
		if arr.Rank() != want {
			return nil, fmt.Errorf("%w: %s entry %q must have rank %d, got %d", ErrRankMismatch, c.kind, name, want, arr.Rank())
		}
		if c.kind.IsDiscrete() && arr.DType() == raster.Float64 {
			return nil, fmt.Errorf("%w: %s entry %q has dtype %s", ErrDiscreteType, c.kind, name, arr.DType())
		}
		return arr, nil

	case c.kind.IsVector():
		var table *vector.Table
		switch val := value.(type) {
		case *vector.Table:
			table = val
		case []vector.Geometry:
			table = vector.FromGeometries("", val)
		default:
			return nil, fmt.Errorf("%w: %s entry %q must be a geometry table, got %T", ErrBadValue, c.kind, name, value)
		}
		if c.kind.IsTemporal() && !table.HasColumn(features.TimestampColumn) {
			return nil, fmt.Errorf("%w: %s entry %q", ErrMissingTimestamps, c.kind, name)
		}
		return table, nil

	default:
		// Metadata entries are opaque.
		return value, nil
	}
}

// Get returns the entry under name, resolving and memoizing a deferred
// placeholder in place. Returns ErrEntryNotFound if absent.
func (c *Collection) Get(name string) (any, error) {
	value, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: (%s, %s)", ErrEntryNotFound, c.kind, name)
	}
	deferred, ok := value.(*Deferred)
	if !ok {
		return value, nil
	}
	realized, err := deferred.Load()
	if err != nil {
		return nil, fmt.Errorf("(%s, %s): %w", c.kind, name, err)
	}
	c.entries[name] = realized
	return realized, nil
}

// Peek returns the entry under name without forcing materialization; a
// deferred placeholder is returned as is.
func (c *Collection) Peek(name string) (any, error) {
	value, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: (%s, %s)", ErrEntryNotFound, c.kind, name)
	}
	return value, nil
}

// Delete removes the entry under name.
// Returns ErrEntryNotFound if absent.
func (c *Collection) Delete(name string) error {
	if !c.Has(name) {
		return fmt.Errorf("%w: (%s, %s)", ErrEntryNotFound, c.kind, name)
	}
	delete(c.entries, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Equal deeply compares all entries of both collections, forcing
// materialization on both sides. A resolution failure is returned as an
// error rather than an inequality.
func (c *Collection) Equal(other *Collection) (bool, error) {
	if c.kind != other.kind || len(c.entries) != len(other.entries) {
		return false, nil
	}
	for name := range c.entries {
		if !other.Has(name) {
			return false, nil
		}
		mine, err := c.Get(name)
		if err != nil {
			return false, err
		}
		theirs, err := other.Get(name)
		if err != nil {
			return false, err
		}
		if !valueEqual(mine, theirs) {
			return false, nil
		}
	}
	return true, nil
}

// valueEqual deeply compares two realized entry values.
func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *raster.Array:
		bv, ok := b.(*raster.Array)
		return ok && av.Equal(bv)
	case *vector.Table:
		bv, ok := b.(*vector.Table)
		return ok && av.Equal(bv)
	default:
		ab, errA := json.Marshal(a)
		bb, errB := json.Marshal(b)
		if errA != nil || errB != nil {
			return false
		}
		return string(ab) == string(bb)
	}
}
