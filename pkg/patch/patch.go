// Package patch provides the core geospatial data container: a Patch holds
// one validated collection per feature kind, a bounding box, and an ordered
// timestamp sequence. Entries may be deferred placeholders backed by an
// external store and resolve on first forced read. Patches can be copied,
// compared, merged, and consolidated to a timestamp set.
package patch

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
)

// entryKinds lists the kinds that hold named collections on a patch, in
// canonical order. The bounding box and timestamp sequence are single
// values and excluded.
var entryKinds = func() []features.Kind {
	kinds := make([]features.Kind, 0, len(features.All)-2)
	for _, k := range features.All {
		if !k.IsScalarValued() {
			kinds = append(kinds, k)
		}
	}
	return kinds
}()

// timestampLayouts are tried in order when parsing timestamp strings.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Patch is the aggregate container: one collection per entry kind, an
// optional bounding box, and an ordered timestamp sequence.
//
// The timestamp sequence length is documented, not enforced, to match the
// time axis of temporal arrays; the merge engine checks it when it needs
// the correspondence.
type Patch struct {
	collections map[features.Kind]*Collection
	bbox        *geo.BBox
	timestamps  []time.Time
}

// New creates an empty patch with the given bounding box. A nil box is
// allowed but leaves the patch non-geolocated.
func New(bbox *geo.BBox) *Patch {
	p := &Patch{collections: make(map[features.Kind]*Collection, len(entryKinds)), bbox: bbox}
	for _, k := range entryKinds {
		p.collections[k] = NewCollection(k)
	}
	return p
}

// BBox returns the bounding box, or nil if absent.
func (p *Patch) BBox() *geo.BBox { return p.bbox }

// SetBBox replaces the bounding box. A nil box marks it absent.
func (p *Patch) SetBBox(b *geo.BBox) { p.bbox = b }

// Timestamps returns the timestamp sequence. Callers must not modify it.
func (p *Patch) Timestamps() []time.Time { return p.timestamps }

// SetTimestamps replaces the timestamp sequence. Duplicates are allowed.
func (p *Patch) SetTimestamps(ts []time.Time) {
	p.timestamps = append([]time.Time(nil), ts...)
}

// ParseTimestamp parses a timestamp string in RFC 3339 or a handful of
// common date layouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse timestamp %q", ErrBadValue, s)
}

// parseTimestampSequence converts the accepted timestamp inputs into an
// ordered list: times are kept, strings are parsed.
func parseTimestampSequence(value any) ([]time.Time, error) {
	switch val := value.(type) {
	case nil:
		return nil, nil
	case []time.Time:
		return append([]time.Time(nil), val...), nil
	case []string:
		out := make([]time.Time, 0, len(val))
		for _, s := range val {
			ts, err := ParseTimestamp(s)
			if err != nil {
				return nil, err
			}
			out = append(out, ts)
		}
		return out, nil
	case []any:
		out := make([]time.Time, 0, len(val))
		for _, e := range val {
			switch entry := e.(type) {
			case time.Time:
				out = append(out, entry)
			case string:
				ts, err := ParseTimestamp(entry)
				if err != nil {
					return nil, err
				}
				out = append(out, ts)
			default:
				return nil, fmt.Errorf("%w: timestamp element %T", ErrBadValue, e)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: timestamps must be a sequence, got %T", ErrBadValue, value)
	}
}

// Collection returns the named collection of an entry kind.
func (p *Patch) Collection(kind features.Kind) (*Collection, error) {
	c, ok := p.collections[kind]
	if !ok {
		if kind.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrScalarKind, kind)
		}
		return nil, fmt.Errorf("%w: %q", features.ErrKindUnknown, kind)
	}
	return c, nil
}

// Get addresses a patch by bare kind: the bounding box, the timestamp
// sequence, or the whole collection of an entry kind.
func (p *Patch) Get(kind features.Kind) (any, error) {
	switch kind {
	case features.KindBBox:
		return p.bbox, nil
	case features.KindTimestamps:
		return p.timestamps, nil
	default:
		return p.Collection(kind)
	}
}

// Set assigns a whole feature kind at once. The bounding box takes a
// *geo.BBox or nil; timestamps take a sequence of times or parseable
// strings; entry kinds take a name-to-value map, validated entry by entry,
// or an existing collection of the matching kind.
func (p *Patch) Set(kind features.Kind, value any) error {
	switch kind {
	case features.KindBBox:
		switch val := value.(type) {
		case nil:
			p.bbox = nil
		case *geo.BBox:
			p.bbox = val
		default:
			return fmt.Errorf("%w: bbox must be *geo.BBox, got %T", ErrBadValue, value)
		}
		return nil

	case features.KindTimestamps:
		ts, err := parseTimestampSequence(value)
		if err != nil {
			return err
		}
		p.timestamps = ts
		return nil

	default:
		if _, err := p.Collection(kind); err != nil {
			return err
		}
		switch val := value.(type) {
		case *Collection:
			if val.kind != kind {
				return fmt.Errorf("%w: collection of kind %s assigned to %s", ErrBadValue, val.kind, kind)
			}
			p.collections[kind] = val
			return nil
		case map[string]any:
			fresh := NewCollection(kind)
			for _, name := range sortedKeys(val) {
				if err := fresh.Insert(name, val[name]); err != nil {
					return err
				}
			}
			p.collections[kind] = fresh
			return nil
		default:
			return fmt.Errorf("%w: %s takes a map of entries, got %T", ErrBadValue, kind, value)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetEntry returns a single named entry, forcing materialization.
// The bounding box and timestamp kinds reject the pair form.
func (p *Patch) GetEntry(kind features.Kind, name string) (any, error) {
	c, err := p.Collection(kind)
	if err != nil {
		return nil, err
	}
	return c.Get(name)
}

// PeekEntry returns a single named entry without forcing materialization.
func (p *Patch) PeekEntry(kind features.Kind, name string) (any, error) {
	c, err := p.Collection(kind)
	if err != nil {
		return nil, err
	}
	return c.Peek(name)
}

// SetEntry validates and stores a single named entry.
func (p *Patch) SetEntry(kind features.Kind, name string, value any) error {
	c, err := p.Collection(kind)
	if err != nil {
		return err
	}
	return c.Insert(name, value)
}

// DeleteEntry removes a single named entry.
func (p *Patch) DeleteEntry(kind features.Kind, name string) error {
	c, err := p.Collection(kind)
	if err != nil {
		return err
	}
	return c.Delete(name)
}

// Delete resets a whole feature kind. Deleting the bounding box is a usage
// error: a patch should stay geolocated. Deleting timestamps clears the
// sequence; deleting an entry kind empties its collection.
func (p *Patch) Delete(kind features.Kind) error {
	switch kind {
	case features.KindBBox:
		return ErrBBoxRequired
	case features.KindTimestamps:
		p.timestamps = nil
		return nil
	default:
		if _, err := p.Collection(kind); err != nil {
			return err
		}
		p.collections[kind] = NewCollection(kind)
		return nil
	}
}

// Has reports whether the kind holds anything: a set box, a non-empty
// timestamp sequence, or a non-empty collection.
func (p *Patch) Has(kind features.Kind) bool {
	switch kind {
	case features.KindBBox:
		return p.bbox != nil
	case features.KindTimestamps:
		return len(p.timestamps) > 0
	default:
		c, ok := p.collections[kind]
		return ok && c.Len() > 0
	}
}

// HasEntry reports whether a named entry exists.
func (p *Patch) HasEntry(kind features.Kind, name string) bool {
	c, ok := p.collections[kind]
	return ok && c.Has(name)
}

// Features lists every non-empty feature of the patch: one Ref per named
// entry, plus the box and timestamps when set.
func (p *Patch) Features() []features.Ref {
	var refs []features.Ref
	for _, kind := range features.All {
		if kind.IsScalarValued() {
			if p.Has(kind) {
				refs = append(refs, features.Ref{Kind: kind})
			}
			continue
		}
		for _, name := range p.collections[kind].Names() {
			refs = append(refs, features.Ref{Kind: kind, Name: name})
		}
	}
	return refs
}

// resolveSelection expands a selection against the patch contents into
// concrete refs. Whole-kind refs expand to every present entry of the kind;
// an explicitly named entry must exist.
func (p *Patch) resolveSelection(sel features.Selection) ([]features.Ref, error) {
	if sel.All() {
		return p.Features(), nil
	}
	var refs []features.Ref
	for _, ref := range sel {
		if ref.Kind.IsScalarValued() {
			if p.Has(ref.Kind) {
				refs = append(refs, features.Ref{Kind: ref.Kind})
			}
			continue
		}
		c, err := p.Collection(ref.Kind)
		if err != nil {
			return nil, err
		}
		if ref.Name == "" {
			for _, name := range c.Names() {
				refs = append(refs, features.Ref{Kind: ref.Kind, Name: name})
			}
			continue
		}
		if !c.Has(ref.Name) {
			return nil, fmt.Errorf("%w: (%s, %s)", ErrEntryNotFound, ref.Kind, ref.Name)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Copy returns a new patch with the selected features. The bounding box is
// always copied. A shallow copy shares realized value identity and leaves
// placeholders un-materialized; a deep copy duplicates realized values and
// placeholder wrappers, sharing only the store handle.
func (p *Patch) Copy(sel features.Selection, deep bool) (*Patch, error) {
	refs, err := p.resolveSelection(sel)
	if err != nil {
		return nil, err
	}
	out := New(p.bbox)
	for _, ref := range refs {
		switch ref.Kind {
		case features.KindBBox:
			// Already carried over.
		case features.KindTimestamps:
			out.timestamps = append([]time.Time(nil), p.timestamps...)
		default:
			value, err := p.collections[ref.Kind].Peek(ref.Name)
			if err != nil {
				return nil, err
			}
			if deep {
				if deferred, ok := value.(*Deferred); ok {
					value = deferred.deepCopy()
				} else {
					value = deepCopyValue(value)
				}
			}
			if err := out.collections[ref.Kind].Insert(ref.Name, value); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Equal reports whether all thirteen feature kinds of both patches compare
// equal by value. Deferred entries on either side are materialized.
func (p *Patch) Equal(other *Patch) (bool, error) {
	if other == nil {
		return false, nil
	}
	if !p.bbox.Equal(other.bbox) {
		return false, nil
	}
	if len(p.timestamps) != len(other.timestamps) {
		return false, nil
	}
	for i, ts := range p.timestamps {
		if !ts.Equal(other.timestamps[i]) {
			return false, nil
		}
	}
	for _, kind := range entryKinds {
		equal, err := p.collections[kind].Equal(other.collections[kind])
		if err != nil {
			return false, err
		}
		if !equal {
			return false, nil
		}
	}
	return true, nil
}

// Materialize resolves every deferred entry of the patch. Resolutions are
// independent reads and run concurrently through a bounded pool; the call
// returns after all complete, failing on the first resolution error.
func (p *Patch) Materialize() error {
	type slot struct {
		kind     features.Kind
		name     string
		deferred *Deferred
	}
	var slots []slot
	for _, kind := range entryKinds {
		c := p.collections[kind]
		for _, name := range c.Names() {
			if deferred, ok := c.entries[name].(*Deferred); ok {
				slots = append(slots, slot{kind: kind, name: name, deferred: deferred})
			}
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, s := range slots {
		s := s
		g.Go(func() error {
			if _, err := s.deferred.Load(); err != nil {
				return fmt.Errorf("(%s, %s): %w", s.kind, s.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Rewrite the slots in place now that every memo is filled.
	for _, s := range slots {
		if _, err := p.collections[s.kind].Get(s.name); err != nil {
			return err
		}
	}
	return nil
}
