package patch

import (
	"fmt"
	"sort"
	"time"

	"github.com/geostack/patchwork/pkg/raster"
	"github.com/geostack/patchwork/pkg/vector"
)

// ConsolidateTimestamps prunes the patch to the given timestamp set: every
// own timestamp absent from valid is dropped, the matching time-axis slices
// are removed from every temporal non-meta entry, and the removed
// timestamps are returned in ascending order.
//
// When the patch's own sequence contains duplicates the index lookup uses
// the first occurrence of each removed timestamp, which drops only one of
// the duplicate slices. That case is ambiguous and callers should avoid it.
func (p *Patch) ConsolidateTimestamps(valid []time.Time) ([]time.Time, error) {
	validSet := make(map[int64]bool, len(valid))
	for _, ts := range valid {
		validSet[ts.UnixNano()] = true
	}

	removedSet := make(map[int64]time.Time)
	for _, ts := range p.timestamps {
		if !validSet[ts.UnixNano()] {
			removedSet[ts.UnixNano()] = ts
		}
	}

	removeIdx := make(map[int]bool, len(removedSet))
	for nano := range removedSet {
		for i, ts := range p.timestamps {
			if ts.UnixNano() == nano {
				removeIdx[i] = true
				break
			}
		}
	}

	goodIdxs := make([]int, 0, len(p.timestamps)-len(removeIdx))
	goodTimestamps := make([]time.Time, 0, len(p.timestamps)-len(removeIdx))
	for i, ts := range p.timestamps {
		if !removeIdx[i] {
			goodIdxs = append(goodIdxs, i)
			goodTimestamps = append(goodTimestamps, ts)
		}
	}

	removed := make([]time.Time, 0, len(removedSet))
	for _, ts := range removedSet {
		removed = append(removed, ts)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Before(removed[j]) })

	for _, kind := range entryKinds {
		if !kind.IsTemporal() || kind.IsMeta() {
			continue
		}
		c := p.collections[kind]
		for _, name := range c.Names() {
			value, err := c.Get(name)
			if err != nil {
				return nil, err
			}
			switch val := value.(type) {
			case *raster.Array:
				pruned, err := val.TakeTime(goodIdxs)
				if err != nil {
					return nil, fmt.Errorf("(%s, %s): %w", kind, name, err)
				}
				c.entries[name] = pruned
			case *vector.Table:
				pruned, err := val.WithoutTimestamps(removed)
				if err != nil {
					return nil, fmt.Errorf("(%s, %s): %w", kind, name, err)
				}
				c.entries[name] = pruned
			}
		}
	}

	p.timestamps = goodTimestamps
	return removed, nil
}
