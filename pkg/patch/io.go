package patch

import (
	"fmt"
	"time"

	"github.com/geostack/patchwork/pkg/features"
	"github.com/geostack/patchwork/pkg/geo"
)

// SaveMode controls what an existing stored patch may be overwritten with.
type SaveMode int

const (
	// AddOnly fails if any selected entry already exists at the destination.
	AddOnly SaveMode = iota
	// OverwriteFeatures replaces only the selected entries, leaving the
	// rest of the stored patch unchanged.
	OverwriteFeatures
	// OverwritePatch replaces the entire stored patch.
	OverwritePatch
)

func (m SaveMode) String() string {
	switch m {
	case AddOnly:
		return "add-only"
	case OverwriteFeatures:
		return "overwrite-features"
	case OverwritePatch:
		return "overwrite-patch"
	}
	return fmt.Sprintf("SaveMode(%d)", int(m))
}

// LoadResult is what a loader hands back for one stored patch: the scalar
// features plus a resolvable placeholder per selected entry. Any part may
// be absent.
type LoadResult struct {
	BBox       *geo.BBox
	Timestamps []time.Time
	MetaInfo   map[string]any
	Entries    map[features.Ref]*Deferred
}

// Loader reads the content of a stored patch. The core performs no path
// resolution; location is opaque to it.
type Loader interface {
	LoadPatch(location string, sel features.Selection) (*LoadResult, error)
}

// Saver persists selected features of a patch under a location.
type Saver interface {
	SavePatch(p *Patch, location string, sel features.Selection, mode SaveMode) error
}

// Load assembles a patch from a loader. With lazy set, entries stay
// deferred and resolve on first read; otherwise every entry is materialized
// before returning.
func Load(loader Loader, location string, sel features.Selection, lazy bool) (*Patch, error) {
	content, err := loader.LoadPatch(location, sel)
	if err != nil {
		return nil, err
	}
	p := New(content.BBox)
	if content.Timestamps != nil {
		p.SetTimestamps(content.Timestamps)
	}
	if content.MetaInfo != nil {
		meta := make(map[string]any, len(content.MetaInfo))
		for k, v := range content.MetaInfo {
			meta[k] = v
		}
		if err := p.Set(features.KindMetaInfo, meta); err != nil {
			return nil, err
		}
	}
	for ref, deferred := range content.Entries {
		if err := p.SetEntry(ref.Kind, ref.Name, deferred); err != nil {
			return nil, err
		}
	}
	if !lazy {
		if err := p.Materialize(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Save persists the selected features of the patch through the saver.
func (p *Patch) Save(saver Saver, location string, sel features.Selection, mode SaveMode) error {
	return saver.SavePatch(p, location, sel, mode)
}
