package features

// Ref addresses a single feature of a patch. For the bounding box and the
// timestamp sequence the name is empty; for entry kinds an empty name
// addresses the whole collection of that kind.
type Ref struct {
	Kind Kind
	Name string
}

// Selection is a set of feature references. A nil Selection selects
// everything a patch holds.
type Selection []Ref

// Everything selects all features. It is the zero Selection spelled out.
var Everything Selection = nil

// All reports whether the selection selects everything.
func (s Selection) All() bool { return s == nil }

// Kinds returns a selection of whole kinds.
func Kinds(kinds ...Kind) Selection {
	sel := make(Selection, 0, len(kinds))
	for _, k := range kinds {
		sel = append(sel, Ref{Kind: k})
	}
	return sel
}

// Contains reports whether the selection covers the given kind and name.
// A Ref with an empty name covers every entry of its kind.
func (s Selection) Contains(kind Kind, name string) bool {
	if s == nil {
		return true
	}
	for _, ref := range s {
		if ref.Kind != kind {
			continue
		}
		if ref.Name == "" || ref.Name == name {
			return true
		}
	}
	return false
}
