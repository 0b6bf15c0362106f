package cache

import "slices"

// ListID is the reserved tag id for "the list of all items of a type".
const ListID = "LIST"

// Tag labels cached data so mutations can find it. A tag with an empty ID is
// a bare category and matches every entry carrying any tag of that type.
// Instance and list tags match only entries carrying exactly that tag.
type Tag struct {
	Type string
	ID   string
}

// Category returns the bare category tag for typ.
func Category(typ string) Tag { return Tag{Type: typ} }

// Instance returns the tag for one item of typ.
func Instance(typ, id string) Tag { return Tag{Type: typ, ID: id} }

// List returns the list tag for typ.
func List(typ string) Tag { return Tag{Type: typ, ID: ListID} }

// IsCategory reports whether t is a bare category.
func (t Tag) IsCategory() bool { return t.ID == "" }

// IsList reports whether t is a list tag.
func (t Tag) IsList() bool { return t.ID == ListID }

// String formats the tag as "Type" or "Type:ID".
func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// TagStrings formats tags for logs and telemetry.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Tagger computes the tags a query result provides. err is non-nil when the
// fetch failed; data is nil in that case.
type Tagger interface {
	Tags(data any, err error) []Tag
}

// TagFunc adapts a function to Tagger.
type TagFunc func(data any, err error) []Tag

// Tags implements Tagger.
func (f TagFunc) Tags(data any, err error) []Tag { return f(data, err) }

// StaticTags returns a Tagger that always provides tags.
func StaticTags(tags ...Tag) Tagger {
	fixed := slices.Clone(tags)
	return TagFunc(func(any, error) []Tag { return fixed })
}
