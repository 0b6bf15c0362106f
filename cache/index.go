package cache

import "slices"

type keySet map[Key]struct{}

// TagIndex maps tags to the keys that provide them.
//
// Contract:
// - Concurrency: not safe for concurrent use. Store guards it with its own
//   lock so the index and entry tags change together.
// - Cost: KeysForTags is proportional to the number of tags plus matches.
type TagIndex struct {
	byTag  map[Tag]keySet
	byType map[string]keySet
	byKey  map[Key][]Tag
}

// NewTagIndex creates an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		byTag:  make(map[Tag]keySet),
		byType: make(map[string]keySet),
		byKey:  make(map[Key][]Tag),
	}
}

// Index replaces the tags recorded for key.
func (ix *TagIndex) Index(key Key, tags []Tag) {
	ix.Remove(key)
	if len(tags) == 0 {
		return
	}

	uniq := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Type == "" || slices.Contains(uniq, t) {
			continue
		}
		uniq = append(uniq, t)
		add(ix.byTag, t, key)
		add(ix.byType, t.Type, key)
	}
	ix.byKey[key] = uniq
}

// Remove drops key from the index.
func (ix *TagIndex) Remove(key Key) {
	tags, ok := ix.byKey[key]
	if !ok {
		return
	}
	for _, t := range tags {
		drop(ix.byTag, t, key)
		drop(ix.byType, t.Type, key)
	}
	delete(ix.byKey, key)
}

// Tags returns the tags recorded for key.
func (ix *TagIndex) Tags(key Key) []Tag {
	return slices.Clone(ix.byKey[key])
}

// KeysForTags returns the sorted keys matched by any of tags.
func (ix *TagIndex) KeysForTags(tags []Tag) []Key {
	seen := make(keySet)
	for _, t := range tags {
		var set keySet
		if t.IsCategory() {
			set = ix.byType[t.Type]
		} else {
			set = ix.byTag[t]
		}
		for k := range set {
			seen[k] = struct{}{}
		}
	}

	keys := make([]Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of indexed keys.
func (ix *TagIndex) Len() int { return len(ix.byKey) }

func add[K comparable](m map[K]keySet, k K, key Key) {
	set, ok := m[k]
	if !ok {
		set = make(keySet)
		m[k] = set
	}
	set[key] = struct{}{}
}

func drop[K comparable](m map[K]keySet, k K, key Key) {
	set, ok := m[k]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(m, k)
	}
}
