// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package reconcile diffs a streamed feed against an existing keyed
// population.
//
// A single forward pass over the feed classifies every object into one
// of three populations: objects present after the run, objects whose
// content actually changed, and objects that existed before the run
// but did not appear in the feed.  The pass itself never persists
// anything; the caller inspects the result and decides what to store
// and what to delete.  A parse error aborts the pass, so a caller that
// only persists after a successful run never applies a partial feed.
package reconcile

import (
	"encoding/xml"
	"io"

	"github.com/firstflamingo/restkit/resource"
)

// Element is the accumulated state of one feed entry: the attributes
// of the entry's own tag plus the character data of its direct child
// elements, keyed by child tag name.
type Element struct {
	Name   string
	Attr   map[string]string
	Fields map[string]string
}

// Dataset adapts one resource class to the reconciliation pass.
type Dataset interface {
	// ActiveTags lists the feed tag names that represent entries of
	// this dataset.  All other tags are ignored.
	ActiveTags() []string

	// Existing returns the current live population keyed by
	// identifier.  Run consumes the map; do not reuse it.
	Existing() (map[string]resource.Object, error)

	// Key derives the identifier for a parsed entry.  An empty key
	// marks the entry as ignorable.
	Key(elem *Element) string

	// New creates a blank object for a key that is in the feed but not
	// in the existing population.
	New(key string) resource.Object

	// Apply copies the entry's data onto the object and reports
	// whether anything actually changed.
	Apply(obj resource.Object, elem *Element) (bool, error)
}

// Result holds the three populations produced by a run.  Updated is a
// subset of Objects; Removed is disjoint from both.
type Result struct {
	// Objects is every object present after the run, keyed by
	// identifier, whether it came from the feed or survived unchanged.
	Objects map[string]resource.Object

	// Updated holds the objects from Objects the caller must
	// persist: entries new to the population, plus pre-existing
	// objects whose content changed.
	Updated map[string]resource.Object

	// Removed holds the pre-existing objects that were absent from the
	// feed.  Typically the caller deletes these.
	Removed map[string]resource.Object
}

// Run parses an XML feed and reconciles it against the dataset's
// existing population.  When the same key occurs twice in the feed the
// later entry is applied on top of the object built for the earlier
// one rather than rejected; feeds that concatenate partial records
// rely on this.
func Run(r io.Reader, ds Dataset) (*Result, error) {
	active := make(map[string]bool)
	for _, tag := range ds.ActiveTags() {
		active[tag] = true
	}

	existing, err := ds.Existing()
	if err != nil {
		return nil, err
	}
	remaining := make(map[string]resource.Object, len(existing))
	for key, obj := range existing {
		remaining[key] = obj
	}
	result := make(map[string]resource.Object)
	updated := make(map[string]resource.Object)

	decoder := xml.NewDecoder(r)
	var elem *Element
	var field string
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if elem == nil {
				if active[t.Name.Local] {
					elem = &Element{
						Name:   t.Name.Local,
						Attr:   make(map[string]string, len(t.Attr)),
						Fields: make(map[string]string),
					}
					for _, a := range t.Attr {
						elem.Attr[a.Name.Local] = a.Value
					}
				}
			} else {
				field = t.Name.Local
			}
		case xml.CharData:
			if elem != nil && field != "" {
				elem.Fields[field] += string(t)
			}
		case xml.EndElement:
			if elem == nil {
				break
			}
			if t.Name.Local == field {
				field = ""
				break
			}
			if t.Name.Local != elem.Name {
				break
			}
			if err := reconcileElement(ds, elem, remaining, result, updated); err != nil {
				return nil, err
			}
			elem = nil
		}
	}

	return &Result{Objects: result, Updated: updated, Removed: remaining}, nil
}

func reconcileElement(ds Dataset, elem *Element, remaining, result, updated map[string]resource.Object) error {
	key := ds.Key(elem)
	if key == "" {
		return nil
	}

	obj, existed := remaining[key]
	if existed {
		delete(remaining, key)
	} else if obj, existed = result[key]; !existed {
		obj = ds.New(key)
	}

	changed, err := ds.Apply(obj, elem)
	if err != nil {
		return err
	}
	result[key] = obj
	// A freshly built object must be persisted even if the entry
	// carried no fields; otherwise it would vanish from the store.
	if changed || !existed {
		updated[key] = obj
	}
	return nil
}
