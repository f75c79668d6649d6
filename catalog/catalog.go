// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package catalog builds and caches per-class catalog documents.
//
// A catalog is a JSON array listing every instance of a publication
// class with its identifier and last-modified time, newest first.
// Building it requires a full query, so the rendered payload is
// memoized in a key-value cache and thrown away whenever an instance
// of the class changes.
package catalog

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/firstflamingo/restkit/resource"
)

// timeFormat is the layout of the "lm" field in catalog entries.
const timeFormat = "2006-01-02T15:04:05"

// entry is one line of the catalog document.
type entry struct {
	ID           string `json:"id"`
	LastModified string `json:"lm"`
}

// memo is a rendered catalog plus the time it was rendered.  The build
// time doubles as the Last-Modified time of the catalog itself.
type memo struct {
	Built   time.Time
	Payload []byte
}

// KV stores rendered catalogs keyed by class.  Implementations must be
// safe for concurrent use.
type KV interface {
	Get(key string) (memo, bool)
	Set(key string, m memo)
	Delete(key string)
}

// Cache produces catalog documents for classes backed by a store.
type Cache struct {
	Store resource.Store
	KV    KV
	Clock clock.Clock
}

// New creates a catalog cache over a store, memoizing in process
// memory and using the real wall clock.
func New(store resource.Store) *Cache {
	return &Cache{Store: store, KV: NewMemKV(), Clock: clock.New()}
}

// Catalog returns the rendered catalog for a class and the time it was
// built.  The result is memoized until Invalidate is called for the
// class.
func (c *Cache) Catalog(class *resource.Class) ([]byte, time.Time, error) {
	if m, ok := c.KV.Get(class.URLName); ok {
		return m.Payload, m.Built, nil
	}

	objects, err := c.Store.Query(class, resource.Query{})
	if err != nil {
		return nil, time.Time{}, err
	}
	entries := make([]entry, len(objects))
	for i, obj := range objects {
		entries[i] = entry{
			ID:           obj.ID(),
			LastModified: obj.LastModified().UTC().Format(timeFormat),
		}
	}
	payload, err := resource.EncodeJSON(entries)
	if err != nil {
		return nil, time.Time{}, err
	}

	m := memo{Built: c.Clock.Now().UTC().Truncate(time.Second), Payload: payload}
	c.KV.Set(class.URLName, m)
	return m.Payload, m.Built, nil
}

// Invalidate discards the memoized catalog for a class.  Call it after
// any mutation of an instance of the class; the next Catalog call will
// rebuild.
func (c *Cache) Invalidate(class *resource.Class) {
	c.KV.Delete(class.URLName)
}
