// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package bulletin models a published notice: a short titled text in a
// category, readable by anyone and writable by administrators.  It is
// the service's concrete publication class and carries both a JSON and
// an XML representation.
package bulletin

import (
	"encoding/xml"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/firstflamingo/restkit/reconcile"
	"github.com/firstflamingo/restkit/resource"
)

// Bulletin is one published notice.
type Bulletin struct {
	resource.Meta

	Title    string
	Body     string
	Category string
}

// Class returns the resource class describing bulletins.
func Class() *resource.Class {
	return &resource.Class{
		Name:       "Bulletin",
		URLName:    "bulletins",
		Kind:       resource.Publication,
		Identifier: resource.Capitalized,
		Readable:   []resource.MediaType{resource.JSON, resource.XML},
		Writable:   []resource.MediaType{resource.JSON, resource.XML},
		New: func(id string) resource.Object {
			return &Bulletin{Meta: resource.Meta{Identifier: id}}
		},
	}
}

// updatePayload is the shape of an update document in either
// representation.  Pointer fields distinguish an absent field from an
// explicitly empty one; absent fields are left alone.
type updatePayload struct {
	Title    *string `mapstructure:"title" xml:"title"`
	Body     *string `mapstructure:"body" xml:"body"`
	Category *string `mapstructure:"category" xml:"category"`
}

// Update applies an update document in JSON or XML form.
func (b *Bulletin) Update(data []byte, mt resource.MediaType) (bool, error) {
	var payload updatePayload
	switch mt {
	case resource.JSON:
		var document map[string]interface{}
		if err := resource.DecodeJSON(data, &document); err != nil {
			return false, resource.ErrInvalidPayload{Err: err}
		}
		if err := mapstructure.Decode(document, &payload); err != nil {
			return false, resource.ErrInvalidPayload{Err: err}
		}
	case resource.XML:
		if err := xml.Unmarshal(data, &payload); err != nil {
			return false, resource.ErrInvalidPayload{Err: err}
		}
	default:
		return false, resource.ErrUnsupportedMediaType{Type: string(mt)}
	}
	return b.apply(payload), nil
}

func (b *Bulletin) apply(payload updatePayload) bool {
	changed := false
	if payload.Title != nil && *payload.Title != b.Title {
		b.Title = *payload.Title
		changed = true
	}
	if payload.Body != nil && *payload.Body != b.Body {
		b.Body = *payload.Body
		changed = true
	}
	if payload.Category != nil && *payload.Category != b.Category {
		b.Category = *payload.Category
		changed = true
	}
	return changed
}

// document is the serialized representation of a bulletin.
type document struct {
	XMLName  xml.Name `json:"-" xml:"bulletin"`
	ID       string   `json:"id" xml:"id,attr"`
	Title    string   `json:"title,omitempty" xml:"title,omitempty"`
	Body     string   `json:"body,omitempty" xml:"body,omitempty"`
	Category string   `json:"category,omitempty" xml:"category,omitempty"`
}

// Serialize renders the bulletin in the requested representation.
func (b *Bulletin) Serialize(mt resource.MediaType) ([]byte, error) {
	doc := document{
		ID:       b.ID(),
		Title:    b.Title,
		Body:     b.Body,
		Category: b.Category,
	}
	switch mt {
	case resource.JSON:
		return resource.EncodeJSON(doc)
	case resource.XML:
		return xml.Marshal(doc)
	}
	return nil, resource.ErrUnsupportedMediaType{Type: string(mt)}
}

// Feed reconciles a <bulletins> XML feed against the bulletins in a
// store.  Each <bulletin id="..."> element carries the notice's fields
// as child elements.
type Feed struct {
	Store resource.Store
}

// ActiveTags names the feed elements that describe bulletins.
func (f *Feed) ActiveTags() []string { return []string{"bulletin"} }

// Existing loads the current bulletin population keyed by identifier.
func (f *Feed) Existing() (map[string]resource.Object, error) {
	class := Class()
	objects, err := f.Store.Query(class, resource.Query{})
	if err != nil {
		return nil, err
	}
	existing := make(map[string]resource.Object, len(objects))
	for _, obj := range objects {
		existing[obj.ID()] = obj
	}
	return existing, nil
}

// Key reads the bulletin identifier from the element's id attribute.
// Entries without a valid identifier are ignorable.
func (f *Feed) Key(elem *reconcile.Element) string {
	id, err := Class().ValidIdentifier(elem.Attr["id"])
	if err != nil {
		return ""
	}
	return id
}

// New creates a blank bulletin for a feed key.
func (f *Feed) New(key string) resource.Object {
	return &Bulletin{Meta: resource.Meta{Identifier: key}}
}

// Apply copies the feed entry's fields onto a bulletin.  Whitespace
// around field values is feed formatting, not content.
func (f *Feed) Apply(obj resource.Object, elem *reconcile.Element) (bool, error) {
	b, ok := obj.(*Bulletin)
	if !ok {
		return false, resource.ErrInvalidPayload{}
	}
	payload := updatePayload{}
	if value, ok := elem.Fields["title"]; ok {
		value = strings.TrimSpace(value)
		payload.Title = &value
	}
	if value, ok := elem.Fields["body"]; ok {
		value = strings.TrimSpace(value)
		payload.Body = &value
	}
	if value, ok := elem.Fields["category"]; ok {
		value = strings.TrimSpace(value)
		payload.Category = &value
	}
	return b.apply(payload), nil
}
