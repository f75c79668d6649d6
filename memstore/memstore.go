// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

// Package memstore provides an in-process, in-memory implementation of
// the restkit resource store.  There is no persistence, and the entire
// store is behind a single mutex; it is tuned for correctness, not
// scalability.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of the REST
// layer with a mock clock.
package memstore

import (
	"encoding/binary"
	"sort"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/satori/go.uuid"

	"github.com/firstflamingo/restkit/resource"
)

// New creates an empty store stamping modification times from the real
// wall clock.
func New() resource.Store {
	return NewWithClock(clock.New())
}

// NewWithClock creates an empty store with an explicit time source.
// Most code should call New; this entry point is for tests that need
// to control the stamped modification times.
func NewWithClock(clk clock.Clock) resource.Store {
	return &memStore{
		classes: make(map[string]map[string]resource.Object),
		clock:   clk,
	}
}

type memStore struct {
	classes map[string]map[string]resource.Object
	clock   clock.Clock
	sem     sync.Mutex
}

func (s *memStore) instances(class *resource.Class) map[string]resource.Object {
	instances := s.classes[class.Name]
	if instances == nil {
		instances = make(map[string]resource.Object)
		s.classes[class.Name] = instances
	}
	return instances
}

func (s *memStore) Get(class *resource.Class, id string) (resource.Object, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	return s.instances(class)[id], nil
}

func (s *memStore) Query(class *resource.Class, q resource.Query) ([]resource.Object, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	instances := s.instances(class)
	objects := make([]resource.Object, 0, len(instances))
	for _, obj := range instances {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool {
		ti, tj := objects[i].LastModified(), objects[j].LastModified()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return objects[i].ID() < objects[j].ID()
	})
	if q.Limit > 0 && len(objects) > q.Limit {
		objects = objects[:q.Limit]
	}
	return objects, nil
}

func (s *memStore) Put(class *resource.Class, obj resource.Object) error {
	s.sem.Lock()
	defer s.sem.Unlock()

	obj.SetLastModified(s.clock.Now())
	s.instances(class)[obj.ID()] = obj
	return nil
}

func (s *memStore) Delete(class *resource.Class, id string) error {
	s.sem.Lock()
	defer s.sem.Unlock()

	delete(s.instances(class), id)
	return nil
}

func (s *memStore) NewID(class *resource.Class) (string, error) {
	s.sem.Lock()
	defer s.sem.Unlock()

	instances := s.instances(class)
	for {
		id := generatedID()
		if _, taken := instances[id]; !taken {
			return id, nil
		}
	}
}

// generatedID derives a decimal identifier from a random UUID.  The
// top bit is cleared so the result always fits the 19-character
// numeric identifier grammar.
func generatedID() string {
	u := uuid.NewV4()
	n := binary.BigEndian.Uint64(u[:8]) &^ (1 << 63)
	return strconv.FormatUint(n, 10)
}
