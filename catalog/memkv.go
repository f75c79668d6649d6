// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package catalog

import "sync"

// memKV is an in-process KV implementation.  It never evicts on its
// own; there is one memo per class, so the population is bounded.
type memKV struct {
	lock  sync.RWMutex
	memos map[string]memo
}

// NewMemKV creates an in-process catalog cache backend.
func NewMemKV() KV {
	return &memKV{memos: make(map[string]memo)}
}

func (kv *memKV) Get(key string) (memo, bool) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()

	m, ok := kv.memos[key]
	return m, ok
}

func (kv *memKV) Set(key string, m memo) {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	kv.memos[key] = m
}

func (kv *memKV) Delete(key string) {
	kv.lock.Lock()
	defer kv.lock.Unlock()

	delete(kv.memos, key)
}
