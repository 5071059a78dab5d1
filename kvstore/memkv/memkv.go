// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memkv is an in-memory kvstore.KV used by tests, the way the
// teacher's wtxmgr tests open an ephemeral walletdb/bdb database per test
// rather than touching disk.
package memkv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/nodewallet/txdb/kvstore"
	"github.com/nodewallet/txdb/txerr"
)

// DB is a sorted in-memory map guarded by a mutex. It is not meant to be
// fast, only to behave exactly like the real ordering the leveldb driver
// provides.
type DB struct {
	mu   sync.Mutex
	data map[string][]byte
}

// New creates an empty in-memory store.
func New() *DB {
	return &DB{data: make(map[string][]byte)}
}

func (d *DB) Get(key []byte) ([]byte, txerr.R) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (d *DB) Has(key []byte) (bool, txerr.R) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.data[string(key)]
	return ok, nil
}

func (d *DB) sortedKeys(prefix, start, end []byte) []string {
	var keys []string
	for k := range d.data {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if start != nil && bytes.Compare(kb, start) < 0 {
			continue
		}
		if end != nil && bytes.Compare(kb, end) >= 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *DB) Range(prefix, start, end []byte, reverse bool, fn func(key, value []byte) (bool, txerr.R)) txerr.R {
	d.mu.Lock()
	keys := d.sortedKeys(prefix, start, end)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	// Snapshot values under the lock so fn can run without holding it.
	type kv struct{ k, v []byte }
	snap := make([]kv, 0, len(keys))
	for _, k := range keys {
		snap = append(snap, kv{[]byte(k), d.data[k]})
	}
	d.mu.Unlock()

	for _, e := range snap {
		cont, err := fn(e.k, e.v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func (d *DB) Keys(prefix, start, end []byte, reverse bool, fn func(key []byte) (bool, txerr.R)) txerr.R {
	return d.Range(prefix, start, end, reverse, func(k, _ []byte) (bool, txerr.R) {
		return fn(k)
	})
}

func (d *DB) Values(prefix, start, end []byte, reverse bool, fn func(key, value []byte) (bool, txerr.R)) txerr.R {
	return d.Range(prefix, start, end, reverse, fn)
}

func (d *DB) Batch() kvstore.Batch {
	return &batch{db: d}
}

type op struct {
	del   bool
	key   []byte
	value []byte
}

type batch struct {
	db  *DB
	ops []op
}

func (b *batch) Put(key, value []byte) {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *batch) Del(key []byte) {
	b.ops = append(b.ops, op{del: true, key: append([]byte(nil), key...)})
}

func (b *batch) Commit() txerr.R {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, o := range b.ops {
		if o.del {
			delete(b.db.data, string(o.key))
		} else {
			b.db.data[string(o.key)] = o.value
		}
	}
	return nil
}
