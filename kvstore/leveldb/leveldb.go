// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package leveldb is the persistent kvstore.KV driver, built on
// github.com/syndtr/goleveldb the way btcd-derived full nodes in this
// family (the example corpus vendors a fork of it for block storage) use
// LevelDB as their flat ordered KV engine. It is a natural match for the
// txdb key schema: every key is already ordered so the keyspace can live in
// one LevelDB instance per wallet database.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/nodewallet/txdb/kvstore"
	"github.com/nodewallet/txdb/txerr"
)

var Err = txerr.NewErrorType("leveldb.Err")

var ErrOpen = Err.Code("ErrOpen")
var ErrIO = Err.Code("ErrIO")

// DB wraps a LevelDB handle as a kvstore.KV.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) a LevelDB database at path.
func Open(path string) (*DB, txerr.R) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, ErrOpen.New("opening leveldb database at "+path, err)
	}
	return &DB{ldb: ldb}, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() txerr.R {
	if err := d.ldb.Close(); err != nil {
		return ErrIO.New("closing leveldb database", err)
	}
	return nil
}

func (d *DB) Get(key []byte) ([]byte, txerr.R) {
	v, err := d.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, ErrIO.New("get", err)
	}
	return v, nil
}

func (d *DB) Has(key []byte) (bool, txerr.R) {
	ok, err := d.ldb.Has(key, nil)
	if err != nil {
		return false, ErrIO.New("has", err)
	}
	return ok, nil
}

func (d *DB) Range(prefix, start, end []byte, reverse bool, fn func(key, value []byte) (bool, txerr.R)) txerr.R {
	rng := util.BytesPrefix(prefix)
	if start != nil {
		rng.Start = start
	}
	if end != nil {
		rng.Limit = end
	}
	it := d.ldb.NewIterator(rng, nil)
	defer it.Release()

	step := it.Next
	seek := it.First
	if reverse {
		step = it.Prev
		seek = it.Last
	}

	for ok := seek(); ok; ok = step() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	if err := it.Error(); err != nil {
		return ErrIO.New("iterating", err)
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
	return &batch{db: d, b: new(leveldb.Batch)}
}

type batch struct {
	db *DB
	b  *leveldb.Batch
}

func (b *batch) Put(key, value []byte) { b.b.Put(key, value) }
func (b *batch) Del(key []byte)        { b.b.Delete(key) }

func (b *batch) Commit() txerr.R {
	if err := b.db.ldb.Write(b.b, nil); err != nil {
		return ErrIO.New("committing batch", err)
	}
	return nil
}
