// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kvstore defines the ordered key-value collaborator that txdb
// consumes. It is deliberately minimal: a flat, lexicographically ordered
// byte-string keyspace with prefix/range iteration and an atomic batch of
// puts/deletes, matching the schema in txdb's key codec (every wallet-scoped
// key is wallet-id-prefixed so a Range over that prefix is wallet-local).
//
// txdb never reaches past this interface into a specific engine; concrete
// implementations live in sibling packages (kvstore/leveldb for a real,
// persistent driver; kvstore/memkv for tests).
package kvstore

import "github.com/nodewallet/txdb/txerr"

// KV is the read/write handle the store programs against.
type KV interface {
	// Get returns the value for key, or nil if it does not exist.
	Get(key []byte) ([]byte, txerr.R)

	// Has reports whether key exists.
	Has(key []byte) (bool, txerr.R)

	// Range iterates, in ascending key order (descending when reverse is
	// set), every key in [start, end) that begins with prefix. A nil end
	// means "no upper bound within the prefix". Iteration stops early if fn
	// returns an error or false.
	Range(prefix, start, end []byte, reverse bool, fn func(key, value []byte) (bool, txerr.R)) txerr.R

	// Keys is Range with only the key passed to fn, for callers (like the
	// hash-only history queries) that never touch the value. Values is
	// Range under another name: fn receives both key and value.
	Keys(prefix, start, end []byte, reverse bool, fn func(key []byte) (bool, txerr.R)) txerr.R
	Values(prefix, start, end []byte, reverse bool, fn func(key, value []byte) (bool, txerr.R)) txerr.R

	// Batch opens a new atomic write batch. Exactly one batch may be open
	// against a KV at a time (txdb enforces the single-writer-per-wallet
	// rule described in its concurrency model; the KV itself need not).
	Batch() Batch
}

// Batch is a set of writes that are applied atomically on Commit, or
// discarded entirely if Commit is never called (or the process dies first).
// There is no partial application: the write pipeline's drop/commit
// protocol depends on that.
type Batch interface {
	Put(key, value []byte)
	Del(key []byte)
	// Commit flushes every staged Put/Del atomically. A failure leaves the
	// underlying KV exactly as it was before the batch was opened.
	Commit() txerr.R
}
