// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txdb implements the wallet transaction database: the per-wallet
// persistent index of credits, spends, confirmations and reorganizations
// on top of an ordered key-value store (kvstore.KV).
package txdb

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/nodewallet/txdb/kvstore"
	"github.com/nodewallet/txdb/txerr"
	"github.com/nodewallet/txdb/walletiface"
)

// Options configures a Store at Open/Create time.
type Options struct {
	// Resolution enables SPV-mode orphan-input tracking (C4): inputs
	// whose previous output hasn't been seen yet are held rather than
	// rejected, and resolved once the output arrives.
	Resolution bool

	// Verify re-runs script verification against a previous output
	// before resolving an orphan input, instead of trusting the
	// scriptSig heuristic alone. Only meaningful when Resolution is set.
	Verify bool

	Params *chaincfg.Params
}

// RBFPolicy decides whether tx should be treated as replacing any
// transaction spending the same inputs. The default, bip125RBFPolicy,
// checks BIP-125 opt-in signaling and ancestor taint; callers may install
// a stricter or looser policy.
type RBFPolicy func(s *Store, tx *TxRecord) (bool, txerr.R)

// Store is a transaction store for one wallet, programmed against a
// kvstore.KV and the wallet-side collaborators (path resolver, global
// wallet directory). Only one batch may be open on a Store at a time --
// the single-writer-per-wallet rule -- enforced by mu.
type Store struct {
	wid      uint32
	kv       kvstore.KV
	resolver walletiface.PathResolver
	dir      walletiface.Directory
	opts     Options
	events   *EventSink
	rbf      RBFPolicy

	cache   *coinCache
	orphans *orphanTracker

	mu      sync.Mutex
	state   *State
	pending *State
	batch   kvstore.Batch
	locked  map[Outpoint]struct{}
	staged  []bufferedEvent
}

// Create initializes a fresh store for wallet wid: a zeroed State record
// written under the 'R' key. Returns ErrAlreadyExists if one is already
// present.
func Create(wid uint32, kv kvstore.KV) txerr.R {
	has, err := kv.Has(keyState(wid))
	if err != nil {
		return ErrDatabase.New("checking for existing store", err)
	}
	if has {
		return ErrAlreadyExists.Errorf("txdb already exists for wallet %d", wid)
	}
	b := kv.Batch()
	raw, serr := (&State{}).Serialize()
	if serr != nil {
		return serr
	}
	b.Put(keyState(wid), raw)
	if err := b.Commit(); err != nil {
		return ErrDatabase.New("creating store", err)
	}
	return nil
}

// Open loads the Store for wallet wid. Returns ErrNoExists if Create was
// never called for this wallet.
func Open(wid uint32, kv kvstore.KV, resolver walletiface.PathResolver,
	dir walletiface.Directory, opts Options, events *EventSink) (*Store, txerr.R) {

	raw, err := kv.Get(keyState(wid))
	if err != nil {
		return nil, ErrDatabase.New("loading store state", err)
	}
	if raw == nil {
		return nil, ErrNoExists.Errorf("no txdb for wallet %d", wid)
	}
	state, derr := DeserializeState(raw)
	if derr != nil {
		return nil, derr
	}

	s := &Store{
		wid:      wid,
		kv:       kv,
		resolver: resolver,
		dir:      dir,
		opts:     opts,
		events:   events,
		state:    state,
		cache:    newCoinCache(),
		locked:   make(map[Outpoint]struct{}),
	}
	s.rbf = bip125RBFPolicy
	if opts.Resolution {
		s.orphans = newOrphanTracker()
	}
	return s, nil
}

// batchState is the context threaded through one open batch: the pending
// State draft, the staged KV batch, the coin cache overlay, and the event
// buffer, all of which must commit or drop together.
type batchState struct {
	s     *Store
	state *State
}

// runBatch opens a batch, runs body, and commits on success or drops on
// error/panic -- every C5 write-pipeline entry point is a thin wrapper
// around this. body mutates b.state and calls the kv/cache staging helpers
// on s directly; it must not call Commit/Put itself.
func (s *Store) runBatch(body func(b *batchState) txerr.R) (err txerr.R) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = s.state.clone()
	s.batch = s.kv.Batch()
	s.cache.start()
	s.staged = nil

	b := &batchState{s: s, state: s.pending}

	defer func() {
		if r := recover(); r != nil {
			s.drop()
			panic(r)
		}
	}()

	if err = body(b); err != nil {
		s.drop()
		return err
	}
	return s.commit()
}

// put stages a KV write for the open batch. It does not touch the coin
// cache: saveCredit and removeCreditFull push/unpush credits themselves.
func (s *Store) put(key, value []byte) {
	s.batch.Put(key, value)
}

func (s *Store) del(key []byte) {
	s.batch.Del(key)
}

// stage buffers an event for publication after a successful commit.
func (s *Store) stage(e bufferedEvent) {
	s.staged = append(s.staged, e)
}

// commit flushes the staged KV batch, and only on success swaps in the
// pending State, publishes the coin-cache overlay, and emits every staged
// event -- in that order, matching spec §5's "commit publishes the
// buffered events only after the KV write succeeds."
func (s *Store) commit() txerr.R {
	newStateBytes, serr := s.pending.Serialize()
	if serr != nil {
		s.drop()
		return serr
	}
	s.batch.Put(keyState(s.wid), newStateBytes)

	if err := s.batch.Commit(); err != nil {
		s.drop()
		return ErrDatabase.New("committing batch", err)
	}

	s.state = s.pending
	s.pending = nil
	s.batch = nil
	s.cache.commit()

	staged := s.staged
	s.staged = nil
	for _, e := range staged {
		s.emit(e)
	}
	return nil
}

// drop discards the open batch's staged writes, cache overlay, and
// buffered events without touching committed state.
func (s *Store) drop() {
	s.pending = nil
	s.batch = nil
	s.cache.drop()
	s.staged = nil
}

// Balance returns the store's current confirmed/unconfirmed totals.
func (s *Store) Balance() Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Balance()
}
