// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	lru "github.com/hashicorp/golang-lru"
)

// coinCacheCap bounds the number of serialized credits the coin cache
// keeps resident, per spec §4.3.
const coinCacheCap = 10000

// coinCache is a bounded, read-through accelerator over serialized credit
// bytes keyed by outpoint (hash‖index). It participates in the write
// pipeline's batch protocol: start snapshots a fresh pending overlay,
// commit publishes it into the bounded LRU, drop discards it. Correctness
// depends on every saveCredit pushing and every removeCredit unpushing
// within the same batch -- the cache must never answer with a credit that
// didn't survive a commit.
type coinCache struct {
	committed *lru.Cache // string(outpoint bytes) -> []byte (serialized credit)

	// pending overlays committed for the duration of one batch. A key
	// present in tombstone shadows committed regardless of what
	// additions holds for the same key (unpush always wins over a push
	// earlier in the same batch, matching "the cache must not leak stale
	// reads").
	additions map[string][]byte
	tombstone map[string]struct{}
}

func newCoinCache() *coinCache {
	c, err := lru.New(coinCacheCap)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// coinCacheCap never is.
		panic(err)
	}
	return &coinCache{committed: c}
}

// start opens a fresh pending overlay. Calling start while one is already
// open replaces it -- callers are expected to commit/drop before starting
// again, matching the single-writer-per-wallet batch discipline.
func (c *coinCache) start() {
	c.additions = make(map[string][]byte)
	c.tombstone = make(map[string]struct{})
}

// push stages value under key for this batch, as happens whenever the
// pipeline saves a credit.
func (c *coinCache) push(key []byte, value []byte) {
	k := string(key)
	delete(c.tombstone, k)
	c.additions[k] = append([]byte(nil), value...)
}

// unpush stages key for removal for this batch, as happens whenever the
// pipeline removes a credit.
func (c *coinCache) unpush(key []byte) {
	k := string(key)
	delete(c.additions, k)
	c.tombstone[k] = struct{}{}
}

// set populates the committed layer directly, bypassing the pending
// overlay -- used when a query reads a credit from the KV store and wants
// to prime the cache for next time, which is not itself a mutation that
// needs to roll back.
func (c *coinCache) set(key []byte, value []byte) {
	c.committed.Add(string(key), append([]byte(nil), value...))
}

// get returns the cached credit bytes for key, checking the pending
// overlay (if a batch is open) before falling back to the committed LRU.
func (c *coinCache) get(key []byte) ([]byte, bool) {
	k := string(key)
	if c.tombstone != nil {
		if _, gone := c.tombstone[k]; gone {
			return nil, false
		}
	}
	if c.additions != nil {
		if v, ok := c.additions[k]; ok {
			return v, true
		}
	}
	if v, ok := c.committed.Get(k); ok {
		return v.([]byte), true
	}
	return nil, false
}

// has reports whether key is cached.
func (c *coinCache) has(key []byte) bool {
	_, ok := c.get(key)
	return ok
}

// commit publishes every staged addition and tombstone into the committed
// LRU, then closes the overlay.
func (c *coinCache) commit() {
	for k := range c.tombstone {
		c.committed.Remove(k)
	}
	for k, v := range c.additions {
		c.committed.Add(k, v)
	}
	c.additions = nil
	c.tombstone = nil
}

// drop discards the pending overlay without touching the committed layer.
func (c *coinCache) drop() {
	c.additions = nil
	c.tombstone = nil
}
