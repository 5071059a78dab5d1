// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// maxOrphans is the DoS cap on the total number of tracked orphan inputs
// (spec §4.4): once exceeded, the entire table is purged rather than
// evicted piecemeal.
const maxOrphans = 20

// orphanEntry is one arena slot: an input of tx, at inputIndex, still
// waiting on its previous output to be seen.
type orphanEntry struct {
	tx         *TxRecord
	inputIndex uint32
}

// orphanTracker is the SPV-mode (Options.Resolution) in-memory table of
// inputs whose previous output is not yet known to the wallet, keyed by the
// prevout they're waiting on. An arena of entries with a stable index
// avoids the pointer cycles a doubly-linked adjacency would need, and the
// per-tx remaining-input counter makes "is this tx now fully resolved"
// O(1) instead of a rescan.
type orphanTracker struct {
	entries   []orphanEntry
	free      []int
	byPrevout map[Outpoint][]int
	remaining map[chainhash.Hash]int
	txByHash  map[chainhash.Hash]*TxRecord
	total     int
}

func newOrphanTracker() *orphanTracker {
	return &orphanTracker{
		byPrevout: make(map[Outpoint][]int),
		remaining: make(map[chainhash.Hash]int),
		txByHash:  make(map[chainhash.Hash]*TxRecord),
	}
}

func (o *orphanTracker) alloc(e orphanEntry) int {
	if n := len(o.free); n > 0 {
		idx := o.free[n-1]
		o.free = o.free[:n-1]
		o.entries[idx] = e
		return idx
	}
	o.entries = append(o.entries, e)
	return len(o.entries) - 1
}

func (o *orphanTracker) release(idx int) {
	o.entries[idx] = orphanEntry{}
	o.free = append(o.free, idx)
}

// Add records that tx's input at inputIndex is waiting on prevout. If the
// global cap is already reached, the whole table is purged first -- an
// intentional DoS guard, not a bug: a wallet under orphan-flood attack
// loses its in-flight SPV resolution state rather than growing unbounded.
func (o *orphanTracker) Add(prevout Outpoint, tx *TxRecord, inputIndex uint32) {
	if o.total >= maxOrphans {
		log.Warnf("orphan table exceeded %d entries, purging", maxOrphans)
		o.Purge()
	}
	idx := o.alloc(orphanEntry{tx: tx, inputIndex: inputIndex})
	o.byPrevout[prevout] = append(o.byPrevout[prevout], idx)
	if o.remaining[tx.Hash] == 0 {
		o.txByHash[tx.Hash] = tx
	}
	o.remaining[tx.Hash]++
	o.total++
}

// Resolve reports every transaction that is now fully resolved because
// outpoint has appeared (every one of its previously-orphaned inputs has
// been accounted for), removing their tracked entries. A transaction with
// more than one still-orphaned input is not returned until the last one
// clears.
func (o *orphanTracker) Resolve(outpoint Outpoint) []*TxRecord {
	idxs, ok := o.byPrevout[outpoint]
	if !ok {
		return nil
	}
	delete(o.byPrevout, outpoint)

	var resolved []*TxRecord
	for _, idx := range idxs {
		h := o.entries[idx].tx.Hash
		o.release(idx)
		o.total--

		o.remaining[h]--
		if o.remaining[h] <= 0 {
			delete(o.remaining, h)
			if tx, ok2 := o.txByHash[h]; ok2 {
				resolved = append(resolved, tx)
				delete(o.txByHash, h)
			}
		}
	}
	return resolved
}

// Purge clears the entire table.
func (o *orphanTracker) Purge() {
	o.entries = nil
	o.free = nil
	o.byPrevout = make(map[Outpoint][]int)
	o.remaining = make(map[chainhash.Hash]int)
	o.txByHash = make(map[chainhash.Hash]*TxRecord)
	o.total = 0
}

// Total is the number of tracked orphan inputs.
func (o *orphanTracker) Total() int { return o.total }
