// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memdir is an in-memory walletiface.Directory used by tests.
package memdir

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/nodewallet/txdb/txerr"
	"github.com/nodewallet/txdb/walletiface"
)

type outpointKey struct {
	hash  chainhash.Hash
	index uint32
}

// Directory is a walletiface.Directory backed by plain maps.
type Directory struct {
	mu        sync.Mutex
	outpoints map[outpointKey]map[uint32]struct{}
	heights   map[int32]map[uint32]struct{}
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		outpoints: make(map[outpointKey]map[uint32]struct{}),
		heights:   make(map[int32]map[uint32]struct{}),
	}
}

func (d *Directory) GetOutpointMap(hash *chainhash.Hash, index uint32) ([]uint32, txerr.R) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.outpoints[outpointKey{*hash, index}]
	return toSlice(set), nil
}

func (d *Directory) WriteOutpointMap(wallet uint32, hash *chainhash.Hash, index uint32) txerr.R {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := outpointKey{*hash, index}
	set, ok := d.outpoints[k]
	if !ok {
		set = make(map[uint32]struct{})
		d.outpoints[k] = set
	}
	set[wallet] = struct{}{}
	return nil
}

func (d *Directory) UnwriteOutpointMap(wallet uint32, hash *chainhash.Hash, index uint32) txerr.R {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := outpointKey{*hash, index}
	if set, ok := d.outpoints[k]; ok {
		delete(set, wallet)
		if len(set) == 0 {
			delete(d.outpoints, k)
		}
	}
	return nil
}

func (d *Directory) GetBlockMap(height int32) ([]uint32, txerr.R) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return toSlice(d.heights[height]), nil
}

func (d *Directory) WriteBlockMap(wallet uint32, height int32) txerr.R {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.heights[height]
	if !ok {
		set = make(map[uint32]struct{})
		d.heights[height] = set
	}
	set[wallet] = struct{}{}
	return nil
}

func (d *Directory) UnwriteBlockMap(wallet uint32, height int32) txerr.R {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.heights[height]; ok {
		delete(set, wallet)
		if len(set) == 0 {
			delete(d.heights, height)
		}
	}
	return nil
}

func toSlice(set map[uint32]struct{}) []uint32 {
	if len(set) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	return out
}
