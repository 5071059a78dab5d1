// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package memindex is a trivial map-backed walletiface.PathResolver used by
// tests in place of a real waddrmgr-style address index.
package memindex

import (
	"sync"

	"github.com/btcsuite/btcutil"

	"github.com/nodewallet/txdb/txerr"
	"github.com/nodewallet/txdb/walletiface"
)

// Index is a PathResolver backed by an in-memory map from encoded address
// to account path.
type Index struct {
	mu   sync.RWMutex
	byAddr map[string]walletiface.Path
}

// New creates an empty index.
func New() *Index {
	return &Index{byAddr: make(map[string]walletiface.Path)}
}

// Add registers addr as belonging to path.
func (idx *Index) Add(addr btcutil.Address, path walletiface.Path) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byAddr[addr.EncodeAddress()] = path
}

func (idx *Index) Path(addr btcutil.Address) (walletiface.Path, bool, txerr.R) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.byAddr[addr.EncodeAddress()]
	return p, ok, nil
}
