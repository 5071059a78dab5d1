// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletiface defines the wallet-side collaborators txdb consumes:
// a path resolver (address -> account path) and a global wallet directory
// that records which wallets reference each outpoint/block height. Both are
// out of scope to implement fully (key derivation, address generation and
// the cross-wallet directory live in the wallet/walletdb layer proper) --
// this package only states the narrow surface txdb actually calls, the way
// the teacher's wtxmgr only ever calls waddrmgr through AddressForOutPoint
// rather than reaching into its internals.
package walletiface

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"

	"github.com/nodewallet/txdb/txerr"
)

// Path is an HD account path an output's address was derived under.
type Path struct {
	Account uint32
	Branch  uint32
	Index   uint32
}

// PathResolver maps an address to the wallet account path that owns it, if
// any. It is the "Path resolver" collaborator from the spec: out of scope
// to implement (key derivation and address generation live elsewhere), in
// scope to depend on.
type PathResolver interface {
	// Path reports the account path owning addr, or ok=false if addr is
	// not one of ours.
	Path(addr btcutil.Address) (path Path, ok bool, err txerr.R)
}

// Directory is the global, cross-wallet bookkeeping collaborator: which
// wallets reference a given outpoint, and which wallets have a transaction
// at a given block height. txdb calls it directly while a write batch is
// open; these calls are not part of the KV batch, so a dropped batch does
// not undo them.
type Directory interface {
	GetOutpointMap(hash *chainhash.Hash, index uint32) (wallets []uint32, err txerr.R)
	WriteOutpointMap(wallet uint32, hash *chainhash.Hash, index uint32) txerr.R
	UnwriteOutpointMap(wallet uint32, hash *chainhash.Hash, index uint32) txerr.R

	GetBlockMap(height int32) (wallets []uint32, err txerr.R)
	WriteBlockMap(wallet uint32, height int32) txerr.R
	UnwriteBlockMap(wallet uint32, height int32) txerr.R
}
