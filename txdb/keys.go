// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Key tags. Every wallet-scoped key begins with the namespace tag and a
// 4-byte big-endian wallet id, so a Range over that prefix alone enumerates
// every key belonging to one wallet; the byte after the wallet id (the table tag) then
// narrows to one of the tables below. Tag 't' is reused both as the
// namespace tag and as the "extended tx payload by hash" table tag -- this
// mirrors the on-disk layout this package must stay bit-compatible with,
// oddity and all.
const (
	tagNamespace = byte(0x74) // 't'

	tagTx               = byte(0x74) // 't' extended tx payload, by hash
	tagCredit           = byte(0x63) // 'c' credit by outpoint
	tagUndoCoin         = byte(0x64) // 'd' undo coin by spender outpoint
	tagSpentMarker      = byte(0x73) // 's' spent marker, keyed by prevout
	tagPending          = byte(0x70) // 'p' pending flag, by hash
	tagByPS             = byte(0x6d) // 'm' by ps, hash
	tagByHeight         = byte(0x68) // 'h' by height, hash
	tagByAccount        = byte(0x54) // 'T' by account, hash
	tagPendingByAccount = byte(0x50) // 'P' pending by account
	tagByAccountPS      = byte(0x4d) // 'M' by account, ps, hash
	tagByAccountHeight  = byte(0x48) // 'H' by account, height, hash
	tagCreditByAccount  = byte(0x43) // 'C' credit by account, outpoint
	tagRBF              = byte(0x72) // 'r' replace-by-fee marker
	tagBlockRecord      = byte(0x62) // 'b' block record by height
	tagState            = byte(0x52) // 'R' singleton TXDBState
)

const hashSize = chainhash.HashSize // 32

// walletPrefix returns the namespace+wallet-id prefix shared by every key
// belonging to wid. Range(walletPrefix(wid), nil, nil, ...) enumerates the
// whole wallet; Range(append(walletPrefix(wid), tag), ...) enumerates one
// table.
func walletPrefix(wid uint32) []byte {
	b := make([]byte, 1+4)
	b[0] = tagNamespace
	binary.BigEndian.PutUint32(b[1:], wid)
	return b
}

func tablePrefix(wid uint32, tag byte) []byte {
	p := walletPrefix(wid)
	return append(p, tag)
}

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getU32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }

func putHeight(b []byte, h int32) { binary.BigEndian.PutUint32(b, uint32(h)) }
func getHeight(b []byte) int32    { return int32(binary.BigEndian.Uint32(b)) }

// keyTx builds the 't' (extended tx payload) key for hash.
func keyTx(wid uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagTx)
	return append(k, hash[:]...)
}

// keyCredit builds the 'c' (credit by outpoint) key.
func keyCredit(wid uint32, op Outpoint) []byte {
	k := tablePrefix(wid, tagCredit)
	k = append(k, op.Hash[:]...)
	idx := make([]byte, 4)
	putU32(idx, op.Index)
	return append(k, idx...)
}

// keyUndoCoin builds the 'd' (undo coin by spender outpoint) key. spender is
// Outpoint{Hash: spenderTxHash, Index: spenderInputIndex} -- see Open
// Question 2 in SPEC_FULL.md.
func keyUndoCoin(wid uint32, spender Outpoint) []byte {
	k := tablePrefix(wid, tagUndoCoin)
	k = append(k, spender.Hash[:]...)
	idx := make([]byte, 4)
	putU32(idx, spender.Index)
	return append(k, idx...)
}

// keySpentMarker builds the 's' (spent marker) key, keyed by the prevout
// that was spent. Its value is the spender's outpoint.
func keySpentMarker(wid uint32, prevout Outpoint) []byte {
	k := tablePrefix(wid, tagSpentMarker)
	k = append(k, prevout.Hash[:]...)
	idx := make([]byte, 4)
	putU32(idx, prevout.Index)
	return append(k, idx...)
}

func keyPending(wid uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagPending)
	return append(k, hash[:]...)
}

func keyByPS(wid uint32, ps uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagByPS)
	tb := make([]byte, 4)
	putU32(tb, ps)
	k = append(k, tb...)
	return append(k, hash[:]...)
}

func keyByHeight(wid uint32, height int32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagByHeight)
	hb := make([]byte, 4)
	putHeight(hb, height)
	k = append(k, hb...)
	return append(k, hash[:]...)
}

func keyByAccount(wid uint32, account uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagByAccount)
	ab := make([]byte, 4)
	putU32(ab, account)
	k = append(k, ab...)
	return append(k, hash[:]...)
}

func keyPendingByAccount(wid uint32, account uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagPendingByAccount)
	ab := make([]byte, 4)
	putU32(ab, account)
	k = append(k, ab...)
	return append(k, hash[:]...)
}

func keyByAccountPS(wid uint32, account uint32, ps uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagByAccountPS)
	ab := make([]byte, 8)
	putU32(ab[0:4], account)
	putU32(ab[4:8], ps)
	k = append(k, ab...)
	return append(k, hash[:]...)
}

func keyByAccountHeight(wid uint32, account uint32, height int32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagByAccountHeight)
	ab := make([]byte, 8)
	putU32(ab[0:4], account)
	putHeight(ab[4:8], height)
	k = append(k, ab...)
	return append(k, hash[:]...)
}

func keyCreditByAccount(wid uint32, account uint32, op Outpoint) []byte {
	k := tablePrefix(wid, tagCreditByAccount)
	ab := make([]byte, 4)
	putU32(ab, account)
	k = append(k, ab...)
	k = append(k, op.Hash[:]...)
	idx := make([]byte, 4)
	putU32(idx, op.Index)
	return append(k, idx...)
}

func keyRBF(wid uint32, hash *chainhash.Hash) []byte {
	k := tablePrefix(wid, tagRBF)
	return append(k, hash[:]...)
}

func keyBlockRecord(wid uint32, height int32) []byte {
	k := tablePrefix(wid, tagBlockRecord)
	hb := make([]byte, 4)
	putHeight(hb, height)
	return append(k, hb...)
}

func keyState(wid uint32) []byte {
	return tablePrefix(wid, tagState)
}

// parseHashSuffix reads the trailing 32-byte hash of a key whose prefix
// (namespace+wallet+tag[+fixed-width fields]) has length prefixLen.
func parseHashSuffix(key []byte, prefixLen int) (hash chainhash.Hash, ok bool) {
	if len(key) != prefixLen+hashSize {
		return hash, false
	}
	copy(hash[:], key[prefixLen:])
	return hash, true
}

// parseOutpointSuffix reads a trailing hash‖index suffix.
func parseOutpointSuffix(key []byte, prefixLen int) (op Outpoint, ok bool) {
	if len(key) != prefixLen+hashSize+4 {
		return op, false
	}
	copy(op.Hash[:], key[prefixLen:prefixLen+hashSize])
	op.Index = getU32(key[prefixLen+hashSize:])
	return op, true
}
