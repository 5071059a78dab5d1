// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestKeyTablePrefixesDistinct(t *testing.T) {
	h := hashFromByte(1)
	keys := [][]byte{
		keyTx(1, &h),
		keyCredit(1, Outpoint{Hash: h, Index: 0}),
		keyUndoCoin(1, Outpoint{Hash: h, Index: 0}),
		keySpentMarker(1, Outpoint{Hash: h, Index: 0}),
		keyPending(1, &h),
		keyByPS(1, 0, &h),
		keyByHeight(1, 0, &h),
		keyByAccount(1, 0, &h),
		keyPendingByAccount(1, 0, &h),
		keyByAccountPS(1, 0, 0, &h),
		keyByAccountHeight(1, 0, 0, &h),
		keyCreditByAccount(1, 0, Outpoint{Hash: h, Index: 0}),
		keyRBF(1, &h),
		keyBlockRecord(1, 0),
		keyState(1),
	}
	for i := range keys {
		for j := range keys {
			if i == j {
				continue
			}
			if bytes.Equal(keys[i], keys[j]) {
				t.Fatalf("keys %d and %d collide: %x", i, j, keys[i])
			}
		}
	}
}

func TestWalletPrefixIsolatesWallets(t *testing.T) {
	h := hashFromByte(7)
	k1 := keyTx(1, &h)
	k2 := keyTx(2, &h)
	if bytes.Equal(k1, k2) {
		t.Fatalf("keys for different wallets must differ")
	}
	if !bytes.HasPrefix(k1, walletPrefix(1)) {
		t.Fatalf("keyTx(1, ...) must carry wallet 1's prefix")
	}
	if bytes.HasPrefix(k1, walletPrefix(2)) {
		t.Fatalf("keyTx(1, ...) must not carry wallet 2's prefix")
	}
}

// TestKeyByHeightOrdering checks that the lexicographic order of keyByHeight
// matches numeric height order, which every range scan in query.go depends
// on.
func TestKeyByHeightOrdering(t *testing.T) {
	h := hashFromByte(3)
	heights := []int32{0, 1, 100, 1000, 1 << 20}
	var keys [][]byte
	for _, height := range heights {
		keys = append(keys, keyByHeight(1, height, &h))
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("keyByHeight(%d) did not sort after keyByHeight(%d)",
				heights[i], heights[i-1])
		}
	}
}

func TestKeyByPSOrdering(t *testing.T) {
	h := hashFromByte(4)
	pss := []uint32{0, 5, 500, 1 << 16}
	var keys [][]byte
	for _, ps := range pss {
		keys = append(keys, keyByPS(1, ps, &h))
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Fatalf("keyByPS(%d) did not sort after keyByPS(%d)", pss[i], pss[i-1])
		}
	}
}

func TestParseHashSuffix(t *testing.T) {
	h := hashFromByte(9)
	key := keyTx(1, &h)
	prefixLen := len(key) - hashSize
	got, ok := parseHashSuffix(key, prefixLen)
	if !ok {
		t.Fatalf("parseHashSuffix failed to parse a well-formed key")
	}
	if got != h {
		t.Fatalf("parseHashSuffix = %v, want %v", got, h)
	}
	if _, ok := parseHashSuffix(key, prefixLen+1); ok {
		t.Fatalf("parseHashSuffix should reject a wrong prefix length")
	}
}

func TestParseOutpointSuffix(t *testing.T) {
	h := hashFromByte(11)
	op := Outpoint{Hash: h, Index: 42}
	key := keyCredit(1, op)
	prefixLen := len(key) - hashSize - 4
	got, ok := parseOutpointSuffix(key, prefixLen)
	if !ok {
		t.Fatalf("parseOutpointSuffix failed to parse a well-formed key")
	}
	if got != op {
		t.Fatalf("parseOutpointSuffix = %+v, want %+v", got, op)
	}
}
