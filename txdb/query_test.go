// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
)

func containsHash(hashes []chainhash.Hash, h chainhash.Hash) bool {
	for _, v := range hashes {
		if v == h {
			return true
		}
	}
	return false
}

func TestGetHistoryAndPendingHashes(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	pending := NewTxRecord(fundingTx(10, ourScript, 10000), 1000)
	if err := s.Add(pending, nil); err != nil {
		t.Fatalf("Add pending: %v", err)
	}
	mined := NewTxRecord(fundingTx(11, ourScript, 20000), 1001)
	if err := s.Add(mined, &BlockMeta{Hash: hashFromByte(99), Height: 100, Time: 1002}); err != nil {
		t.Fatalf("Add mined: %v", err)
	}

	history, err := s.GetHistoryHashes()
	if err != nil {
		t.Fatalf("GetHistoryHashes: %v", err)
	}
	if !containsHash(history, pending.Hash) || !containsHash(history, mined.Hash) {
		t.Fatalf("history must contain both transactions: %v", history)
	}

	pendingHashes, err := s.GetPendingHashes()
	if err != nil {
		t.Fatalf("GetPendingHashes: %v", err)
	}
	if len(pendingHashes) != 1 || pendingHashes[0] != pending.Hash {
		t.Fatalf("pending hashes = %v, want only %v", pendingHashes, pending.Hash)
	}
}

func TestGetHeightRangeHashes(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	low := NewTxRecord(fundingTx(10, ourScript, 10000), 1000)
	if err := s.Add(low, &BlockMeta{Hash: hashFromByte(50), Height: 100, Time: 1}); err != nil {
		t.Fatalf("Add low: %v", err)
	}
	high := NewTxRecord(fundingTx(11, ourScript, 10000), 1001)
	if err := s.Add(high, &BlockMeta{Hash: hashFromByte(51), Height: 200, Time: 2}); err != nil {
		t.Fatalf("Add high: %v", err)
	}

	all, err := s.GetHeightRangeHashes(RangeOptions{Start: 100, End: 201})
	if err != nil {
		t.Fatalf("GetHeightRangeHashes: %v", err)
	}
	if !containsHash(all, low.Hash) || !containsHash(all, high.Hash) {
		t.Fatalf("range [100,201) must contain both: %v", all)
	}

	onlyHigh, err := s.GetHeightRangeHashes(RangeOptions{Start: 150, End: 201})
	if err != nil {
		t.Fatalf("GetHeightRangeHashes: %v", err)
	}
	if len(onlyHigh) != 1 || onlyHigh[0] != high.Hash {
		t.Fatalf("range [150,201) = %v, want only %v", onlyHigh, high.Hash)
	}
}

func TestGetRangeHashesByPendingTime(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	early := NewTxRecord(fundingTx(10, ourScript, 10000), 1000)
	if err := s.Add(early, nil); err != nil {
		t.Fatalf("Add early: %v", err)
	}
	late := NewTxRecord(fundingTx(11, ourScript, 10000), 5000)
	if err := s.Add(late, nil); err != nil {
		t.Fatalf("Add late: %v", err)
	}

	hashes, err := s.GetRangeHashes(RangeOptions{End: 2000})
	if err != nil {
		t.Fatalf("GetRangeHashes: %v", err)
	}
	if len(hashes) != 1 || hashes[0] != early.Hash {
		t.Fatalf("range ending at 2000 = %v, want only %v", hashes, early.Hash)
	}
}

func TestLockTXExcludesCreditFromGetCoins(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	_, externalScript := newTestAddrScript(t, 2)
	s := newTestStore(t, ourAddr)

	fund := NewTxRecord(fundingTx(10, ourScript, 10000), 1000)
	if err := s.Add(fund, &BlockMeta{Hash: hashFromByte(50), Height: 100, Time: 1}); err != nil {
		t.Fatalf("Add fund: %v", err)
	}

	unsent := NewTxRecord(spendingTx(Outpoint{Hash: fund.Hash, Index: 0}, externalScript, 10000), 2000)
	s.lockTX(unsent)

	coins, err := s.GetCoins(nil)
	if err != nil {
		t.Fatalf("GetCoins: %v", err)
	}
	if len(coins) != 0 {
		t.Fatalf("GetCoins must exclude a locked outpoint: %v", coins)
	}

	s.unlockTX(unsent)
	coins, err = s.GetCoins(nil)
	if err != nil {
		t.Fatalf("GetCoins: %v", err)
	}
	if len(coins) != 1 {
		t.Fatalf("GetCoins must see the credit again once unlocked: %v", coins)
	}
}

func TestFillCoinsAndFillHistory(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	_, externalScript := newTestAddrScript(t, 2)
	s := newTestStore(t, ourAddr)

	fund := NewTxRecord(fundingTx(10, ourScript, 50000), 1000)
	if err := s.Add(fund, &BlockMeta{Hash: hashFromByte(50), Height: 100, Time: 1}); err != nil {
		t.Fatalf("Add fund: %v", err)
	}
	spend := NewTxRecord(spendingTx(Outpoint{Hash: fund.Hash, Index: 0}, externalScript, 50000), 2000)
	if err := s.Add(spend, nil); err != nil {
		t.Fatalf("Add spend: %v", err)
	}

	coins, err := s.FillCoins(spend)
	if err != nil {
		t.Fatalf("FillCoins: %v", err)
	}
	if len(coins) != 1 || coins[0] == nil || coins[0].Value != btcutil.Amount(50000) {
		t.Fatalf("FillCoins while still mempool-spent = %v, want the 50000 credit", coins)
	}

	if err := s.Confirm(&spend.Hash, &BlockMeta{Hash: hashFromByte(60), Height: 200, Time: 2}); err != nil {
		t.Fatalf("Confirm spend: %v", err)
	}

	coins, err = s.FillCoins(spend)
	if err != nil {
		t.Fatalf("FillCoins: %v", err)
	}
	if coins[0] != nil {
		t.Fatalf("FillCoins after the credit is fully spent+confirmed must be nil: %v", coins[0])
	}

	history, err := s.FillHistory(spend)
	if err != nil {
		t.Fatalf("FillHistory: %v", err)
	}
	if len(history) != 1 || history[0] == nil || history[0].Value != btcutil.Amount(50000) {
		t.Fatalf("FillHistory = %v, want the undo coin worth 50000", history)
	}
}

func TestGetDetails(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	fund := NewTxRecord(fundingTx(10, ourScript, 50000), 1000)
	if err := s.Add(fund, &BlockMeta{Hash: hashFromByte(50), Height: 100, Time: 1}); err != nil {
		t.Fatalf("Add fund: %v", err)
	}

	details, err := s.GetDetails(&fund.Hash)
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}
	if details.Height != 100 {
		t.Fatalf("details.Height = %d, want 100", details.Height)
	}
	if len(details.Outputs) != 1 || !details.Outputs[0].Ours || details.Outputs[0].Value != btcutil.Amount(50000) {
		t.Fatalf("details.Outputs = %+v, want one ours output worth 50000", details.Outputs)
	}
	if len(details.Accounts) != 1 || details.Accounts[0] != 0 {
		t.Fatalf("details.Accounts = %v, want [0]", details.Accounts)
	}
	if len(details.Inputs) != 1 || details.Inputs[0].Ours {
		t.Fatalf("details.Inputs = %+v, want one not-ours input", details.Inputs)
	}
}

func TestGetDetailsUnknownTxReturnsNotFound(t *testing.T) {
	ourAddr, _ := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	h := hashFromByte(123)
	_, err := s.GetDetails(&h)
	if err == nil {
		t.Fatalf("GetDetails on an unknown hash must fail")
	}
	if !ErrNotFound.Is(err) {
		t.Fatalf("GetDetails error = %v, want ErrNotFound", err)
	}
}

func TestZapRemovesOnlyOldPendingTransactions(t *testing.T) {
	ourAddr, ourScript := newTestAddrScript(t, 1)
	s := newTestStore(t, ourAddr)

	old := NewTxRecord(fundingTx(10, ourScript, 10000), 1000)
	if err := s.Add(old, nil); err != nil {
		t.Fatalf("Add old: %v", err)
	}
	recent := NewTxRecord(fundingTx(11, ourScript, 10000), 5000)
	if err := s.Add(recent, nil); err != nil {
		t.Fatalf("Add recent: %v", err)
	}

	removed, err := s.Zap(nil, 6000, 4000)
	if err != nil {
		t.Fatalf("Zap: %v", err)
	}
	if len(removed) != 1 || removed[0] != old.Hash {
		t.Fatalf("Zap removed = %v, want only %v", removed, old.Hash)
	}

	pending, err := s.GetPendingHashes()
	if err != nil {
		t.Fatalf("GetPendingHashes: %v", err)
	}
	if len(pending) != 1 || pending[0] != recent.Hash {
		t.Fatalf("pending after zap = %v, want only %v", pending, recent.Hash)
	}
}
