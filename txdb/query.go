// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"github.com/davecgh/go-spew/spew"

	"github.com/nodewallet/txdb/txerr"
)

// RangeOptions bounds a range scan: Start/End are inclusive/exclusive
// bounds on the ordering key (ps, height, ...), Limit caps the number of
// results (0 = unbounded), Reverse walks descending.
type RangeOptions struct {
	Start, End int64
	Limit      int
	Reverse    bool
}

func (o RangeOptions) apply(hashes []chainhash.Hash) []chainhash.Hash {
	if o.Limit > 0 && len(hashes) > o.Limit {
		hashes = hashes[:o.Limit]
	}
	return hashes
}

// GetHistoryHashes returns every transaction hash the wallet has indexed.
func (s *Store) GetHistoryHashes() ([]chainhash.Hash, txerr.R) {
	return s.scanHashes(tablePrefix(s.wid, tagTx), nil, nil, false)
}

// GetAccountHistoryHashes is GetHistoryHashes scoped to one account.
func (s *Store) GetAccountHistoryHashes(account uint32) ([]chainhash.Hash, txerr.R) {
	prefix := keyByAccount(s.wid, account, &chainhash.Hash{})
	prefix = prefix[:len(prefix)-hashSize]
	return s.scanHashes(prefix, nil, nil, false)
}

// GetPendingHashes returns every currently-unconfirmed transaction hash.
func (s *Store) GetPendingHashes() ([]chainhash.Hash, txerr.R) {
	return s.scanHashes(tablePrefix(s.wid, tagPending), nil, nil, false)
}

// GetAccountPendingHashes is GetPendingHashes scoped to one account.
func (s *Store) GetAccountPendingHashes(account uint32) ([]chainhash.Hash, txerr.R) {
	prefix := keyPendingByAccount(s.wid, account, &chainhash.Hash{})
	prefix = prefix[:len(prefix)-hashSize]
	return s.scanHashes(prefix, nil, nil, false)
}

// GetHeightRangeHashes returns hashes of confirmed transactions whose
// height falls in [opts.Start, opts.End), walking the 'h' table.
func (s *Store) GetHeightRangeHashes(opts RangeOptions) ([]chainhash.Hash, txerr.R) {
	prefix := tablePrefix(s.wid, tagByHeight)
	start, end := heightBounds(prefix, opts)
	hashes, err := s.scanHashes(prefix, start, end, opts.Reverse)
	if err != nil {
		return nil, err
	}
	return opts.apply(hashes), nil
}

// GetAccountHeightRangeHashes is GetHeightRangeHashes scoped to one
// account, walking the 'H' table (resolving the two call shapes the
// original spec left ambiguous -- see SPEC_FULL.md Open Question 1).
func (s *Store) GetAccountHeightRangeHashes(account uint32, opts RangeOptions) ([]chainhash.Hash, txerr.R) {
	prefix := keyByAccountHeight(s.wid, account, 0, &chainhash.Hash{})
	prefix = prefix[:len(prefix)-4-hashSize]
	start, end := heightBounds(prefix, opts)
	hashes, err := s.scanHashes(prefix, start, end, opts.Reverse)
	if err != nil {
		return nil, err
	}
	return opts.apply(hashes), nil
}

func heightBounds(prefix []byte, opts RangeOptions) (start, end []byte) {
	if opts.Start != 0 || opts.End != 0 {
		start = append(append([]byte(nil), prefix...), u32be(uint32(int32(opts.Start)))...)
		end = append(append([]byte(nil), prefix...), u32be(uint32(int32(opts.End)))...)
	}
	return start, end
}

// GetRangeHashes returns hashes ordered by pending-time (ps) in
// [opts.Start, opts.End), walking the 'm' table.
func (s *Store) GetRangeHashes(opts RangeOptions) ([]chainhash.Hash, txerr.R) {
	prefix := tablePrefix(s.wid, tagByPS)
	start, end := psBounds(prefix, opts)
	hashes, err := s.scanHashes(prefix, start, end, opts.Reverse)
	if err != nil {
		return nil, err
	}
	return opts.apply(hashes), nil
}

// GetAccountRangeHashes is GetRangeHashes scoped to one account, walking
// the 'M' table.
func (s *Store) GetAccountRangeHashes(account uint32, opts RangeOptions) ([]chainhash.Hash, txerr.R) {
	prefix := keyByAccountPS(s.wid, account, 0, &chainhash.Hash{})
	prefix = prefix[:len(prefix)-4-hashSize]
	start, end := psBounds(prefix, opts)
	hashes, err := s.scanHashes(prefix, start, end, opts.Reverse)
	if err != nil {
		return nil, err
	}
	return opts.apply(hashes), nil
}

func psBounds(prefix []byte, opts RangeOptions) (start, end []byte) {
	if opts.Start != 0 || opts.End != 0 {
		start = append(append([]byte(nil), prefix...), u32be(uint32(opts.Start))...)
		end = append(append([]byte(nil), prefix...), u32be(uint32(opts.End))...)
	}
	return start, end
}

func u32be(v uint32) []byte {
	b := make([]byte, 4)
	putU32(b, v)
	return b
}

// scanHashes is the shared engine behind every hash-only history query: it
// walks a table whose keys end in a 32-byte hash and collects that suffix.
func (s *Store) scanHashes(prefix, start, end []byte, reverse bool) ([]chainhash.Hash, txerr.R) {
	var out []chainhash.Hash
	err := s.kv.Keys(prefix, start, end, reverse, func(key []byte) (bool, txerr.R) {
		if len(key) < hashSize {
			return true, nil
		}
		var h chainhash.Hash
		copy(h[:], key[len(key)-hashSize:])
		out = append(out, h)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOutpoints returns every outpoint this wallet currently has a credit
// for, optionally scoped to account.
func (s *Store) GetOutpoints(account *uint32) ([]Outpoint, txerr.R) {
	var out []Outpoint
	err := s.ForEachCredit(account, func(c *Credit) (bool, txerr.R) {
		out = append(out, c.Coin.Outpoint)
		return true, nil
	})
	return out, err
}

// ForEachCredit streams every credit this wallet tracks, optionally scoped
// to account, populating the coin cache as it goes (spec §4.6's
// ForEachUnspentOutput-style bulk iteration, added so GetBalance's
// from-scratch fallback and other bulk consumers don't need a second
// bespoke scan).
func (s *Store) ForEachCredit(account *uint32, fn func(*Credit) (bool, txerr.R)) txerr.R {
	var prefix []byte
	if account != nil {
		prefix = keyCreditByAccount(s.wid, *account, Outpoint{})
		prefix = prefix[:len(prefix)-hashSize-4]
	} else {
		prefix = tablePrefix(s.wid, tagCredit)
	}
	return s.kv.Values(prefix, nil, nil, false, func(key, value []byte) (bool, txerr.R) {
		op, ok := parseOutpointSuffix(key, len(key)-hashSize-4)
		if !ok {
			return true, nil
		}
		s.cache.set(keyCredit(s.wid, op), value)
		credit, derr := DeserializeCredit(op, value)
		if derr != nil {
			return false, derr
		}
		return fn(credit)
	})
}

// GetCoins returns every unspent (spent=false), unlocked credit, optionally
// scoped to account (spec's getCoins/getAccountCoins).
func (s *Store) GetCoins(account *uint32) ([]*Credit, txerr.R) {
	var out []*Credit
	err := s.ForEachCredit(account, func(c *Credit) (bool, txerr.R) {
		if c.Spent {
			return true, nil
		}
		if s.isLocked(c.Coin.Outpoint) {
			return true, nil
		}
		out = append(out, c)
		return true, nil
	})
	return out, err
}

// GetCredits returns every tracked credit regardless of spent/locked state.
func (s *Store) GetCredits(account *uint32) ([]*Credit, txerr.R) {
	var out []*Credit
	err := s.ForEachCredit(account, func(c *Credit) (bool, txerr.R) {
		out = append(out, c)
		return true, nil
	})
	return out, err
}

// GetSpentCredits returns the undo coins recorded for each input of hash,
// aligned with tx.inputs -- entries may be nil where no undo coin exists.
func (s *Store) GetSpentCredits(rec *TxRecord) ([]*Credit, txerr.R) {
	out := make([]*Credit, len(rec.MsgTx.TxIn))
	for i := range rec.MsgTx.TxIn {
		spender := spenderOutpoint(rec.Hash, uint32(i))
		uc, ok, err := s.loadUndoCoinRaw(spender)
		if err != nil {
			return nil, err
		}
		if ok {
			uc.Coin.Outpoint = OutpointFromWire(rec.MsgTx.TxIn[i].PreviousOutPoint)
			out[i] = uc
		}
	}
	return out, nil
}

// GetBalance returns the wallet-wide balance from the fast committed-state
// path, or (when account is non-nil) computed by summing that account's
// credits, since the singleton State record isn't broken out per account.
func (s *Store) GetBalance(account *uint32) (Balance, txerr.R) {
	if account == nil {
		return s.Balance(), nil
	}
	var bal Balance
	err := s.ForEachCredit(account, func(c *Credit) (bool, txerr.R) {
		if c.Coin.Height != -1 {
			bal.Confirmed += c.Coin.Value
		}
		if !c.Spent {
			bal.Unconfirmed += c.Coin.Value
		}
		return true, nil
	})
	return bal, err
}

// FillCoins attaches the current credit (if any) to each of tx's inputs by
// outpoint, for callers building a UI view of a transaction's inputs.
func (s *Store) FillCoins(rec *TxRecord) ([]*Coin, txerr.R) {
	out := make([]*Coin, len(rec.MsgTx.TxIn))
	for i, in := range rec.MsgTx.TxIn {
		prevout := OutpointFromWire(in.PreviousOutPoint)
		credit, ok, err := s.loadCredit(prevout)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = &credit.Coin
		}
	}
	return out, nil
}

// FillHistory attaches the undo coin recorded for each of tx's inputs,
// for callers reconstructing historical input values after the credit
// itself may have been deleted.
func (s *Store) FillHistory(rec *TxRecord) ([]*Coin, txerr.R) {
	credits, err := s.GetSpentCredits(rec)
	if err != nil {
		return nil, err
	}
	out := make([]*Coin, len(credits))
	for i, c := range credits {
		if c != nil {
			out[i] = &c.Coin
		}
	}
	return out, nil
}

// GetDetails builds the full Details projection for hash: resolved
// addresses, values, and account attribution for every input and output.
func (s *Store) GetDetails(hash *chainhash.Hash) (*Details, txerr.R) {
	rec, ok, err := s.getTxRecord(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound.Errorf("no such transaction %s", hash)
	}

	details := &Details{Hash: *hash, Height: rec.Height}
	addrOf := func(script []byte) string {
		_, addrs, _, aerr := txscript.ExtractPkScriptAddrs(script, s.opts.Params)
		if aerr != nil || len(addrs) != 1 {
			return ""
		}
		return addrs[0].EncodeAddress()
	}
	coins, err := s.FillHistory(rec)
	if err != nil {
		return nil, err
	}
	for i := range rec.MsgTx.TxIn {
		member := DetailsMember{Index: uint32(i)}
		if coins[i] != nil {
			member.Value = coins[i].Value
			member.Address = addrOf(coins[i].Script)
			if path, ok, perr := s.accountForScript(coins[i].Script); perr == nil && ok {
				member.Ours = true
				member.Path = path
				details.addAccount(path.Account)
			}
		}
		details.Inputs = append(details.Inputs, member)
	}
	for i, out := range rec.MsgTx.TxOut {
		member := DetailsMember{Index: uint32(i), Address: addrOf(out.PkScript), Value: btcutil.Amount(out.Value)}
		if path, ok, perr := s.accountForScript(out.PkScript); perr == nil && ok {
			member.Ours = true
			member.Path = path
			details.addAccount(path.Account)
		}
		details.Outputs = append(details.Outputs, member)
	}

	log.Tracef("details for %s: %s", hash, spew.Sdump(details))
	return details, nil
}

// lockTX freezes every input outpoint of tx so GetCoins won't offer them
// for spending. Locks are in-memory only and never persisted (spec §4.6).
func (s *Store) lockTX(rec *TxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range rec.MsgTx.TxIn {
		s.locked[OutpointFromWire(in.PreviousOutPoint)] = struct{}{}
	}
}

// unlockTX reverses lockTX.
func (s *Store) unlockTX(rec *TxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range rec.MsgTx.TxIn {
		delete(s.locked, OutpointFromWire(in.PreviousOutPoint))
	}
}

// unlockOutpoint releases a single outpoint lock, used by insert once a
// transaction spending it has actually been indexed.
func (s *Store) unlockOutpoint(op Outpoint) {
	delete(s.locked, op)
}

func (s *Store) isLocked(op Outpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locked[op]
	return ok
}

// Abandon removes a currently-pending transaction. Requires the tx to be
// mempool (spec §4.6) -- a confirmed transaction must be disconnected
// first.
func (s *Store) Abandon(hash *chainhash.Hash) txerr.R {
	rec, ok, err := s.getTxRecord(hash)
	if err != nil {
		return err
	}
	if !ok || rec.Height != -1 {
		return ErrPrecondition.Errorf("abandon: %s is not pending", hash)
	}
	return s.Remove(*hash)
}

// Zap removes every pending transaction older than age (as of now, a unix
// timestamp), optionally scoped to account, and returns the hashes it
// removed.
func (s *Store) Zap(account *uint32, now int64, age int64) ([]chainhash.Hash, txerr.R) {
	var hashes []chainhash.Hash
	var rerr txerr.R
	if account != nil {
		hashes, rerr = s.GetAccountRangeHashes(*account, RangeOptions{End: now - age})
	} else {
		hashes, rerr = s.GetRangeHashes(RangeOptions{End: now - age})
	}
	if rerr != nil {
		return nil, rerr
	}

	var removed []chainhash.Hash
	for _, h := range hashes {
		rec, ok, err := s.getTxRecord(&h)
		if err != nil {
			return removed, err
		}
		if !ok || rec.Height != -1 {
			continue
		}
		if err := s.Remove(h); err != nil {
			return removed, err
		}
		removed = append(removed, h)
	}
	return removed, nil
}
