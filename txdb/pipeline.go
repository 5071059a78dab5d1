// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/nodewallet/txdb/txerr"
	"github.com/nodewallet/txdb/txlog"
)

// looksLikeOurs is the cheap heuristic SPV mode uses to decide whether an
// input whose previous output we haven't seen yet is worth tracking as an
// orphan: a present scriptSig or witness at least means the input is
// actually signed, as opposed to a malformed or placeholder input.
func looksLikeOurs(sigScript []byte, witness wire.TxWitness) bool {
	return len(sigScript) > 0 || len(witness) > 0
}

// verifyOrphanInput re-runs script verification for the input of orphanTx
// that spends credit's outpoint, used when Options.Verify is set so an
// orphan is only resolved once its signature actually checks out against
// the now-known previous output.
func (s *Store) verifyOrphanInput(orphanTx *TxRecord, credit *Credit) bool {
	idx := -1
	for i, in := range orphanTx.MsgTx.TxIn {
		if OutpointFromWire(in.PreviousOutPoint) == credit.Coin.Outpoint {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	engine, err := txscript.NewEngine(credit.Coin.Script, &orphanTx.MsgTx, idx,
		txscript.StandardVerifyFlags, nil, nil, int64(credit.Coin.Value))
	if err != nil {
		return false
	}
	return engine.Execute() == nil
}

// BlockMeta identifies the block a confirmed transaction belongs to. A nil
// *BlockMeta passed to Add means "this transaction is still in the
// mempool" (height -1).
type BlockMeta struct {
	Hash   chainhash.Hash
	Height int32
	Time   uint32
}

// accountForScript resolves script's address (if any) through the store's
// PathResolver.
func (s *Store) accountForScript(script []byte) (path Path, ok bool, err txerr.R) {
	_, addrs, _, serr := txscript.ExtractPkScriptAddrs(script, s.opts.Params)
	if serr != nil || len(addrs) != 1 {
		return Path{}, false, nil
	}
	return s.resolver.Path(addrs[0])
}

// getTxRecord loads the extended tx record for hash, if it exists.
func (s *Store) getTxRecord(hash *chainhash.Hash) (*TxRecord, bool, txerr.R) {
	raw, err := s.kv.Get(keyTx(s.wid, hash))
	if err != nil {
		return nil, false, ErrDatabase.New("loading tx record", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	rec, derr := DeserializeTxRecord(raw)
	if derr != nil {
		return nil, false, derr
	}
	return rec, true, nil
}

func (s *Store) stagePutTxRecord(rec *TxRecord) txerr.R {
	raw, err := rec.Serialize()
	if err != nil {
		return err
	}
	s.put(keyTx(s.wid, &rec.Hash), raw)
	return nil
}

// loadCredit loads a credit by outpoint, consulting the coin cache first.
func (s *Store) loadCredit(op Outpoint) (*Credit, bool, txerr.R) {
	key := keyCredit(s.wid, op)
	if raw, ok := s.cache.get(key); ok {
		if raw == nil {
			return nil, false, nil
		}
		c, derr := DeserializeCredit(op, raw)
		if derr != nil {
			return nil, false, derr
		}
		return c, true, nil
	}
	raw, err := s.kv.Get(key)
	if err != nil {
		return nil, false, ErrDatabase.New("loading credit", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	s.cache.set(key, raw)
	c, derr := DeserializeCredit(op, raw)
	if derr != nil {
		return nil, false, derr
	}
	return c, true, nil
}

// saveCredit stages a credit under both c[op] and, when its script
// resolves to a wallet address, C[account,op], and primes the coin cache
// and the global outpoint map.
func (s *Store) saveCredit(b *batchState, credit *Credit) txerr.R {
	raw := credit.Serialize()
	ck := keyCredit(s.wid, credit.Coin.Outpoint)
	s.put(ck, raw)
	s.cache.push(ck, raw)

	path, ok, err := s.accountForScript(credit.Coin.Script)
	if err != nil {
		return err
	}
	if ok {
		s.put(keyCreditByAccount(s.wid, path.Account, credit.Coin.Outpoint), raw)
		if derr := s.dir.WriteOutpointMap(s.wid, &credit.Coin.Outpoint.Hash, credit.Coin.Outpoint.Index); derr != nil {
			return ErrDatabase.New("updating outpoint map", derr)
		}
	}
	return nil
}

// removeCreditFull deletes a credit outright: c[op], C[account,op] (if
// resolvable), cache, and the global outpoint map entry.
func (s *Store) removeCreditFull(b *batchState, credit *Credit) txerr.R {
	ck := keyCredit(s.wid, credit.Coin.Outpoint)
	s.del(ck)
	s.cache.unpush(ck)

	path, ok, err := s.accountForScript(credit.Coin.Script)
	if err != nil {
		return err
	}
	if ok {
		s.del(keyCreditByAccount(s.wid, path.Account, credit.Coin.Outpoint))
		if derr := s.dir.UnwriteOutpointMap(s.wid, &credit.Coin.Outpoint.Hash, credit.Coin.Outpoint.Index); derr != nil {
			return ErrDatabase.New("updating outpoint map", derr)
		}
	}
	return nil
}

// spendCredit records that prevout (owned by a Credit we're tracking) was
// spent by spender: writes the spent marker and an undo coin, and returns
// the credit found at prevout (nil if we weren't tracking it). Decrementing
// counters and deciding spent-vs-deleted is the caller's job (it differs
// between mempool and confirmed spends -- see insert).
func (s *Store) spendCredit(b *batchState, prevout Outpoint, spender Outpoint) (*Credit, txerr.R) {
	credit, ok, err := s.loadCredit(prevout)
	if err != nil {
		return nil, err
	}
	s.put(keySpentMarker(s.wid, prevout), spender.serialize())
	if !ok {
		return nil, nil
	}
	s.put(keyUndoCoin(s.wid, spender), credit.Serialize())
	return credit, nil
}

// serialize encodes an Outpoint as 32-byte hash ‖ 4-byte LE index, the
// encoding used for values (as opposed to key suffixes, which are BE).
func (o Outpoint) serialize() []byte {
	b := make([]byte, hashSize+4)
	copy(b, o.Hash[:])
	binary.LittleEndian.PutUint32(b[hashSize:], o.Index)
	return b
}

func deserializeOutpointValue(b []byte) (Outpoint, txerr.R) {
	if len(b) != hashSize+4 {
		return Outpoint{}, ErrData.Errorf("outpoint value wrong size: %d bytes", len(b))
	}
	var op Outpoint
	copy(op.Hash[:], b[:hashSize])
	op.Index = binary.LittleEndian.Uint32(b[hashSize:])
	return op, nil
}

// indexAdd writes the secondary index entries for a freshly-inserted tx:
// m[ps,hash] and T/M for every account, plus p/P (mempool) or h/H
// (confirmed) depending on height.
func (s *Store) indexAdd(rec *TxRecord, accounts []uint32) {
	s.put(keyByPS(s.wid, uint32(rec.PS), &rec.Hash), nil)
	for _, acct := range accounts {
		s.put(keyByAccount(s.wid, acct, &rec.Hash), nil)
		s.put(keyByAccountPS(s.wid, acct, uint32(rec.PS), &rec.Hash), nil)
	}
	if rec.Height == -1 {
		s.put(keyPending(s.wid, &rec.Hash), nil)
		for _, acct := range accounts {
			s.put(keyPendingByAccount(s.wid, acct, &rec.Hash), nil)
		}
	} else {
		s.put(keyByHeight(s.wid, rec.Height, &rec.Hash), nil)
		for _, acct := range accounts {
			s.put(keyByAccountHeight(s.wid, acct, rec.Height, &rec.Hash), nil)
		}
	}
}

// indexRemove deletes every secondary index entry written by indexAdd.
func (s *Store) indexRemove(rec *TxRecord, accounts []uint32) {
	s.del(keyByPS(s.wid, uint32(rec.PS), &rec.Hash))
	for _, acct := range accounts {
		s.del(keyByAccount(s.wid, acct, &rec.Hash))
		s.del(keyByAccountPS(s.wid, acct, uint32(rec.PS), &rec.Hash))
	}
	if rec.Height == -1 {
		s.del(keyPending(s.wid, &rec.Hash))
		for _, acct := range accounts {
			s.del(keyPendingByAccount(s.wid, acct, &rec.Hash))
		}
	} else {
		s.del(keyByHeight(s.wid, rec.Height, &rec.Hash))
		for _, acct := range accounts {
			s.del(keyByAccountHeight(s.wid, acct, rec.Height, &rec.Hash))
		}
	}
}

// indexMoveToConfirmed replaces the pending (p/P) entries with confirmed
// (h/H) ones after a confirm.
func (s *Store) indexMoveToConfirmed(rec *TxRecord, accounts []uint32) {
	s.del(keyPending(s.wid, &rec.Hash))
	s.put(keyByHeight(s.wid, rec.Height, &rec.Hash), nil)
	for _, acct := range accounts {
		s.del(keyPendingByAccount(s.wid, acct, &rec.Hash))
		s.put(keyByAccountHeight(s.wid, acct, rec.Height, &rec.Hash), nil)
	}
}

// indexMoveToPending is the inverse of indexMoveToConfirmed, used by
// disconnect. oldHeight is the height being vacated.
func (s *Store) indexMoveToPending(rec *TxRecord, oldHeight int32, accounts []uint32) {
	s.del(keyByHeight(s.wid, oldHeight, &rec.Hash))
	s.put(keyPending(s.wid, &rec.Hash), nil)
	for _, acct := range accounts {
		s.del(keyByAccountHeight(s.wid, acct, oldHeight, &rec.Hash))
		s.put(keyPendingByAccount(s.wid, acct, &rec.Hash), nil)
	}
}

func (s *Store) loadBlockRecord(height int32) (*BlockRecord, txerr.R) {
	raw, err := s.kv.Get(keyBlockRecord(s.wid, height))
	if err != nil {
		return nil, ErrDatabase.New("loading block record", err)
	}
	if raw == nil {
		return nil, nil
	}
	return DeserializeBlockRecord(raw)
}

// addBlockRecord appends hash to the block record at block.Height,
// creating it if absent, and marks the global block map.
func (s *Store) addBlockRecord(block *BlockMeta, hash chainhash.Hash) txerr.R {
	rec, err := s.loadBlockRecord(block.Height)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &BlockRecord{Hash: block.Hash, Height: block.Height, Time: block.Time}
	}
	rec.Txs = append(rec.Txs, hash)
	s.put(keyBlockRecord(s.wid, block.Height), rec.Serialize())
	if derr := s.dir.WriteBlockMap(s.wid, block.Height); derr != nil {
		return ErrDatabase.New("updating block map", derr)
	}
	return nil
}

// removeBlockRecord removes hash from the block record at height, deleting
// the record entirely if it becomes empty, and clears the global block map
// entry in that case.
func (s *Store) removeBlockRecord(height int32, hash chainhash.Hash) txerr.R {
	rec, err := s.loadBlockRecord(height)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if empty := rec.removeTx(hash); empty {
		s.del(keyBlockRecord(s.wid, height))
		if derr := s.dir.UnwriteBlockMap(s.wid, height); derr != nil {
			return ErrDatabase.New("updating block map", derr)
		}
		return nil
	}
	s.put(keyBlockRecord(s.wid, height), rec.Serialize())
	return nil
}

// isRBF reports whether tx should be treated as an RBF transaction: it
// signals BIP-125 opt-in directly, or it spends an output of a tx already
// tainted under prefix 'r'.
func (s *Store) isRBF(tx *TxRecord) (bool, txerr.R) {
	return s.rbf(s, tx)
}

func bip125RBFPolicy(s *Store, tx *TxRecord) (bool, txerr.R) {
	for _, in := range tx.MsgTx.TxIn {
		if in.Sequence < 0xfffffffe {
			return true, nil
		}
	}
	for _, in := range tx.MsgTx.TxIn {
		tainted, err := s.kv.Has(keyRBF(s.wid, &in.PreviousOutPoint.Hash))
		if err != nil {
			return false, ErrDatabase.New("checking rbf taint", err)
		}
		if tainted {
			return true, nil
		}
	}
	return false, nil
}

// Add is the sole entry point for ingesting a transaction, mempool or
// confirmed (spec §4.5). block is nil for a mempool transaction.
func (s *Store) Add(rec *TxRecord, block *BlockMeta) txerr.R {
	return s.runBatch(func(b *batchState) txerr.R {
		existing, ok, err := s.getTxRecord(&rec.Hash)
		if err != nil {
			return err
		}
		if ok {
			if existing.Height != -1 {
				return nil
			}
			if block == nil {
				return nil
			}
			existing.Block = block.Hash
			existing.Height = block.Height
			existing.BlockTs = block.Time
			return s.confirmLoaded(b, existing, block)
		}

		if block == nil {
			rbf, rerr := s.isRBF(rec)
			if rerr != nil {
				return rerr
			}
			if rbf {
				s.put(keyRBF(s.wid, &rec.Hash), []byte{1})
				return nil
			}
			ok, cerr := s.removeConflicts(b, rec, true)
			if cerr != nil {
				return cerr
			}
			if !ok {
				return nil
			}
		} else {
			if _, cerr := s.removeConflicts(b, rec, false); cerr != nil {
				return cerr
			}
			s.del(keyRBF(s.wid, &rec.Hash))
		}
		return s.insert(b, rec, block)
	})
}

// insert materializes a not-yet-indexed transaction: spends its inputs
// against tracked credits, credits its outputs, and writes the tx record
// and every secondary index, exactly as spec §4.5 describes.
func (s *Store) insert(b *batchState, rec *TxRecord, block *BlockMeta) txerr.R {
	details := &Details{Hash: rec.Hash, Height: -1}
	if block != nil {
		details.Height = block.Height
	}
	touched := false

	if !isCoinbase(rec) {
		for i, in := range rec.MsgTx.TxIn {
			prevout := OutpointFromWire(in.PreviousOutPoint)
			spender := spenderOutpoint(rec.Hash, uint32(i))

			credit, err := s.spendCredit(b, prevout, spender)
			if err != nil {
				return err
			}
			if credit == nil {
				if s.opts.Resolution && looksLikeOurs(in.SignatureScript, in.Witness) {
					s.orphans.Add(prevout, rec, uint32(i))
				}
				continue
			}
			touched = true

			path, hasPath, perr := s.accountForScript(credit.Coin.Script)
			if perr != nil {
				return perr
			}
			member := DetailsMember{
				Index: uint32(i),
				Value: credit.Coin.Value,
				Ours:  hasPath,
				Path:  path,
			}
			details.Inputs = append(details.Inputs, member)
			if hasPath {
				details.addAccount(path.Account)
			}

			b.state.CoinCount--
			b.state.UnconfirmedSatoshis -= int64(credit.Coin.Value)
			if block == nil {
				credit.Spent = true
				if err := s.saveCredit(b, credit); err != nil {
					return err
				}
			} else {
				b.state.ConfirmedSatoshis -= int64(credit.Coin.Value)
				if err := s.removeCreditFull(b, credit); err != nil {
					return err
				}
			}
			log.Debugf("%s outpoint %s value %s", txlog.GreenBg("spent"), prevout.Hash.String(), txlog.Coins(credit.Coin.Value.ToBTC()))
		}
	}

	for i, out := range rec.MsgTx.TxOut {
		path, hasPath, err := s.accountForScript(out.PkScript)
		if err != nil {
			return err
		}
		if !hasPath {
			continue
		}
		touched = true

		resolved, rerr := s.resolveInput(b, rec, uint32(i), path, block)
		if rerr != nil {
			return rerr
		}

		member := DetailsMember{
			Index: uint32(i),
			Value: btcutil.Amount(out.Value),
			Ours:  true,
			Path:  path,
		}
		details.Outputs = append(details.Outputs, member)
		details.addAccount(path.Account)

		if resolved {
			continue
		}

		height := int32(-1)
		if block != nil {
			height = block.Height
		}
		op := Outpoint{Hash: rec.Hash, Index: uint32(i)}
		credit := &Credit{Coin: Coin{
			Outpoint: op,
			Value:    btcutil.Amount(out.Value),
			Script:   append([]byte(nil), out.PkScript...),
			Height:   height,
			Coinbase: isCoinbase(rec),
		}}
		if err := s.saveCredit(b, credit); err != nil {
			return err
		}
		b.state.CoinCount++
		b.state.UnconfirmedSatoshis += int64(credit.Coin.Value)
		if block != nil {
			b.state.ConfirmedSatoshis += int64(credit.Coin.Value)
		}

		if _, addrs, _, aerr := txscript.ExtractPkScriptAddrs(out.PkScript, s.opts.Params); aerr == nil && len(addrs) == 1 {
			log.Debugf("%s [%s] tx [%s] value %s", txlog.GreenBg("credit"),
				txlog.Address(addrs[0].String()), txlog.Txid(rec.Hash.String()), txlog.Coins(credit.Coin.Value.ToBTC()))
		}

		if s.opts.Resolution {
			for _, orphanTx := range s.orphans.Resolve(op) {
				if s.opts.Verify && !s.verifyOrphanInput(orphanTx, credit) {
					log.Warnf("orphan %s failed script verification against %s, dropping",
						orphanTx.Hash, op.Hash)
					continue
				}
				var orphanBlock *BlockMeta
				if orphanTx.Height != -1 {
					orphanBlock = &BlockMeta{Hash: orphanTx.Block, Height: orphanTx.Height, Time: orphanTx.BlockTs}
				}
				if err := s.insert(b, orphanTx, orphanBlock); err != nil {
					return err
				}
			}
		}
	}

	if !touched {
		// Nothing in rec concerns this wallet, so no tx record, index entry
		// or event is written for it. The bare spent markers spendCredit
		// staged for its inputs are not un-staged: they stay in the open
		// batch and runBatch commits them with it. The batch is not dropped
		// here, since that would pull the rug out from under an outer
		// insert when this call is itself an orphan-resolution recursion.
		return nil
	}

	if err := s.stagePutTxRecord(rec); err != nil {
		return err
	}
	s.indexAdd(rec, details.Accounts)
	if block != nil {
		if err := s.addBlockRecord(block, rec.Hash); err != nil {
			return err
		}
	}
	b.state.TxCount++

	for _, in := range rec.MsgTx.TxIn {
		s.unlockOutpoint(OutpointFromWire(in.PreviousOutPoint))
	}

	s.stage(bufferedEvent{kind: eventTx, tx: rec, details: details})
	s.stage(bufferedEvent{kind: eventBalance, balance: b.state.Balance(), details: details})
	return nil
}

// resolveInput handles the case where output i of rec resolves a
// previously-recorded bare spent marker on (rec.Hash, i): we now know the
// spending transaction, so the undo coin is written retroactively.
func (s *Store) resolveInput(b *batchState, rec *TxRecord, i uint32, path Path, block *BlockMeta) (bool, txerr.R) {
	op := Outpoint{Hash: rec.Hash, Index: i}
	markerKey := keySpentMarker(s.wid, op)
	raw, err := s.kv.Get(markerKey)
	if err != nil {
		return false, ErrDatabase.New("loading spent marker", err)
	}
	if raw == nil {
		return false, nil
	}
	spender, derr := deserializeOutpointValue(raw)
	if derr != nil {
		return false, derr
	}
	if spender.Hash == rec.Hash {
		return false, Bug.Errorf("resolveInput: %s appears to spend its own output", rec.Hash)
	}

	undoKey := keyUndoCoin(s.wid, spender)
	has, herr := s.kv.Has(undoKey)
	if herr != nil {
		return false, ErrDatabase.New("checking undo coin", herr)
	}

	height := int32(-1)
	if block != nil {
		height = block.Height
	}
	out := rec.MsgTx.TxOut[i]
	credit := &Credit{Coin: Coin{
		Outpoint: op,
		Value:    btcutil.Amount(out.Value),
		Script:   append([]byte(nil), out.PkScript...),
		Height:   height,
		Coinbase: isCoinbase(rec),
	}}

	spenderRec, spenderOk, serr := s.getTxRecord(&spender.Hash)
	if serr != nil {
		return false, serr
	}
	spenderConfirmed := spenderOk && spenderRec.Height != -1

	if !has {
		s.put(undoKey, credit.Serialize())
	}
	if !spenderConfirmed {
		credit.Spent = true
		if err := s.saveCredit(b, credit); err != nil {
			return false, err
		}
		b.state.CoinCount++
		b.state.UnconfirmedSatoshis += int64(credit.Coin.Value)
		if block != nil {
			b.state.ConfirmedSatoshis += int64(credit.Coin.Value)
		}
	}
	return true, nil
}

func isCoinbase(rec *TxRecord) bool {
	return len(rec.MsgTx.TxIn) == 1 && rec.MsgTx.TxIn[0].PreviousOutPoint.Index == 0xffffffff &&
		rec.MsgTx.TxIn[0].PreviousOutPoint.Hash == chainhash.Hash{}
}

// Confirm moves a currently-mempool transaction to a block (spec §4.5).
func (s *Store) Confirm(hash *chainhash.Hash, block *BlockMeta) txerr.R {
	return s.runBatch(func(b *batchState) txerr.R {
		rec, ok, err := s.getTxRecord(hash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPrecondition.Errorf("confirm: no such transaction %s", hash)
		}
		if rec.Height != -1 {
			return ErrPrecondition.Errorf("confirm: %s is already confirmed", hash)
		}
		return s.confirmLoaded(b, rec, block)
	})
}

func (s *Store) confirmLoaded(b *batchState, rec *TxRecord, block *BlockMeta) txerr.R {
	details := &Details{Hash: rec.Hash, Height: block.Height}

	if !isCoinbase(rec) {
		for i, in := range rec.MsgTx.TxIn {
			prevout := OutpointFromWire(in.PreviousOutPoint)
			spender := spenderOutpoint(rec.Hash, uint32(i))

			credit, _, err := s.loadCredit(prevout)
			if err != nil {
				return err
			}
			if credit == nil {
				raw, gerr := s.kv.Get(keyUndoCoin(s.wid, spender))
				if gerr != nil {
					return ErrDatabase.New("loading undo coin", gerr)
				}
				if raw == nil {
					continue
				}
				uc, derr := DeserializeCredit(prevout, raw)
				if derr != nil {
					return derr
				}
				credit = uc
			}
			path, hasPath, perr := s.accountForScript(credit.Coin.Script)
			if perr != nil {
				return perr
			}
			if hasPath {
				details.addAccount(path.Account)
			}
			b.state.ConfirmedSatoshis -= int64(credit.Coin.Value)
			if err := s.removeCreditFull(b, credit); err != nil {
				return err
			}
		}
	}

	for i := range rec.MsgTx.TxOut {
		op := Outpoint{Hash: rec.Hash, Index: uint32(i)}
		credit, ok, err := s.loadCredit(op)
		if err != nil {
			return err
		}
		if ok {
			path, hasPath, perr := s.accountForScript(credit.Coin.Script)
			if perr != nil {
				return perr
			}
			if hasPath {
				details.addAccount(path.Account)
			}

			credit.Coin.Height = block.Height
			if err := s.saveCredit(b, credit); err != nil {
				return err
			}
			b.state.ConfirmedSatoshis += int64(credit.Coin.Value)
			if credit.Spent {
				spender := findSpender(s, op)
				if spender != nil {
					uc, _, uerr := s.loadUndoCoinRaw(*spender)
					if uerr != nil {
						return uerr
					}
					if uc != nil {
						uc.Coin.Height = block.Height
						s.put(keyUndoCoin(s.wid, *spender), uc.Serialize())
					}
				}
			}
		}
	}

	s.del(keyRBF(s.wid, &rec.Hash))
	rec.Block = block.Hash
	rec.Height = block.Height
	rec.BlockTs = block.Time
	if err := s.stagePutTxRecord(rec); err != nil {
		return err
	}
	log.Debugf("marking transaction [%s] mined at height [%s]", txlog.Txid(rec.Hash.String()), txlog.Height(block.Height))
	s.indexMoveToConfirmed(rec, details.Accounts)
	if err := s.addBlockRecord(block, rec.Hash); err != nil {
		return err
	}

	s.stage(bufferedEvent{kind: eventConfirmed, tx: rec, details: details})
	s.stage(bufferedEvent{kind: eventBalance, balance: b.state.Balance(), details: details})
	return nil
}

// loadUndoCoinRaw loads the undo coin at spender's key, if any.
func (s *Store) loadUndoCoinRaw(spender Outpoint) (*Credit, bool, txerr.R) {
	raw, err := s.kv.Get(keyUndoCoin(s.wid, spender))
	if err != nil {
		return nil, false, ErrDatabase.New("loading undo coin", err)
	}
	if raw == nil {
		return nil, false, nil
	}
	c, derr := DeserializeCredit(spender, raw)
	if derr != nil {
		return nil, false, derr
	}
	return c, true, nil
}

// findSpender looks up the spender outpoint recorded for prevout's spent
// marker, or nil if none.
func findSpender(s *Store, prevout Outpoint) *Outpoint {
	raw, err := s.kv.Get(keySpentMarker(s.wid, prevout))
	if err != nil || raw == nil {
		return nil
	}
	op, derr := deserializeOutpointValue(raw)
	if derr != nil {
		return nil
	}
	return &op
}

// Disconnect reverses a confirmation (spec §4.5), used on reorg.
func (s *Store) Disconnect(hash *chainhash.Hash) txerr.R {
	return s.runBatch(func(b *batchState) txerr.R {
		rec, ok, err := s.getTxRecord(hash)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPrecondition.Errorf("disconnect: no such transaction %s", hash)
		}
		if rec.Height == -1 {
			return ErrPrecondition.Errorf("disconnect: %s is not confirmed", hash)
		}

		oldHeight := rec.Height
		details := &Details{Hash: rec.Hash, Height: -1}

		if !isCoinbase(rec) {
			for i, in := range rec.MsgTx.TxIn {
				spender := spenderOutpoint(rec.Hash, uint32(i))
				uc, ok, uerr := s.loadUndoCoinRaw(spender)
				if uerr != nil {
					return uerr
				}
				if !ok {
					continue
				}
				// The undo coin is keyed by the spender; the credit it
				// restores lives under the prevout.
				uc.Coin.Outpoint = OutpointFromWire(in.PreviousOutPoint)
				path, hasPath, perr := s.accountForScript(uc.Coin.Script)
				if perr != nil {
					return perr
				}
				if hasPath {
					details.addAccount(path.Account)
				}
				uc.Spent = true
				if err := s.saveCredit(b, uc); err != nil {
					return err
				}
				b.state.ConfirmedSatoshis += int64(uc.Coin.Value)
			}
		}

		for i := range rec.MsgTx.TxOut {
			op := Outpoint{Hash: rec.Hash, Index: uint32(i)}
			credit, ok, err := s.loadCredit(op)
			if err != nil {
				return err
			}
			if ok {
				path, hasPath, perr := s.accountForScript(credit.Coin.Script)
				if perr != nil {
					return perr
				}
				if hasPath {
					details.addAccount(path.Account)
				}
				b.state.ConfirmedSatoshis -= int64(credit.Coin.Value)
				credit.Coin.Height = -1
				if err := s.saveCredit(b, credit); err != nil {
					return err
				}
				continue
			}
			spender := findSpender(s, op)
			if spender != nil {
				uc, found, uerr := s.loadUndoCoinRaw(*spender)
				if uerr != nil {
					return uerr
				}
				if found {
					uc.Coin.Height = -1
					s.put(keyUndoCoin(s.wid, *spender), uc.Serialize())
				}
			}
		}

		if err := s.removeBlockRecord(oldHeight, rec.Hash); err != nil {
			return err
		}
		var zero chainhash.Hash
		rec.Block = zero
		rec.Height = -1
		rec.BlockTs = 0
		if err := s.stagePutTxRecord(rec); err != nil {
			return err
		}
		log.Infof("%s tx [%s] from height [%s]", txlog.YellowBg("rolled back"), txlog.Txid(rec.Hash.String()), txlog.Height(oldHeight))
		s.indexMoveToPending(rec, oldHeight, details.Accounts)

		s.stage(bufferedEvent{kind: eventUnconfirmed, tx: rec, details: details})
		s.stage(bufferedEvent{kind: eventBalance, balance: b.state.Balance(), details: details})
		return nil
	})
}

// erase wipes every trace of rec from the store, regardless of its
// confirmation state (spec §4.5). Called only from within an open batch
// (Remove, removeRecursive, removeConflicts).
func (s *Store) erase(b *batchState, rec *TxRecord) txerr.R {
	details := &Details{Hash: rec.Hash, Height: rec.Height}
	mined := rec.Height != -1

	if !isCoinbase(rec) {
		for i, in := range rec.MsgTx.TxIn {
			prevout := OutpointFromWire(in.PreviousOutPoint)
			spender := spenderOutpoint(rec.Hash, uint32(i))

			uc, found, err := s.loadUndoCoinRaw(spender)
			if err != nil {
				return err
			}
			s.del(keySpentMarker(s.wid, prevout))
			if found {
				path, hasPath, perr := s.accountForScript(uc.Coin.Script)
				if perr != nil {
					return perr
				}
				if hasPath {
					details.addAccount(path.Account)
				}
				s.del(keyUndoCoin(s.wid, spender))
				uc.Coin.Outpoint = prevout
				uc.Spent = false
				if err := s.saveCredit(b, uc); err != nil {
					return err
				}
				b.state.CoinCount++
				b.state.UnconfirmedSatoshis += int64(uc.Coin.Value)
				if mined {
					b.state.ConfirmedSatoshis += int64(uc.Coin.Value)
				}
			}
		}
	}

	for i := range rec.MsgTx.TxOut {
		op := Outpoint{Hash: rec.Hash, Index: uint32(i)}
		credit, ok, err := s.loadCredit(op)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		path, hasPath, perr := s.accountForScript(credit.Coin.Script)
		if perr != nil {
			return perr
		}
		if hasPath {
			details.addAccount(path.Account)
		}
		if err := s.removeCreditFull(b, credit); err != nil {
			return err
		}
		b.state.CoinCount--
		b.state.UnconfirmedSatoshis -= int64(credit.Coin.Value)
		if mined {
			b.state.ConfirmedSatoshis -= int64(credit.Coin.Value)
		}
	}

	s.del(keyRBF(s.wid, &rec.Hash))
	s.indexRemove(rec, details.Accounts)
	s.del(keyTx(s.wid, &rec.Hash))
	if mined {
		if err := s.removeBlockRecord(rec.Height, rec.Hash); err != nil {
			return err
		}
	}
	b.state.TxCount--

	s.stage(bufferedEvent{kind: eventRemoveTx, tx: rec, details: details})
	s.stage(bufferedEvent{kind: eventBalance, balance: b.state.Balance(), details: details})
	return nil
}

// removeRecursive erases hash and, first, every transaction that spends
// one of its outputs -- spenders must be erased before spendees so the
// balance decrements net correctly (spec §4.5).
func (s *Store) removeRecursive(b *batchState, hash chainhash.Hash) txerr.R {
	rec, ok, err := s.getTxRecord(&hash)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for i := range rec.MsgTx.TxOut {
		op := Outpoint{Hash: hash, Index: uint32(i)}
		spender := findSpender(s, op)
		if spender == nil || spender.Hash == hash {
			continue
		}
		if err := s.removeRecursive(b, spender.Hash); err != nil {
			return err
		}
	}
	return s.erase(b, rec)
}

// Remove is the public entry point for removeRecursive (also used by
// Abandon and Zap in query.go).
func (s *Store) Remove(hash chainhash.Hash) txerr.R {
	return s.runBatch(func(b *batchState) txerr.R {
		return s.removeRecursive(b, hash)
	})
}

// removeConflicts gathers every transaction that spends an input tx also
// spends, and removes it (spec §4.5). If conf is true and any conflicting
// spender is already confirmed, it returns ok=false without removing
// anything -- the caller must abort the pending add.
func (s *Store) removeConflicts(b *batchState, tx *TxRecord, conf bool) (bool, txerr.R) {
	seen := make(map[chainhash.Hash]bool)
	var spenders []chainhash.Hash

	for _, in := range tx.MsgTx.TxIn {
		prevout := OutpointFromWire(in.PreviousOutPoint)
		spender := findSpender(s, prevout)
		if spender == nil || spender.Hash == tx.Hash {
			continue
		}
		if seen[spender.Hash] {
			continue
		}
		spenderRec, ok, err := s.getTxRecord(&spender.Hash)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if conf && spenderRec.Height != -1 {
			return false, nil
		}
		seen[spender.Hash] = true
		spenders = append(spenders, spender.Hash)
	}

	for _, h := range spenders {
		rec, ok, err := s.getTxRecord(&h)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := s.removeRecursive(b, h); err != nil {
			return false, err
		}
		s.stage(bufferedEvent{kind: eventConflict, tx: rec, details: &Details{Hash: rec.Hash, Height: rec.Height}})
	}
	return true, nil
}
