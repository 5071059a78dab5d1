// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/nodewallet/txdb/txerr"
	"github.com/nodewallet/txdb/walletiface"
)

// Outpoint is a (tx hash, output index) pair. The hash is a double-SHA256
// digest stored in the same internal byte order as chainhash.Hash (which
// displays it reversed/big-endian via String(), and is itself stored
// little-endian) -- this is also exactly the on-disk byte order used by the
// key codec.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// OutpointFromWire converts a wire.OutPoint to our Outpoint.
func OutpointFromWire(op wire.OutPoint) Outpoint {
	return Outpoint{Hash: op.Hash, Index: op.Index}
}

// Wire converts back to a wire.OutPoint.
func (o Outpoint) Wire() wire.OutPoint {
	return wire.OutPoint{Hash: o.Hash, Index: o.Index}
}

// spenderOutpoint identifies a specific input: the spending tx's hash and
// the index of the input within it. It reuses the Outpoint shape (Open
// Question 2 in SPEC_FULL.md): the 'd' table is keyed by this and the 's'
// table (keyed by the prevout) stores this as its value.
func spenderOutpoint(spenderHash chainhash.Hash, inputIndex uint32) Outpoint {
	return Outpoint{Hash: spenderHash, Index: inputIndex}
}

// Coin is an unspent output materialized from a transaction.
type Coin struct {
	Outpoint Outpoint
	Value    btcutil.Amount // satoshis
	Script   []byte
	Height   int32 // -1 if mempool
	Coinbase bool
}

// Serialize encodes a Coin as: value(i64 LE) ‖ height(i32 LE) ‖
// coinbase(1 byte) ‖ scriptLen(u32 LE) ‖ script. The outpoint is never
// part of the value -- it's always recovered from the key.
func (c *Coin) Serialize() []byte {
	buf := make([]byte, 8+4+1+4+len(c.Script))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.Value))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.Height))
	if c.Coinbase {
		buf[12] = 1
	}
	binary.LittleEndian.PutUint32(buf[13:17], uint32(len(c.Script)))
	copy(buf[17:], c.Script)
	return buf
}

// DeserializeCoin decodes the bytes written by Serialize, attaching
// outpoint (recovered by the caller from the key).
func DeserializeCoin(outpoint Outpoint, b []byte) (*Coin, txerr.R) {
	if len(b) < 17 {
		return nil, ErrData.Errorf("coin record too short: %d bytes", len(b))
	}
	value := int64(binary.LittleEndian.Uint64(b[0:8]))
	height := int32(binary.LittleEndian.Uint32(b[8:12]))
	coinbase := b[12] != 0
	scriptLen := binary.LittleEndian.Uint32(b[13:17])
	if uint32(len(b)-17) != scriptLen {
		return nil, ErrData.Errorf("coin record script length mismatch: have %d want %d", len(b)-17, scriptLen)
	}
	script := append([]byte(nil), b[17:]...)
	return &Coin{
		Outpoint: outpoint,
		Value:    btcutil.Amount(value),
		Script:   script,
		Height:   height,
		Coinbase: coinbase,
	}, nil
}

// Credit is a Coin plus a flag recording whether a mempool spend of it has
// been observed (see the Credit lifecycle in SPEC_FULL.md §3).
type Credit struct {
	Coin  Coin
	Spent bool
}

// Serialize encodes a Credit as the Coin bytes followed by one spent byte.
func (c *Credit) Serialize() []byte {
	coinBytes := c.Coin.Serialize()
	buf := make([]byte, len(coinBytes)+1)
	copy(buf, coinBytes)
	if c.Spent {
		buf[len(coinBytes)] = 1
	}
	return buf
}

// DeserializeCredit decodes the bytes written by Serialize.
func DeserializeCredit(outpoint Outpoint, b []byte) (*Credit, txerr.R) {
	if len(b) < 1 {
		return nil, ErrData.Errorf("credit record too short: %d bytes", len(b))
	}
	coin, err := DeserializeCoin(outpoint, b[:len(b)-1])
	if err != nil {
		return nil, err
	}
	return &Credit{Coin: *coin, Spent: b[len(b)-1] != 0}, nil
}

// BlockRecord is persisted once per height at which the wallet has >=1
// confirmed transaction.
type BlockRecord struct {
	Hash   chainhash.Hash
	Height int32
	Time   uint32
	Txs    []chainhash.Hash
}

// Serialize encodes a BlockRecord as: hash(32) ‖ height(u32 LE) ‖ ts(u32 LE)
// ‖ n(u32 LE) ‖ n*32-byte tx hashes.
func (r *BlockRecord) Serialize() []byte {
	buf := make([]byte, 32+4+4+4+len(r.Txs)*32)
	copy(buf[0:32], r.Hash[:])
	binary.LittleEndian.PutUint32(buf[32:36], uint32(r.Height))
	binary.LittleEndian.PutUint32(buf[36:40], r.Time)
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(r.Txs)))
	off := 44
	for _, h := range r.Txs {
		copy(buf[off:off+32], h[:])
		off += 32
	}
	return buf
}

// DeserializeBlockRecord decodes the bytes written by Serialize.
func DeserializeBlockRecord(b []byte) (*BlockRecord, txerr.R) {
	if len(b) < 44 {
		return nil, ErrData.Errorf("block record too short: %d bytes", len(b))
	}
	var r BlockRecord
	copy(r.Hash[:], b[0:32])
	r.Height = int32(binary.LittleEndian.Uint32(b[32:36]))
	r.Time = binary.LittleEndian.Uint32(b[36:40])
	n := binary.LittleEndian.Uint32(b[40:44])
	if uint32(len(b)-44) != n*32 {
		return nil, ErrData.Errorf("block record tx count mismatch: have %d want %d", (len(b)-44)/32, n)
	}
	r.Txs = make([]chainhash.Hash, n)
	off := 44
	for i := range r.Txs {
		copy(r.Txs[i][:], b[off:off+32])
		off += 32
	}
	return &r, nil
}

// removeTx removes hash from the block record's tx list in place, reporting
// whether the record is now empty (and so should be deleted entirely).
func (r *BlockRecord) removeTx(hash chainhash.Hash) (empty bool) {
	for i, h := range r.Txs {
		if h == hash {
			r.Txs = append(r.Txs[:i], r.Txs[i+1:]...)
			break
		}
	}
	return len(r.Txs) == 0
}

// TxRecord is a transaction plus the wallet-local metadata appended after
// the canonical tx bytes to form the "extended TX" encoding: ps(i64 LE) ‖ height(i32 LE) ‖
// blockHash(32) ‖ blockTs(u32 LE) ‖ index(u32 LE).
type TxRecord struct {
	MsgTx wire.MsgTx
	Hash  chainhash.Hash

	// PS is the wallet-local unix timestamp of first sight. Never
	// mutated after ingest.
	PS int64

	// Height is -1 for an uncommitted (mempool) transaction.
	Height  int32
	Block   chainhash.Hash
	BlockTs uint32
	Index   uint32
}

// NewTxRecord builds a TxRecord for a not-yet-indexed, not-yet-confirmed
// transaction, computing its hash.
func NewTxRecord(msgTx *wire.MsgTx, ps int64) *TxRecord {
	return &TxRecord{
		MsgTx:  *msgTx,
		Hash:   msgTx.TxHash(),
		PS:     ps,
		Height: -1,
	}
}

// Serialize encodes the extended TX: canonical wire bytes, then the
// wallet-local metadata fields.
func (r *TxRecord) Serialize() ([]byte, txerr.R) {
	var buf bytes.Buffer
	if err := r.MsgTx.Serialize(&buf); err != nil {
		return nil, ErrInput.New("serializing transaction", err)
	}
	extra := make([]byte, 8+4+32+4+4)
	binary.LittleEndian.PutUint64(extra[0:8], uint64(r.PS))
	binary.LittleEndian.PutUint32(extra[8:12], uint32(r.Height))
	copy(extra[12:44], r.Block[:])
	binary.LittleEndian.PutUint32(extra[44:48], r.BlockTs)
	binary.LittleEndian.PutUint32(extra[48:52], r.Index)
	buf.Write(extra)
	return buf.Bytes(), nil
}

// DeserializeTxRecord decodes the bytes written by Serialize, round
// tripping hash, hydrate the MsgTx, and the trailing metadata.
func DeserializeTxRecord(b []byte) (*TxRecord, txerr.R) {
	const extraLen = 8 + 4 + 32 + 4 + 4
	if len(b) < extraLen {
		return nil, ErrData.Errorf("extended tx record too short: %d bytes", len(b))
	}
	canonical := b[:len(b)-extraLen]
	extra := b[len(b)-extraLen:]

	var r TxRecord
	if err := r.MsgTx.Deserialize(bytes.NewReader(canonical)); err != nil {
		return nil, ErrData.New("deserializing transaction", err)
	}
	r.Hash = r.MsgTx.TxHash()
	r.PS = int64(binary.LittleEndian.Uint64(extra[0:8]))
	r.Height = int32(binary.LittleEndian.Uint32(extra[8:12]))
	copy(r.Block[:], extra[12:44])
	r.BlockTs = binary.LittleEndian.Uint32(extra[44:48])
	r.Index = binary.LittleEndian.Uint32(extra[48:52])
	return &r, nil
}

// DetailsMember is the per-input or per-output projection of a Details
// record: the resolved address, value, and -- when ours -- account path.
type DetailsMember struct {
	Index   uint32
	Address string
	Value   btcutil.Amount
	Ours    bool
	Path    Path
}

// Path is the wallet account path that owns an address (aliases
// walletiface.Path so callers outside this package don't need to import
// walletiface just to read a DetailsMember).
type Path = walletiface.Path

// Details is the per-transaction projection built by the write pipeline
// and by GetDetails, plus every account touched. GetDetails lists every
// input and output with its resolved address, value and (when ours) path;
// the write pipeline lists only the inputs and outputs that are ours and
// leaves Address empty.
type Details struct {
	Hash     chainhash.Hash
	Height   int32
	Inputs   []DetailsMember
	Outputs  []DetailsMember
	Accounts []uint32
}

func (d *Details) addAccount(account uint32) {
	for _, a := range d.Accounts {
		if a == account {
			return
		}
	}
	d.Accounts = append(d.Accounts, account)
}
